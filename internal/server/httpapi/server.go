// Package httpapi exposes the smartwaste services over HTTP with a chi
// router. Bearer tokens guard user, buyer and admin routes; devices
// authenticate uploads with their id and API key headers.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/dmitrijs2005/smartwaste/internal/logging"
	"github.com/dmitrijs2005/smartwaste/internal/server/auth"
	"github.com/dmitrijs2005/smartwaste/internal/server/metrics"
	"github.com/dmitrijs2005/smartwaste/internal/server/models"
	"github.com/dmitrijs2005/smartwaste/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

type AccountService interface {
	Register(ctx context.Context, in services.NewAccount) (*models.Account, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Get(ctx context.Context, id string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	Delete(ctx context.Context, id string) error
}

type OTPService interface {
	Issue(ctx context.Context, email string) (*services.IssueResult, error)
	Resend(ctx context.Context, email string) (*services.IssueResult, error)
	Verify(ctx context.Context, email, code string) error
}

type DeviceService interface {
	Register(ctx context.Context, deviceID, apiKey, adminID string) (*services.RegisteredDevice, error)
	Deactivate(ctx context.Context, deviceID string) error
	List(ctx context.Context) ([]*models.Device, error)
}

type IngestionService interface {
	RecordUpload(ctx context.Context, source string, req services.UploadRequest) (*models.WasteRecord, error)
}

type ReportService interface {
	QRCode(ctx context.Context, accountID string) (*services.QRCode, error)
	History(ctx context.Context, accountID string) ([]*models.WasteRecord, error)
	Rewards(ctx context.Context, accountID string) (*services.Rewards, error)
	Stats(ctx context.Context, accountID string) (*services.UserStats, error)
	Recyclables(ctx context.Context) ([]*models.RecyclableEntry, error)
	RecyclableStats(ctx context.Context) (*models.RecyclableStats, error)
	Overview(ctx context.Context) (*models.Overview, error)
	Record(ctx context.Context, recordID, viewerID string, viewerRole models.Role) (*models.WasteRecord, error)
}

// Authorizer checks a bearer token against the roles a route allows.
type Authorizer interface {
	Authorize(token string, roles ...models.Role) (*auth.Claims, error)
}

// Services groups the collaborators the handlers call into.
type Services struct {
	Accounts  AccountService
	OTP       OTPService
	Devices   DeviceService
	Ingestion IngestionService
	Reports   ReportService
}

type Server struct {
	address     string
	svc         Services
	gate        Authorizer
	metrics     *metrics.Metrics
	corsOrigins []string
	validate    *validator.Validate
	logger      logging.Logger
}

func NewServer(address string, svc Services, gate Authorizer, m *metrics.Metrics, corsOrigins []string, l logging.Logger) *Server {
	return &Server{
		address:     address,
		svc:         svc,
		gate:        gate,
		metrics:     m,
		corsOrigins: corsOrigins,
		validate:    newValidator(),
		logger:      l.With("module", "http_server"),
	}
}

// Routes builds the router. It is exported so tests can drive it through
// httptest without a listener.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Device-ID", "X-API-Key"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.register)
		r.Post("/login", s.login)
		r.Post("/send-otp", s.sendOTP)
		r.Post("/resend-otp", s.resendOTP)
		r.Post("/verify-otp", s.verifyOTP)
		r.With(s.requireRole()).Get("/me", s.me)
	})

	r.Route("/user", func(r chi.Router) {
		r.Use(s.requireRole(models.RoleEndUser))
		r.Get("/qr", s.userQR)
		r.Get("/history", s.userHistory)
		r.Get("/rewards", s.userRewards)
		r.Get("/stats", s.userStats)
	})

	r.Route("/buyer", func(r chi.Router) {
		r.Use(s.requireRole(models.RoleBuyer))
		r.Get("/recyclables", s.buyerRecyclables)
		r.Get("/stats", s.buyerStats)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireRole(models.RoleAdmin))
		r.Get("/overview", s.adminOverview)
		r.Get("/users", s.adminListUsers)
		r.Get("/users/{id}", s.adminGetUser)
		r.Delete("/users/{id}", s.adminDeleteUser)
		r.Get("/devices", s.adminListDevices)
		r.Post("/devices", s.adminRegisterDevice)
		r.Post("/devices/{id}/deactivate", s.adminDeactivateDevice)
	})

	r.Post("/waste/upload", s.uploadWaste)
	r.With(s.requireRole(models.RoleAdmin, models.RoleEndUser)).Get("/waste/{id}", s.wasteRecord)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
