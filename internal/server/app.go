// Package server wires configuration, storage and the optional integrations
// (Redis, SMTP, MQTT, InfluxDB) into the running smartwaste server and
// handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/smartwaste/internal/logging"
	"github.com/dmitrijs2005/smartwaste/internal/server/auth"
	"github.com/dmitrijs2005/smartwaste/internal/server/config"
	"github.com/dmitrijs2005/smartwaste/internal/server/httpapi"
	"github.com/dmitrijs2005/smartwaste/internal/server/metrics"
	"github.com/dmitrijs2005/smartwaste/internal/server/mqttingest"
	"github.com/dmitrijs2005/smartwaste/internal/server/notify"
	"github.com/dmitrijs2005/smartwaste/internal/server/ratelimit"
	"github.com/dmitrijs2005/smartwaste/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/smartwaste/internal/server/services"
	"github.com/dmitrijs2005/smartwaste/internal/server/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const (
	startupTimeout = 30 * time.Second
	purgeInterval  = time.Hour
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	redis     *redis.Client
	influx    *telemetry.InfluxSink
	metrics   *metrics.Metrics
	accounts  *services.AccountService
	otp       *services.OTPService
	devices   *services.DeviceService
	ingestion *services.IngestionService
	reports   *services.ReportService
	gate      *auth.Gate
}

// NewApp validates c, connects to Postgres, migrates the schema, seeds the
// admin account and builds every service. Redis, SMTP and InfluxDB are used
// only when configured.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(os.Stdout, c.LogLevel)
	app := &App{config: c, logger: logger}

	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	app.db = db

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.metrics = metrics.New(reg)

	tokens, err := auth.NewTokens(c.SecretKey, c.TokenTTL)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.gate = auth.NewGate(tokens)

	var counter ratelimit.Counter
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		counter = ratelimit.NewRedisCounter(app.redis)
	} else {
		logger.Warn(ctx, "REDIS_ADDR not set, rate limiting disabled")
	}
	loginLimit := ratelimit.New(counter, "login", c.LoginAttemptsPerMin, time.Minute, logger).OnLimit(app.metrics.Throttled)
	otpLimit := ratelimit.New(counter, "otp", c.OTPRequestsPerHour, time.Hour, logger).OnLimit(app.metrics.Throttled)

	var primary notify.Sender
	if c.SMTPHost != "" {
		primary = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUsername,
			Password: c.SMTPPassword,
			From:     c.SMTPFrom,
			FromName: c.SMTPFromName,
		})
	} else {
		logger.Warn(ctx, "SMTP_SERVER not set, verification codes go to the log")
	}
	dispatcher := notify.NewDispatcher(primary, notify.NewConsoleSender(logger), logger)

	var sink telemetry.Sink = telemetry.Nop{}
	if c.InfluxURL != "" {
		app.influx, err = telemetry.Connect(ctx, c.InfluxURL, c.InfluxToken, c.InfluxOrg, c.InfluxBucket, logger)
		if err != nil {
			app.Close()
			return nil, err
		}
		sink = app.influx
	}

	hasher := auth.NewPasswordHasher(c.BcryptCost)
	app.accounts = services.NewAccountService(db, rm, hasher, tokens, logger).
		WithThrottle(loginLimit).
		WithMetrics(app.metrics)
	app.otp = services.NewOTPService(db, rm, dispatcher, logger).
		WithThrottle(otpLimit).
		WithValidity(c.OTPTTL).
		WithMetrics(app.metrics)
	app.devices = services.NewDeviceService(db, rm, logger)
	app.ingestion = services.NewIngestionService(db, rm, app.devices, c.Rates, logger).
		WithTelemetry(sink).
		WithMetrics(app.metrics)
	app.reports = services.NewReportService(db, rm)

	if c.AdminEmail != "" && c.AdminPassword != "" {
		created, err := app.accounts.EnsureAdmin(ctx, c.AdminEmail, c.AdminPassword, c.AdminPhone, c.AdminName)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("admin bootstrap error: %w", err)
		}
		if created {
			logger.Info(ctx, "Admin account created", "email", c.AdminEmail)
		}
	}

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.HTTPAddr, httpapi.Services{
		Accounts:  app.accounts,
		OTP:       app.otp,
		Devices:   app.devices,
		Ingestion: app.ingestion,
		Reports:   app.reports,
	}, app.gate, app.metrics, app.config.CORSOrigins, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startMQTTSubscriber(ctx context.Context, cancelFunc context.CancelFunc) {
	s, err := mqttingest.Connect(mqttingest.Options{
		Broker:   app.config.MQTTBroker,
		ClientID: app.config.MQTTClientID,
		Username: app.config.MQTTUsername,
		Password: app.config.MQTTPassword,
		QoS:      app.config.MQTTQoS,
	}, app.ingestion, app.logger)
	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return
	}

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}

// Run serves until a termination signal arrives or a component fails, then
// waits for every component to stop and releases connections.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.MQTTBroker != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startMQTTSubscriber(ctx, cancelFunc)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.otp.RunPurge(ctx, purgeInterval)
	}()

	wg.Wait()
	app.Close()
	app.logger.Info(context.Background(), "App stopped")
}

// Close releases every open connection. It is safe to call on a partially
// built App.
func (app *App) Close() {
	if app.influx != nil {
		app.influx.Close()
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}
