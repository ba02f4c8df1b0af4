package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/smartwaste/internal/common"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a failure to an HTTP status by its kind. Throttling and
// unverified email are singled out of their kinds.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, common.ErrEmailNotVerified):
		return http.StatusForbidden
	}

	switch common.KindOf(err) {
	case common.ErrValidation:
		return http.StatusBadRequest
	case common.ErrNotFound:
		return http.StatusNotFound
	case common.ErrConflict:
		return http.StatusConflict
	case common.ErrAuthentication:
		return http.StatusUnauthorized
	case common.ErrAuthorization:
		return http.StatusForbidden
	case common.ErrTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "internal_error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, errorResponse{Error: errorBody{Code: codeFor(status), Message: msg}})
}

// decode reads a JSON body into dst and, when validated is set, runs the
// struct's validate tags.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any, validated bool) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", common.ErrValidation)
	}
	if !validated {
		return nil
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", common.ErrValidation, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	return nil
}
