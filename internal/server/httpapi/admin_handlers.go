package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/smartwaste/internal/server/models"
	"github.com/go-chi/chi/v5"
)

type registerDeviceRequest struct {
	DeviceID string `json:"device_id" validate:"required"`
	APIKey   string `json:"api_key,omitempty"`
}

type registerDeviceResponse struct {
	Device *models.Device `json:"device"`
	APIKey string         `json:"api_key"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) adminOverview(w http.ResponseWriter, r *http.Request) {
	o, err := s.svc.Reports.Overview(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) adminListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Accounts.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) adminGetUser(w http.ResponseWriter, r *http.Request) {
	acc, err := s.svc.Accounts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (s *Server) adminDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.Accounts.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info(r.Context(), "user deleted by admin", "account_id", id, "admin_id", claimsFrom(r.Context()).AccountID())
	writeJSON(w, http.StatusOK, messageResponse{Message: "User deleted"})
}

func (s *Server) adminListDevices(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Devices.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) adminRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := s.decode(w, r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	reg, err := s.svc.Devices.Register(r.Context(), req.DeviceID, req.APIKey, claimsFrom(r.Context()).AccountID())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerDeviceResponse{Device: reg.Device, APIKey: reg.APIKey})
}

func (s *Server) adminDeactivateDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Devices.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Device deactivated"})
}
