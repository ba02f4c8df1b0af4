package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/smartwaste/internal/common"
	"github.com/dmitrijs2005/smartwaste/internal/server/models"
	"github.com/dmitrijs2005/smartwaste/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// uploadRequest is not validated up front: device credentials are checked
// before anything in the body.
type uploadRequest struct {
	DeviceID   string  `json:"device_id"`
	UserQR     string  `json:"user_qr"`
	Organic    float64 `json:"organic"`
	Recyclable float64 `json:"recyclable"`
	Hazardous  float64 `json:"hazardous"`
}

func (s *Server) uploadWaste(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := s.decode(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	deviceID := r.Header.Get(common.DeviceIDHeaderName)
	if deviceID == "" {
		deviceID = req.DeviceID
	}

	rec, err := s.svc.Ingestion.RecordUpload(r.Context(), services.SourceHTTP, services.UploadRequest{
		DeviceID: deviceID,
		APIKey:   r.Header.Get(common.APIKeyHeaderName),
		UserQR:   req.UserQR,
		Weights: models.Weights{
			Organic:    req.Organic,
			Recyclable: req.Recyclable,
			Hazardous:  req.Hazardous,
		},
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) wasteRecord(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	rec, err := s.svc.Reports.Record(r.Context(), chi.URLParam(r, "id"), claims.AccountID(), claims.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
