package httpapi

import (
	"net/http"
)

func (s *Server) userQR(w http.ResponseWriter, r *http.Request) {
	qr, err := s.svc.Reports.QRCode(r.Context(), claimsFrom(r.Context()).AccountID())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qr)
}

func (s *Server) userHistory(w http.ResponseWriter, r *http.Request) {
	h, err := s.svc.Reports.History(r.Context(), claimsFrom(r.Context()).AccountID())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) userRewards(w http.ResponseWriter, r *http.Request) {
	rw, err := s.svc.Reports.Rewards(r.Context(), claimsFrom(r.Context()).AccountID())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rw)
}

func (s *Server) userStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Reports.Stats(r.Context(), claimsFrom(r.Context()).AccountID())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) buyerRecyclables(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Reports.Recyclables(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) buyerStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Reports.RecyclableStats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
