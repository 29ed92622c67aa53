package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/liptonj/wpn-provisioner/internal/services/provisioner"
	"github.com/liptonj/wpn-provisioner/internal/services/settings"
	"github.com/liptonj/wpn-provisioner/internal/services/share"
)

type errorResponse struct {
	Error     string   `json:"error"`
	Message   string   `json:"message"`
	Step      string   `json:"step,omitempty"`
	Completed []string `json:"completed,omitempty"`
	RunID     string   `json:"runId,omitempty"`
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, errorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Status.Evaluate(r.Context(), s.target.NetworkID, s.target.SSIDNumber)
	if err != nil {
		s.logger.Error().Err(err).Msg("status check failed")
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// handleApply runs one apply. The body optionally overrides the configured defaults;
// only one apply may be in flight at a time.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	desired := s.defaults
	if err := json.NewDecoder(r.Body).Decode(&desired); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if !s.applying.CompareAndSwap(false, true) {
		respondError(w, http.StatusConflict, "an apply is already running for this SSID")
		return
	}
	defer s.applying.Store(false)

	// A client that disconnects mid-run must not cancel remote writes or the save.
	ctx := context.WithoutCancel(r.Context())

	result, err := s.svc.Provisioner.Apply(ctx, desired)
	if err != nil {
		var applyErr *provisioner.ApplyError
		if !errors.As(err, &applyErr) {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		code := http.StatusBadGateway
		if errors.Is(err, provisioner.ErrConfiguration) {
			code = http.StatusUnprocessableEntity
		}
		respondJSON(w, code, errorResponse{
			Error:     string(applyErr.Kind),
			Message:   applyErr.Err.Error(),
			Step:      applyErr.Step,
			Completed: applyErr.Completed,
			RunID:     applyErr.RunID,
		})
		return
	}

	if err := s.svc.Settings.Save(ctx, settings.FromResult(s.target, *result)); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist apply result")
		respondError(w, http.StatusInternalServerError, "configuration applied but settings could not be saved: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Validator.Validate(r.Context(), s.target.NetworkID, s.target.SSIDNumber)
	if errors.Is(err, settings.ErrNotConfigured) {
		respondError(w, http.StatusPreconditionFailed, err.Error())
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("validation failed")
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleConfirmWPN(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Settings.ConfirmWPN(r.Context(), s.target.NetworkID, s.target.SSIDNumber); err != nil {
		s.logger.Error().Err(err).Msg("failed to record WPN confirmation")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.handleStatus(w, r)
}

func (s *Server) handleSharePNG(w http.ResponseWriter, r *http.Request) {
	size := share.DefaultPNGSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 64 || n > 1024 {
			respondError(w, http.StatusBadRequest, "size must be an integer between 64 and 1024")
			return
		}
		size = n
	}

	ps, err := s.svc.Settings.Load(r.Context())
	if err != nil && !errors.Is(err, settings.ErrNotConfigured) {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	creds, err := share.FromSettings(ps)
	if err != nil {
		respondError(w, http.StatusPreconditionFailed, err.Error())
		return
	}

	png, err := s.svc.Share.PNG(creds, size)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
