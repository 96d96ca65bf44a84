package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"plugmon/internal/service"
)

// SwitchHandler exposes remote on/off control and the switch state.
type SwitchHandler struct {
	svc    *service.ControlService
	logger *zap.Logger
}

// NewSwitchHandler builds handler set.
func NewSwitchHandler(svc *service.ControlService, logger *zap.Logger) *SwitchHandler {
	return &SwitchHandler{svc: svc, logger: logger}
}

type switchRequest struct {
	State bool `json:"state"`
}

// HandleSwitch handles POST /switch.
func (h *SwitchHandler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.svc.SetSwitch(r.Context(), req.State); err != nil {
		h.logger.Error("switch command failed", zap.Bool("state", req.State), zap.Error(err))
		writeError(w, statusFor(err), "failed to set switch", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"state": req.State})
}

// HandleSwitchStatus handles GET /switch-status.
func (h *SwitchHandler) HandleSwitchStatus(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.SwitchState(r.Context())
	if err != nil {
		h.logger.Error("switch status failed", zap.Error(err))
		writeError(w, statusFor(err), "failed to read switch state", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"state": state})
}
