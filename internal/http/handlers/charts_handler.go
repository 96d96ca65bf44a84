package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"plugmon/internal/service"
)

// ChartsHandler serves the rollup and consumption queries.
type ChartsHandler struct {
	charts      *service.ChartsService
	consumption *service.ConsumptionService
	defaultZone string
	logger      *zap.Logger
}

// NewChartsHandler builds handler set.
func NewChartsHandler(charts *service.ChartsService, consumption *service.ConsumptionService, defaultZone string, logger *zap.Logger) *ChartsHandler {
	return &ChartsHandler{
		charts:      charts,
		consumption: consumption,
		defaultZone: defaultZone,
		logger:      logger,
	}
}

// HandleMainChart handles GET /main-chart/data.
func (h *ChartsHandler) HandleMainChart(w http.ResponseWriter, r *http.Request) {
	loc, err := requestTimezone(r, h.defaultZone)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timezone", err.Error())
		return
	}

	chart, err := h.charts.MainChart(r.Context(), loc)
	if err != nil {
		h.logger.Error("main chart query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build chart data")
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

// HandleTodayConsumption handles GET /today-consumption.
func (h *ChartsHandler) HandleTodayConsumption(w http.ResponseWriter, r *http.Request) {
	loc, err := requestTimezone(r, h.defaultZone)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timezone", err.Error())
		return
	}

	result, err := h.consumption.Today(r.Context(), loc)
	if err != nil {
		h.logger.Error("consumption query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to compute consumption")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
