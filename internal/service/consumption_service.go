package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"plugmon/internal/repository"
)

// ConsumptionStore is the slice of the repository the integral needs.
type ConsumptionStore interface {
	ConsumptionRows(ctx context.Context, from, to time.Time) ([]repository.ConsumptionRow, error)
}

// ConsumptionResult is today's active-energy integral.
type ConsumptionResult struct {
	KWh        float64 `json:"kwh"`
	Cost       float64 `json:"cost"`
	DataPoints int     `json:"dataPoints"`
}

// ConsumptionService computes energy consumed while the switch was on.
type ConsumptionService struct {
	store      ConsumptionStore
	ratePerKWh float64
	logger     *zap.Logger
}

// NewConsumptionService builds service.
func NewConsumptionService(store ConsumptionStore, ratePerKWh float64, logger *zap.Logger) *ConsumptionService {
	return &ConsumptionService{store: store, ratePerKWh: ratePerKWh, logger: logger}
}

// Today integrates power over the intervals between qualifying samples since
// local midnight. This is a left Riemann sum: the first qualifying sample has no
// prior reference point and contributes zero energy, a known conservative bias.
// An empty window yields all zeros, never an error.
func (s *ConsumptionService) Today(ctx context.Context, loc *time.Location) (*ConsumptionResult, error) {
	now := timeNow().In(loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	rows, err := s.store.ConsumptionRows(ctx, midnight, midnight.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	var totalKWh float64
	for _, row := range rows {
		if !row.PrevAt.Valid {
			continue
		}
		durationHours := row.RecordedAt.Sub(row.PrevAt.Time).Hours()
		if durationHours <= 0 {
			continue
		}
		powerKW := row.PowerRaw / 10 / 1000
		totalKWh += powerKW * durationHours
	}

	return &ConsumptionResult{
		KWh:        totalKWh,
		Cost:       totalKWh * s.ratePerKWh,
		DataPoints: len(rows),
	}, nil
}
