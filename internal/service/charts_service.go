package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"plugmon/internal/models"
	"plugmon/internal/repository"
)

// Seam for tests.
var timeNow = time.Now

const (
	weekDays  = 7
	monthDays = 30
)

// ChartStore is the slice of the repository the chart queries need.
type ChartStore interface {
	HourlyAverages(ctx context.Context, from, to time.Time) ([]repository.HourlyAvg, error)
	DailyAverages(ctx context.Context, from, to time.Time, offsetMinutes int) ([]repository.DailyAvg, error)
}

// HourBucket is one hour of today's rollup.
type HourBucket struct {
	Hour    int     `json:"hour"`
	Power   float64 `json:"power"`
	Current float64 `json:"current"`
	Voltage float64 `json:"voltage"`
}

// DayBucket is one local calendar date of the week/month rollups.
type DayBucket struct {
	Date    string  `json:"date"`
	Power   float64 `json:"power"`
	Current float64 `json:"current"`
	Voltage float64 `json:"voltage"`
}

// MainChart bundles the three rollup windows.
type MainChart struct {
	Today []HourBucket `json:"today"`
	Week  []DayBucket  `json:"week"`
	Month []DayBucket  `json:"month"`
}

// ChartsService produces the dashboard rollups.
type ChartsService struct {
	store  ChartStore
	logger *zap.Logger
}

// NewChartsService builds service.
func NewChartsService(store ChartStore, logger *zap.Logger) *ChartsService {
	return &ChartsService{store: store, logger: logger}
}

// MainChart runs the three window queries concurrently and merges each result
// into a pre-filled all-zero skeleton, so buckets without samples render as zero
// rather than missing.
func (s *ChartsService) MainChart(ctx context.Context, loc *time.Location) (*MainChart, error) {
	now := timeNow().In(loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	_, offsetSec := now.Zone()
	offsetMinutes := offsetSec / 60

	chart := &MainChart{}
	errs := make([]error, 3)
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		rows, err := s.store.HourlyAverages(ctx, midnight, midnight.AddDate(0, 0, 1))
		if err != nil {
			errs[0] = err
			return
		}
		chart.Today = mergeHourly(rows)
	}()

	go func() {
		defer wg.Done()
		from := midnight.AddDate(0, 0, -(weekDays - 1))
		rows, err := s.store.DailyAverages(ctx, from, midnight.AddDate(0, 0, 1), offsetMinutes)
		if err != nil {
			errs[1] = err
			return
		}
		chart.Week = mergeDaily(rows, midnight, weekDays)
	}()

	go func() {
		defer wg.Done()
		from := midnight.AddDate(0, 0, -(monthDays - 1))
		rows, err := s.store.DailyAverages(ctx, from, midnight.AddDate(0, 0, 1), offsetMinutes)
		if err != nil {
			errs[2] = err
			return
		}
		chart.Month = mergeDaily(rows, midnight, monthDays)
	}()

	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return chart, nil
}

func mergeHourly(rows []repository.HourlyAvg) []HourBucket {
	buckets := make([]HourBucket, 24)
	for i := range buckets {
		buckets[i].Hour = i
	}
	for _, row := range rows {
		if row.Hour < 0 || row.Hour > 23 {
			continue
		}
		setBucketValue(&buckets[row.Hour].Power, &buckets[row.Hour].Current, &buckets[row.Hour].Voltage, row.Code, row.Avg)
	}
	return buckets
}

func mergeDaily(rows []repository.DailyAvg, midnight time.Time, days int) []DayBucket {
	buckets := make([]DayBucket, days)
	index := make(map[string]int, days)
	for i := range buckets {
		date := midnight.AddDate(0, 0, -(days - 1 - i)).Format("2006-01-02")
		buckets[i].Date = date
		index[date] = i
	}
	for _, row := range rows {
		i, ok := index[row.Date]
		if !ok {
			continue
		}
		setBucketValue(&buckets[i].Power, &buckets[i].Current, &buckets[i].Voltage, row.Code, row.Avg)
	}
	return buckets
}

// setBucketValue pivots one (code, avg) fact into a bucket, applying the device's
// fixed-point scaling: power and voltage are stored raw in tenths, current in mA.
func setBucketValue(power, current, voltage *float64, code string, avg float64) {
	switch code {
	case models.CodePower:
		*power = avg / 10
	case models.CodeCurrent:
		*current = avg
	case models.CodeVoltage:
		*voltage = avg / 10
	}
}
