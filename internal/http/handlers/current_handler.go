package handlers

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"plugmon/internal/cache"
)

// NewCurrentHandler returns the GET /current handler serving the cached latest
// reading. store may be nil when redis is not configured.
func NewCurrentHandler(store *cache.LatestStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeError(w, http.StatusNotFound, "latest reading cache not configured")
			return
		}

		reading, err := store.Get(r.Context())
		if err != nil {
			if errors.Is(err, redis.Nil) {
				writeError(w, http.StatusNotFound, "no recent reading available")
				return
			}
			logger.Error("latest reading lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to read cache")
			return
		}
		writeJSON(w, http.StatusOK, reading)
	}
}
