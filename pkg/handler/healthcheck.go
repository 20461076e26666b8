package handler

import (
	"net/http"

	"github.com/uxmanz/ArcgisTerrain-Server/pkg/archive"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/log"
)

// HealthCheckHandler probes the archive store. Used by the
// archive-facing server so a relay deployment can monitor both halves.
func HealthCheckHandler(store archive.Store, logger log.JsonLogger) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if err := store.HealthCheck(); err != nil {
			logger.Error(log.LogCategory_ArchiveError, "Healthcheck on archive store failed: %s", err.Error())
			rw.WriteHeader(http.StatusInternalServerError)
			return
		}
		rw.WriteHeader(http.StatusOK)
	})
}
