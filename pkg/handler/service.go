package handler

import (
	"net/http"

	"github.com/uxmanz/ArcgisTerrain-Server/pkg/log"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/service"
)

// ServiceInfoHandler serves the ImageServer description document,
// composed fresh on every request from the current inspection state.
func ServiceInfoHandler(synth *service.Synthesizer, logger log.JsonLogger) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if err := writeJson(rw, http.StatusOK, synth.Describe()); err != nil {
			logger.Warning(log.LogCategory_ResponseError, "Failed to write service info: %s", err.Error())
		}
	})
}

// CatalogHandler serves the services directory listing.
func CatalogHandler(synth *service.Synthesizer, logger log.JsonLogger) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if err := writeJson(rw, http.StatusOK, synth.DescribeCatalog()); err != nil {
			logger.Warning(log.LogCategory_ResponseError, "Failed to write catalog: %s", err.Error())
		}
	})
}

// QueryRejectionHandler answers any query-style request with a
// structured 400. The archive holds pre-rendered tiles only, there is
// nothing to run a spatial query against.
func QueryRejectionHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		writeJson(rw, http.StatusBadRequest, map[string]interface{}{
			"error": map[string]interface{}{
				"code":    http.StatusBadRequest,
				"message": "Query operation not supported for offline terrain",
			},
		})
	})
}

// StatusHandler answers / and /health liveness probes.
func StatusHandler(serviceName string) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		writeJson(rw, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": serviceName,
		})
	})
}

// NotFoundHandler is the JSON fallback for unknown paths.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		writeJsonError(rw, http.StatusNotFound, "Not found")
	})
}
