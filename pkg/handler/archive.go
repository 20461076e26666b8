package handler

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/uxmanz/ArcgisTerrain-Server/pkg/archive"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/log"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/tile"
)

// ArchiveTileHandler serves raw tiles in the archive's native
// level/col/row ordering. This is the surface the relay fetcher talks
// to when the facade and the archive run as separate processes.
// Responses carry the archive's own content headers, errors are plain
// text.
func ArchiveTileHandler(store archive.Store, logger log.JsonLogger) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		m := mux.Vars(req)

		var native tile.Native
		var ok bool
		if native.Level, ok = parseCoordinate(m["level"]); !ok {
			http.Error(rw, fmt.Sprintf("Invalid level: %s", m["level"]), http.StatusBadRequest)
			return
		}
		if native.Col, ok = parseCoordinate(m["col"]); !ok {
			http.Error(rw, fmt.Sprintf("Invalid col: %s", m["col"]), http.StatusBadRequest)
			return
		}
		if native.Row, ok = parseCoordinate(m["row"]); !ok {
			http.Error(rw, fmt.Sprintf("Invalid row: %s", m["row"]), http.StatusBadRequest)
			return
		}

		data, err := store.ReadTile(m["fileName"], native)
		if err != nil {
			logger.Error(log.LogCategory_ArchiveError, "Archive read failure for %s %s: %s", m["fileName"], native, err.Error())
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		if data == nil {
			http.NotFound(rw, req)
			return
		}

		headers := rw.Header()
		headers.Set("Content-Type", data.ContentType)
		headers.Set("Content-Length", fmt.Sprintf("%d", len(data.Body)))
		rw.WriteHeader(http.StatusOK)
		if _, err := rw.Write(data.Body); err != nil {
			logger.Warning(log.LogCategory_ResponseError, "Failed to write archive tile body: %s", err.Error())
		}
	})
}
