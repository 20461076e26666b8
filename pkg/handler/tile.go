package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/uxmanz/ArcgisTerrain-Server/pkg/fetch"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/log"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/metrics"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/state"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/tile"
)

// tileCacheControl is sent on every successful tile response. Tiles in
// a fixed archive never change, so clients may hold them for a day.
const tileCacheControl = "public, max-age=86400"

// TileHandler serves the public level/row/col tile endpoint. The
// address is translated into the archive's native ordering before the
// lookup, and exactly one response is written per request whatever the
// outcome.
func TileHandler(
	p Parser,
	scheme tile.Scheme,
	fetcher fetch.Fetcher,
	mw metrics.MetricsWriter,
	logger log.JsonLogger) http.Handler {

	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		reqState := &state.RequestState{}

		startTime := time.Now()

		defer func() {
			totalDuration := time.Since(startTime)
			reqState.Duration.Total = totalDuration

			if reqState.ResponseState == state.ResponseState_Nil {
				logger.Error(log.LogCategory_InvalidCodeState, "handler did not set response state for tile %+v", reqState.Coord)
			}

			jsonReqData := reqState.AsJsonMap()
			logger.Metrics(jsonReqData)

			mw.WriteTileState(reqState)
		}()

		parseStart := time.Now()
		parseResult, err := p.Parse(req)
		reqState.Duration.Parse = time.Since(parseStart)
		if parseResult != nil {
			// set the http data here so that on errors we log the path too
			reqState.HttpData = parseResult.HttpData
		}
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				logger.Warning(log.LogCategory_ParseError, err.Error())
				reqState.ResponseState = state.ResponseState_BadRequest
				writeJsonError(rw, http.StatusBadRequest, pe.Error())
			} else {
				logger.Error(log.LogCategory_ParseError, "Unknown parse error: %#v", err)
				reqState.ResponseState = state.ResponseState_Error
				writeJsonError(rw, http.StatusInternalServerError, "Internal server error")
			}
			return
		}

		addr := parseResult.Addr
		reqState.Coord = &state.TileLogCoord{
			Level: addr.Level,
			Row:   addr.Row,
			Col:   addr.Col,
		}

		native := addr.Native(scheme)

		fetchStart := time.Now()
		result, err := fetcher.Fetch(req.Context(), native)
		reqState.Duration.Fetch = time.Since(fetchStart)

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				logger.Warning(log.LogCategory_RelayError, "Tile fetch timed out for %s", native)
				reqState.FetchState = state.FetchState_Timeout
				reqState.ResponseState = state.ResponseState_GatewayTimeout
				writeJsonError(rw, http.StatusGatewayTimeout, "Tile fetch timed out")
				return
			}

			logger.Error(log.LogCategory_RelayError, "Tile fetch failure for %s: %s", native, err.Error())
			reqState.FetchState = state.FetchState_FetchError
			reqState.ResponseState = state.ResponseState_GatewayError
			writeJsonError(rw, http.StatusBadGateway, err.Error())
			return
		}

		reqState.Duration.CacheLookup = result.CacheLookup
		reqState.Duration.CacheSet = result.CacheSet
		reqState.IsCacheLookupError = result.CacheLookupError

		if result.NotFound {
			// expected and frequent with sparse coverage, not an error
			reqState.FetchState = state.FetchState_NotFound
			reqState.ResponseState = state.ResponseState_NotFound
			writeJsonError(rw, http.StatusNotFound, "Tile not found")
			return
		}

		reqState.FetchState = state.FetchState_Success
		reqState.CacheHit = result.CacheHit

		payload := result.Payload

		headers := rw.Header()
		headers.Set("Content-Type", payload.ContentType)
		headers.Set("Content-Length", fmt.Sprintf("%d", len(payload.Body)))
		headers.Set("Cache-Control", tileCacheControl)

		rw.WriteHeader(http.StatusOK)
		reqState.ResponseState = state.ResponseState_Success

		respWriteStart := time.Now()
		_, err = rw.Write(payload.Body)
		reqState.Duration.RespWrite = time.Since(respWriteStart)
		if err != nil {
			logger.Warning(log.LogCategory_ResponseError, "Failed to write tile response body: %s", err.Error())
			reqState.IsResponseWriteError = true
			return
		}
		reqState.ResponseSize = len(payload.Body)
	})
}
