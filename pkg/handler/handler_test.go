package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/uxmanz/ArcgisTerrain-Server/pkg/archive"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/fetch"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/log"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/metrics"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/state"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/tile"
)

type fakeParser struct {
	addr tile.Address
}

func (f *fakeParser) Parse(_ *http.Request) (*ParseResult, error) {
	return &ParseResult{Addr: f.addr}, nil
}

type fakeFetcher struct {
	tiles map[tile.Native][]byte
	err   error

	cacheLookup time.Duration
	cacheSet    time.Duration
	cacheErr    bool
}

func (f *fakeFetcher) Fetch(_ context.Context, addr tile.Native) (*fetch.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	result := &fetch.Result{
		CacheLookup:      f.cacheLookup,
		CacheSet:         f.cacheSet,
		CacheLookupError: f.cacheErr,
	}
	body, ok := f.tiles[addr]
	if !ok {
		result.NotFound = true
		return result, nil
	}
	result.Payload = &fetch.Payload{
		Body:        body,
		ContentType: "application/octet-stream",
	}
	return result, nil
}

type fakeResponseWriter struct {
	header       http.Header
	status       int
	statusWrites int
	body         []byte
}

func (f *fakeResponseWriter) Header() http.Header {
	return f.header
}

func (f *fakeResponseWriter) Write(buf []byte) (int, error) {
	f.body = append(f.body, buf...)
	return len(buf), nil
}

func (f *fakeResponseWriter) WriteHeader(status int) {
	f.status = status
	f.statusWrites++
}

func newFakeResponseWriter() *fakeResponseWriter {
	return &fakeResponseWriter{header: make(http.Header)}
}

func newTileHandler(p Parser, f fetch.Fetcher) http.Handler {
	return TileHandler(p, tile.SchemeXYZ, f, &metrics.NilMetricsWriter{}, &log.NilJsonLogger{})
}

func TestTileHandlerHit(t *testing.T) {
	// the archive stores level/col/row, the public address is
	// level/row/col, so public (10, row 3, col 5) must read native
	// (10, 5, 3)
	native := tile.Native{Level: 10, Col: 5, Row: 3}
	fetcher := &fakeFetcher{tiles: map[tile.Native][]byte{
		native: []byte("elevation bytes"),
	}}
	parser := &fakeParser{addr: tile.Address{Level: 10, Row: 3, Col: 5}}

	h := newTileHandler(parser, fetcher)
	rw := newFakeResponseWriter()
	h.ServeHTTP(rw, &http.Request{})

	if rw.status != 200 {
		t.Fatalf("Expected 200 OK response, but got %d", rw.status)
	}
	if string(rw.body) != "elevation bytes" {
		t.Fatalf("Unexpected tile body: %q", rw.body)
	}
	checkHeader := func(key, exp string) {
		act := rw.header.Get(key)
		if act != exp {
			t.Fatalf("Expected HTTP header %#v to be %#v but was %#v", key, exp, act)
		}
	}
	checkHeader("Content-Type", "application/octet-stream")
	checkHeader("Cache-Control", "public, max-age=86400")
	checkHeader("Content-Length", "15")
}

func TestTileHandlerMiss(t *testing.T) {
	fetcher := &fakeFetcher{tiles: make(map[tile.Native][]byte)}
	parser := &fakeParser{addr: tile.Address{Level: 4, Row: 2, Col: 1}}

	h := newTileHandler(parser, fetcher)
	rw := newFakeResponseWriter()
	h.ServeHTTP(rw, &http.Request{})

	if rw.status != 404 {
		t.Fatalf("Expected 404 response, but got %d", rw.status)
	}
	var body map[string]string
	if err := json.Unmarshal(rw.body, &body); err != nil {
		t.Fatalf("404 body is not JSON: %s", err)
	}
	if body["error"] != "Tile not found" {
		t.Fatalf("Unexpected 404 body: %#v", body)
	}
}

func TestTileHandlerTimeout(t *testing.T) {
	fetcher := &fakeFetcher{err: context.DeadlineExceeded}
	parser := &fakeParser{addr: tile.Address{Level: 4, Row: 2, Col: 1}}

	h := newTileHandler(parser, fetcher)
	rw := newFakeResponseWriter()
	h.ServeHTTP(rw, &http.Request{})

	if rw.status != 504 {
		t.Fatalf("Expected 504 response, but got %d", rw.status)
	}
	if rw.statusWrites != 1 {
		t.Fatalf("Expected exactly one response write, got %d", rw.statusWrites)
	}
}

func TestTileHandlerGatewayError(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	parser := &fakeParser{addr: tile.Address{Level: 4, Row: 2, Col: 1}}

	h := newTileHandler(parser, fetcher)
	rw := newFakeResponseWriter()
	h.ServeHTTP(rw, &http.Request{})

	if rw.status != 502 {
		t.Fatalf("Expected 502 response, but got %d", rw.status)
	}
	var body map[string]string
	if err := json.Unmarshal(rw.body, &body); err != nil {
		t.Fatalf("502 body is not JSON: %s", err)
	}
	if body["error"] != "connection refused" {
		t.Fatalf("Unexpected 502 body: %#v", body)
	}
}

func TestTileHandlerBadCoordinate(t *testing.T) {
	fetcher := &fakeFetcher{tiles: make(map[tile.Native][]byte)}

	r := mux.NewRouter()
	r.Handle("/tile/{level}/{row}/{col}", newTileHandler(&TileMuxParser{}, fetcher))

	req := httptest.NewRequest("GET", "/tile/4/abc/1", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Code != 400 {
		t.Fatalf("Expected 400 response, but got %d", rw.Code)
	}
}

func TestQueryRejection(t *testing.T) {
	rw := newFakeResponseWriter()
	QueryRejectionHandler().ServeHTTP(rw, &http.Request{})

	if rw.status != 400 {
		t.Fatalf("Expected 400 response, but got %d", rw.status)
	}
	var body struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rw.body, &body); err != nil {
		t.Fatalf("Rejection body is not JSON: %s", err)
	}
	if body.Error.Code != 400 || body.Error.Message != "Query operation not supported for offline terrain" {
		t.Fatalf("Unexpected rejection body: %s", rw.body)
	}
}

func TestStatusHandler(t *testing.T) {
	rw := newFakeResponseWriter()
	StatusHandler("WorldElevation").ServeHTTP(rw, &http.Request{})

	if rw.status != 200 {
		t.Fatalf("Expected 200 response, but got %d", rw.status)
	}
	var body map[string]string
	if err := json.Unmarshal(rw.body, &body); err != nil {
		t.Fatalf("Status body is not JSON: %s", err)
	}
	if body["status"] != "ok" || body["service"] != "WorldElevation" {
		t.Fatalf("Unexpected status body: %#v", body)
	}
}

func TestNotFoundHandler(t *testing.T) {
	rw := newFakeResponseWriter()
	NotFoundHandler().ServeHTTP(rw, &http.Request{})

	if rw.status != 404 {
		t.Fatalf("Expected 404 response, but got %d", rw.status)
	}
}

type fakeStore struct {
	tiles   map[tile.Native][]byte
	openErr error
}

func (f *fakeStore) Info(string) (*archive.Info, error) {
	return nil, f.openErr
}

func (f *fakeStore) ReadTile(name string, addr tile.Native) (*archive.TileData, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	body, ok := f.tiles[addr]
	if !ok {
		return nil, nil
	}
	return &archive.TileData{Body: body, ContentType: "application/octet-stream"}, nil
}

func (f *fakeStore) HealthCheck() error {
	return f.openErr
}

func archiveRouter(store archive.Store) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/tiles/{fileName}/{level}/{col}/{row}", ArchiveTileHandler(store, &log.NilJsonLogger{}))
	return r
}

func TestArchiveTileHandlerHit(t *testing.T) {
	native := tile.Native{Level: 7, Col: 11, Row: 13}
	store := &fakeStore{tiles: map[tile.Native][]byte{native: []byte("raw")}}

	req := httptest.NewRequest("GET", "/tiles/terrain/7/11/13", nil)
	rw := httptest.NewRecorder()
	archiveRouter(store).ServeHTTP(rw, req)

	if rw.Code != 200 {
		t.Fatalf("Expected 200 response, but got %d", rw.Code)
	}
	if rw.Body.String() != "raw" {
		t.Fatalf("Unexpected body: %q", rw.Body.String())
	}
}

func TestArchiveTileHandlerMiss(t *testing.T) {
	store := &fakeStore{tiles: make(map[tile.Native][]byte)}

	req := httptest.NewRequest("GET", "/tiles/terrain/7/11/13", nil)
	rw := httptest.NewRecorder()
	archiveRouter(store).ServeHTTP(rw, req)

	if rw.Code != 404 {
		t.Fatalf("Expected 404 response, but got %d", rw.Code)
	}
}

func TestArchiveTileHandlerOpenFailure(t *testing.T) {
	store := &fakeStore{openErr: &archive.OpenError{
		Name: "terrain",
		Err:  fmt.Errorf("no such file"),
	}}

	req := httptest.NewRequest("GET", "/tiles/terrain/7/11/13", nil)
	rw := httptest.NewRecorder()
	archiveRouter(store).ServeHTTP(rw, req)

	if rw.Code != 500 {
		t.Fatalf("Expected 500 response, but got %d", rw.Code)
	}
}

type capturingMetricsWriter struct {
	last *state.RequestState
}

func (c *capturingMetricsWriter) WriteTileState(reqState *state.RequestState) {
	c.last = reqState
}

func TestTileHandlerRecordsCacheActivity(t *testing.T) {
	native := tile.Native{Level: 10, Col: 5, Row: 3}
	fetcher := &fakeFetcher{
		tiles:       map[tile.Native][]byte{native: []byte("elevation bytes")},
		cacheLookup: 3 * time.Millisecond,
		cacheSet:    2 * time.Millisecond,
		cacheErr:    true,
	}
	parser := &fakeParser{addr: tile.Address{Level: 10, Row: 3, Col: 5}}
	mw := &capturingMetricsWriter{}

	h := TileHandler(parser, tile.SchemeXYZ, fetcher, mw, &log.NilJsonLogger{})
	h.ServeHTTP(newFakeResponseWriter(), &http.Request{})

	if mw.last == nil {
		t.Fatal("Expected the handler to emit request state")
	}
	if mw.last.Duration.CacheLookup != 3*time.Millisecond {
		t.Fatalf("Cache lookup duration not recorded: %v", mw.last.Duration.CacheLookup)
	}
	if mw.last.Duration.CacheSet != 2*time.Millisecond {
		t.Fatalf("Cache set duration not recorded: %v", mw.last.Duration.CacheSet)
	}
	if !mw.last.IsCacheLookupError {
		t.Fatal("Cache lookup error not recorded")
	}
}

type nilResultParser struct{}

func (nilResultParser) Parse(_ *http.Request) (*ParseResult, error) {
	return nil, errors.New("parser blew up")
}

func TestTileHandlerNilParseResult(t *testing.T) {
	fetcher := &fakeFetcher{tiles: make(map[tile.Native][]byte)}

	h := newTileHandler(nilResultParser{}, fetcher)
	rw := newFakeResponseWriter()
	h.ServeHTTP(rw, &http.Request{})

	if rw.status != 500 {
		t.Fatalf("Expected 500 response, but got %d", rw.status)
	}
}

func TestAllowAllOriginsWithoutOriginHeader(t *testing.T) {
	wrapped := AllowAllOrigins(StatusHandler("WorldElevation"))

	req := httptest.NewRequest("GET", "/health", nil)
	rw := httptest.NewRecorder()
	wrapped.ServeHTTP(rw, req)

	if got := rw.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Expected permissive origin header on a request without Origin, got %q", got)
	}
}
