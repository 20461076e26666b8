package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/imkira/go-interpol"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/uxmanz/ArcgisTerrain-Server/pkg/buffer"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/cache"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/tile"
)

const (
	// RelayTimeout is the budget for one outbound tile request. The
	// in-flight request is aborted when it expires and the caller gets
	// context.DeadlineExceeded exactly once.
	RelayTimeout = 30 * time.Second

	// cacheTimeout is how long a cache lookup or store may take before
	// the relay proceeds without it.
	cacheTimeout = 100 * time.Millisecond
)

// Relay fetches tiles from a separate tile-serving process over HTTP.
// The upstream URL is an interpol pattern over {name}, {z}, {x} and
// {y}, e.g. http://localhost:9090/tiles/{name}/{z}/{x}/{y}.
type Relay struct {
	client     *http.Client
	urlPattern string
	name       string
	bufs       buffer.Manager
	tileCache  cache.Cache
}

func NewRelay(client *http.Client, urlPattern, archiveName string, bufs buffer.Manager, tileCache cache.Cache) *Relay {
	if client == nil {
		client = http.DefaultClient
	}
	if bufs == nil {
		bufs = &buffer.OnDemand{}
	}
	if tileCache == nil {
		tileCache = cache.Nil{}
	}
	return &Relay{
		client:     client,
		urlPattern: urlPattern,
		name:       archiveName,
		bufs:       bufs,
		tileCache:  tileCache,
	}
}

func (r *Relay) upstreamURL(addr tile.Native) (string, error) {
	return interpol.WithMap(r.urlPattern, map[string]string{
		"name": r.name,
		"z":    strconv.Itoa(addr.Level),
		"x":    strconv.Itoa(addr.Col),
		"y":    strconv.Itoa(addr.Row),
	})
}

func (r *Relay) Fetch(ctx context.Context, addr tile.Native) (*Result, error) {
	url, err := r.upstreamURL(addr)
	if err != nil {
		return nil, fmt.Errorf("building upstream url: %w", err)
	}

	cacheLookupStart := time.Now()
	cached, cacheErr := r.cacheGet(ctx, url)
	cacheLookup := time.Since(cacheLookupStart)
	if cached != nil {
		cached.CacheHit = true
		cached.CacheLookup = cacheLookup
		return cached, nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, RelayTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if timeoutCtx.Err() == context.DeadlineExceeded {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("relaying tile request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &Result{
			NotFound:         true,
			CacheLookup:      cacheLookup,
			CacheLookupError: cacheErr != nil,
		}, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("upstream tile server returned status %d", resp.StatusCode)
	}

	buf := r.bufs.Get()
	defer r.bufs.Put(buf)

	if _, err := io.Copy(buf, resp.Body); err != nil {
		if timeoutCtx.Err() == context.DeadlineExceeded {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("reading upstream body: %w", err)
	}

	// The buffer goes back to the pool, so the payload keeps its own
	// copy. Relayed payloads are always opaque bytes regardless of
	// what the upstream reported.
	body := make([]byte, buf.Len())
	copy(body, buf.Bytes())

	result := &Result{
		Payload: &Payload{
			Body:        body,
			ContentType: "application/octet-stream",
		},
		CacheLookup:      cacheLookup,
		CacheLookupError: cacheErr != nil,
	}

	cacheSetStart := time.Now()
	r.cacheSet(ctx, url, result)
	result.CacheSet = time.Since(cacheSetStart)

	return result, nil
}

// cachedPayload is the msgpack shape stored in the byte cache.
type cachedPayload struct {
	Body        []byte
	ContentType string
}

// cacheGet returns a cached result, or nil on a miss. The error is
// reported for bookkeeping only; a cache error is still a miss and
// the relay path stays authoritative.
func (r *Relay) cacheGet(ctx context.Context, key string) (*Result, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	raw, err := r.tileCache.Get(timeoutCtx, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var cp cachedPayload
	if err := msgpack.Unmarshal(raw, &cp); err != nil {
		return nil, err
	}

	return &Result{
		Payload: &Payload{
			Body:        cp.Body,
			ContentType: cp.ContentType,
		},
	}, nil
}

func (r *Relay) cacheSet(ctx context.Context, key string, result *Result) {
	raw, err := msgpack.Marshal(&cachedPayload{
		Body:        result.Payload.Body,
		ContentType: result.Payload.ContentType,
	})
	if err != nil {
		return
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	// Best effort; a failed set only costs a future relay.
	_ = r.tileCache.Set(timeoutCtx, key, raw)
}
