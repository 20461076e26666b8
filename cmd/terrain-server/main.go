package main

import (
	"context"
	golog "log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/bradfitz/gomemcache/memcache"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/namsral/flag"
	"github.com/oxtoacart/bpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/uxmanz/ArcgisTerrain-Server/pkg/archive"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/buffer"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/cache"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/config"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/fetch"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/handler"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/log"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/metrics"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/service"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/state"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/tile"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var listen, archiveListen, metricsListen string
	var poolNumEntries, poolEntrySize int
	var metricsStatsdAddr, metricsStatsdPrefix string

	cfg := config.Config{}

	systemLogger := golog.New(os.Stdout, "", golog.LstdFlags|golog.LUTC|golog.Lmicroseconds)
	hostname, err := os.Hostname()
	if err != nil {
		systemLogger.Fatalf("ERROR: Cannot find hostname to use for logger")
	}
	// use this logger everywhere.
	logger := log.NewJsonLogger(systemLogger, hostname)

	f := flag.NewFlagSetWithEnvPrefix(os.Args[0], "TERRAIN", 0)
	f.Var(&cfg, "conf",
		`JSON object configuring the service.
   Service {
     Name string          Published service name.
     Description string   Service description text.
     Copyright string     Copyright text reported in metadata.
     MinElevation float   Lower elevation bound reported in metadata.
     MaxElevation float   Upper elevation bound reported in metadata.
     NodataValue float    No-data sentinel reported in metadata.
     Scheme string        Tile row convention, "xyz" (default) or "tms".
   }
   Archive {
     Base string          Directory of archives, or s3://bucket/prefix.
     Name string          Archive file name (without extension).
     Healthcheck string   Archive to probe on startup and healthchecks.
     Region string        Aws region for s3 bases.
   }
   Relay {                Present to relay tile reads over HTTP.
     Upstream string      URL pattern with {name} {z} {x} {y}.
   }
   Cache {                Present to cache relayed tiles.
     Type string          "memcache" or "redis".
     Servers []string     Cache server addresses.
     ExpirationSeconds int
   }
`)
	f.StringVar(&listen, "listen", ":8080", "interface and port for the service facade")
	f.StringVar(&archiveListen, "archive-listen", "", "interface and port for the archive-facing tile server, empty to disable")
	f.StringVar(&metricsListen, "metrics-listen", "", "interface and port for prometheus metrics, empty to disable")
	f.String("config", "", "Config file to read values from.")

	f.IntVar(&poolNumEntries, "poolnumentries", 0, "Number of buffers to pool.")
	f.IntVar(&poolEntrySize, "poolentrysize", 0, "Size of each buffer in pool.")

	f.StringVar(&metricsStatsdAddr, "metrics-statsd-addr", "", "host:port to use to send data to statsd")
	f.StringVar(&metricsStatsdPrefix, "metrics-statsd-prefix", "", "prefix to prepend to metrics")

	err = f.Parse(os.Args[1:])
	if err == flag.ErrHelp {
		return
	} else if err != nil {
		logFatalCfgErr(logger, "Unable to parse input command line, environment or config: %s", err.Error())
	}

	if err := cfg.Validate(); err != nil {
		logFatalCfgErr(logger, "%s", err.Error())
	}

	scheme, err := tile.ParseScheme(cfg.Service.Scheme)
	if err != nil {
		logFatalCfgErr(logger, "%s", err.Error())
	}

	// buffer manager shared by all handlers
	var bufferManager buffer.Manager
	if poolNumEntries > 0 && poolEntrySize > 0 {
		bufferManager = bpool.NewSizedBufferPool(poolNumEntries, poolEntrySize)
	} else {
		bufferManager = &buffer.OnDemand{}
	}

	// metrics writer configuration
	var mw metrics.MetricsWriter = &metrics.NilMetricsWriter{}
	var promRegistry *prometheus.Registry
	if metricsListen != "" {
		promRegistry = prometheus.NewRegistry()
		mw = metrics.NewPrometheusMetricsWriter(promRegistry)
	} else if metricsStatsdAddr != "" {
		udpAddr, err := net.ResolveUDPAddr("udp4", metricsStatsdAddr)
		if err != nil {
			logFatalCfgErr(logger, "Invalid metrics-statsd-addr %s: %s", metricsStatsdAddr, err)
		}
		mw = metrics.NewStatsdMetricsWriter(udpAddr, metricsStatsdPrefix, logger)
	}

	store := newStore(cfg, logger)

	// inspect the archive once at startup. A failure leaves the
	// service in the degraded null-extent state instead of exiting.
	cell := state.NewCell()
	healthName := cfg.HealthcheckArchive()
	if info, err := store.Info(healthName); err != nil {
		logger.Warning(log.LogCategory_ArchiveError, "Archive inspection failed for %s, serving degraded metadata: %s", healthName, err.Error())
	} else {
		zoom := state.ZoomRange{Min: info.MinZoom, Max: info.MaxZoom}
		cell.Replace(state.ResolveBounds(&info.Bounds, &zoom))
		logger.Info("Archive %s inspected: bounds %v zoom %d-%d", healthName, info.Bounds, info.MinZoom, info.MaxZoom)
	}

	synth := service.NewSynthesizer(service.Config{
		Name:         cfg.Service.Name,
		Description:  cfg.Service.Description,
		Copyright:    cfg.Service.Copyright,
		MinElevation: cfg.Service.MinElevation,
		MaxElevation: cfg.Service.MaxElevation,
		NoDataValue:  cfg.Service.NoDataValue,
	}, cell)

	var fetcher fetch.Fetcher
	if cfg.Relay != nil {
		var tileCache cache.Cache
		if cfg.Cache != nil {
			tileCache = newTileCache(cfg.Cache, logger)
		}
		fetcher = fetch.NewRelay(nil, cfg.Relay.Upstream, cfg.Archive.Name, bufferManager, tileCache)
	} else {
		fetcher = fetch.NewDirect(store, cfg.Archive.Name)
	}

	r := mux.NewRouter()
	r.NotFoundHandler = handler.NotFoundHandler()

	// query-style requests are rejected wherever they appear in the
	// path, registered first so it wins over the other routes
	r.MatcherFunc(func(req *http.Request, _ *mux.RouteMatch) bool {
		return strings.Contains(req.URL.Path, "/query")
	}).Handler(handler.QueryRejectionHandler())

	tileHandler := handler.TileHandler(&handler.TileMuxParser{}, scheme, fetcher, mw, logger)

	r.Handle("/arcgis/rest/services",
		gziphandler.GzipHandler(handler.CatalogHandler(synth, logger))).Methods("GET")
	r.Handle("/arcgis/rest/services/{serviceName}/ImageServer",
		gziphandler.GzipHandler(handler.ServiceInfoHandler(synth, logger))).Methods("GET")
	r.Handle("/arcgis/rest/services/{serviceName}/ImageServer/tile/{level}/{row}/{col}",
		tileHandler).Methods("GET")
	// debug alias
	r.Handle("/tile/{level}/{row}/{col}", tileHandler).Methods("GET")

	statusHandler := handler.StatusHandler(cfg.Service.Name)
	r.Handle("/health", statusHandler).Methods("GET")
	r.Handle("/", statusHandler).Methods("GET")

	facade := handler.AllowAllOrigins(handlers.CORS()(log.LoggingMiddleware(logger)(r)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	servers := make([]*http.Server, 0, 3)

	facadeServer := &http.Server{Addr: listen, Handler: facade}
	servers = append(servers, facadeServer)
	g.Go(func() error {
		logger.Info("Service facade listening on %s", listen)
		if err := facadeServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if archiveListen != "" {
		ar := mux.NewRouter()
		ar.Handle("/tiles/{fileName}/{level}/{col}/{row}",
			handler.ArchiveTileHandler(store, logger)).Methods("GET")
		ar.Handle("/healthcheck", handler.HealthCheckHandler(store, logger)).Methods("GET")

		archiveServer := &http.Server{Addr: archiveListen, Handler: handler.AllowAllOrigins(handlers.CORS()(ar))}
		servers = append(servers, archiveServer)
		g.Go(func() error {
			logger.Info("Archive tile server listening on %s", archiveListen)
			if err := archiveServer.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	if metricsListen != "" {
		mr := http.NewServeMux()
		mr.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

		metricsServer := &http.Server{Addr: metricsListen, Handler: mr}
		servers = append(servers, metricsServer)
		g.Go(func() error {
			logger.Info("Metrics server listening on %s", metricsListen)
			if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	select {
	case <-interrupt:
		logger.Info("Received termination signal, starting graceful shutdown")
	case <-ctx.Done():
		logger.Info("Server group stopped, starting graceful shutdown")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warning(log.LogCategory_ConfigError, "Server shutdown error: %s", err.Error())
		}
	}

	if err := g.Wait(); err != nil {
		systemLogger.Fatalf("ERROR: Server group failed: %s", err.Error())
	}
}

// newStore builds the archive store for a local directory or an
// s3://bucket/prefix base.
func newStore(cfg config.Config, logger log.JsonLogger) archive.Store {
	base := cfg.Archive.Base
	healthName := cfg.HealthcheckArchive()

	if !strings.HasPrefix(base, "s3://") {
		return archive.NewDirStore(base, healthName)
	}

	trimmed := strings.TrimPrefix(base, "s3://")
	bucket, prefix, _ := strings.Cut(trimmed, "/")
	if bucket == "" {
		logFatalCfgErr(logger, "S3 archive base missing bucket: %s", base)
	}

	var awsSession *session.Session
	var err error
	if cfg.Archive.Region != nil {
		awsSession, err = session.NewSessionWithOptions(session.Options{
			Config: aws.Config{Region: cfg.Archive.Region},
		})
	} else {
		awsSession, err = session.NewSession()
	}
	if err != nil {
		logFatalCfgErr(logger, "Unable to set up AWS session: %s", err.Error())
	}

	return archive.NewS3Store(s3.New(awsSession), bucket, prefix, healthName)
}

func newTileCache(cc *config.CacheConfig, logger log.JsonLogger) cache.Cache {
	switch cc.Type {
	case "memcache":
		return cache.NewMemcache(memcache.New(cc.Servers...), int32(cc.ExpirationSeconds))
	case "redis":
		return cache.NewRedis(redis.NewClient(&redis.Options{
			Addr: cc.Servers[0],
		}), time.Duration(cc.ExpirationSeconds)*time.Second)
	default:
		logFatalCfgErr(logger, "Unknown cache type: %s", cc.Type)
		return nil
	}
}

func logFatalCfgErr(logger log.JsonLogger, msg string, xs ...interface{}) {
	logger.Error(log.LogCategory_ConfigError, msg, xs...)
	os.Exit(1)
}
