package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/maxsupermanhd/regionmap/definitions"
	imagecache "github.com/maxsupermanhd/regionmap/imageCache"
	"github.com/maxsupermanhd/regionmap/primitives"
	"github.com/maxsupermanhd/regionmap/region"
	"github.com/maxsupermanhd/regionmap/render/dispatchers"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

type server struct {
	ctx      context.Context
	cfg      Config
	l        *zap.Logger
	defs     *liveDefinitions
	cache    *imagecache.ImageCache
	pipeline *dispatchers.PriorityPipelineRender
	renders  singleflight.Group
	limiter  *rate.Limiter
	started  time.Time
}

func newServer(ctx context.Context, cfg Config, l *zap.Logger) (*server, error) {
	d, err := loadDefinitions(cfg.Render.Definitions)
	if err != nil {
		return nil, err
	}
	limit := rate.Inf
	if cfg.Web.RenderRate > 0 {
		limit = rate.Limit(cfg.Web.RenderRate)
	}
	s := &server{
		ctx:     ctx,
		cfg:     cfg,
		l:       l,
		defs:    newLiveDefinitions(d),
		limiter: rate.NewLimiter(limit, max(cfg.Web.RenderBurst, 1)),
		started: time.Now(),
	}
	s.cache = imagecache.NewImageCache(l.Named("cache"), imagecache.Config{
		Root:             cfg.Web.CacheRoot,
		AutosaveInterval: cfg.Web.AutosaveInterval.Duration,
	})
	s.pipeline = dispatchers.NewPriorityRenderer(dispatchers.PipelineConfig{
		RenderWorkers: cfg.Render.Workers,
		FetchWorkers:  2,
		Definitions:   s.definitions,
	}, s.renderOptions(""), s.fetchRegion, s.storeRendered)
	return s, nil
}

func (s *server) close() {
	s.pipeline.Close()
}

func (s *server) dimensionDir(dim string) string {
	return region.DimensionPath(s.cfg.World.Path, dim)
}

// definitions returns the set loaded right now, a render keeps using it
// even if the file is reloaded meanwhile
func (s *server) definitions() definitions.Resolver {
	return s.defs.Load()
}

func (s *server) renderOptions(shader string) dispatchers.Options {
	o := s.cfg.renderOptions(s.definitions(), s.l.Named("render"))
	o.Shader = shader
	return o
}

func (s *server) fetchRegion(loc primitives.ImageLocation) (*region.Region, error) {
	c := primitives.RegionCoords{X: loc.X, Z: loc.Z}
	return region.OpenAt(region.RegionPath(s.dimensionDir(loc.Dimension), c), c)
}

func (s *server) storeRendered(loc primitives.ImageLocation, res *dispatchers.RegionResult, err error) {
	if err != nil {
		s.l.Warn("background render failed", zap.Stringer("loc", loc), zap.Error(err))
		return
	}
	if ferr := res.Err(); ferr != nil {
		s.l.Debug("background render had failures", zap.Stringer("loc", loc), zap.Error(ferr))
	}
	s.cache.Set(loc, res.Image)
}

func (s *server) router() http.Handler {
	const dimPattern = `{dim:[a-z0-9_]+(?::[a-z0-9_]+)?}`
	router := mux.NewRouter()
	router.HandleFunc("/robots.txt", robotsHandler).Methods("GET")
	router.HandleFunc("/tiles/"+dimPattern+"/{variant:[a-z0-9_]+}/{s:[0-9]+}/{x:-?[0-9]+}/{z:-?[0-9]+}.png", s.tileHandler).Methods("GET")
	router.HandleFunc("/api/v1/status", apiHandle(s.apiStatus)).Methods("GET")
	router.HandleFunc("/api/v1/shaders", apiHandle(s.apiShaders)).Methods("GET")
	router.HandleFunc("/api/v1/regions/"+dimPattern, apiHandle(s.apiRegions)).Methods("GET")

	router1 := handlers.ProxyHeaders(router)
	router2 := handlers.CompressHandler(router1)
	router3 := handlers.CustomLoggingHandler(io.Discard, router2, s.requestLogger)
	router4 := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(router3)
	return requestID(router4)
}

func robotsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("User-agent: *\nDisallow: /\n"))
}

// requestID tags every request with X-Request-Id, keeping one sent by
// a proxy in front of us
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-Id", id)
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func (s *server) requestLogger(_ io.Writer, params handlers.LogFormatterParams) {
	r := params.Request
	s.l.Info("request",
		zap.String("id", r.Header.Get("X-Request-Id")),
		zap.String("method", r.Method),
		zap.Int("status", params.StatusCode),
		zap.String("uri", r.RequestURI),
		zap.Int("size", params.Size),
		zap.String("remote", r.RemoteAddr),
		zap.String("ua", r.UserAgent()))
}

// runWeb serves until ctx is done, cache is saved on the way out
func runWeb(ctx context.Context, s *server) error {
	cacheDone := make(chan struct{})
	go func() {
		s.cache.Run(ctx)
		close(cacheDone)
	}()
	if s.cfg.Web.Watch {
		if err := s.watch(ctx); err != nil {
			s.l.Warn("file watcher not started", zap.Error(err))
		}
	}
	websrv := http.Server{
		Addr:    s.cfg.Web.Listen,
		Handler: s.router(),
	}
	errc := make(chan error, 1)
	go func() {
		s.l.Info("web server listens", zap.String("addr", s.cfg.Web.Listen))
		if err := websrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := websrv.Shutdown(shutdownCtx); serr != nil {
		s.l.Error("web server shutdown failed", zap.Error(serr))
	}
	<-cacheDone
	return err
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run http tile server for the configured world",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "address to listen on (overrides config)"},
			&cli.StringFlag{Name: "world", Usage: "world save folder (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			cfg := loadedConfig
			if c.IsSet("listen") {
				cfg.Web.Listen = c.String("listen")
			}
			if c.IsSet("world") {
				cfg.World.Path = c.String("world")
			}
			if cfg.Web.Listen == "" {
				return errors.New("listen address is empty")
			}
			ctx, cancel := signalContext(c.Context)
			defer cancel()
			s, err := newServer(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer s.close()
			return runWeb(ctx, s)
		},
	}
}
