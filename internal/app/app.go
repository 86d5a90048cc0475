package app

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dmolner/tienda-moda/internal/data"
	"github.com/dmolner/tienda-moda/internal/domain/catalog"
	"github.com/dmolner/tienda-moda/internal/domain/checkout"
	"github.com/dmolner/tienda-moda/internal/domain/token"
	"github.com/dmolner/tienda-moda/internal/domain/user"
	"github.com/dmolner/tienda-moda/internal/domain/viewed"
	"github.com/dmolner/tienda-moda/internal/handler"
	"github.com/dmolner/tienda-moda/pkg/health"
	"github.com/dmolner/tienda-moda/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// Static data: user table and catalog, loaded once. Any failure here is
	// a configuration error and the process must not serve traffic.
	users, cs, err := loadData(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "load data")
	}
	lg.Info("Data loaded",
		zap.Int("users", users.Len()),
		zap.Int("products", cs.Len()),
	)

	// Domain services.
	tokens := token.NewService([]byte(cfg.Secret), cfg.TokenTTL)
	checkoutSvc := checkout.NewService(cs)
	viewedStore := viewed.NewStore(0)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddReadinessCheck("catalog", time.Second, func(context.Context) error {
		if cs.Len() == 0 {
			return errors.New("catalog is empty")
		}
		return nil
	})
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// HTTP surface.
	h := handler.New(users, cs, tokens, checkoutSvc, viewedStore)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	instrumented := otelhttp.NewHandler(mux, "tienda-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(instrumented,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// loadData reads the user table and catalog concurrently. Configured file
// paths win; the embedded fixtures are the fallback so the server runs out
// of the box.
func loadData(ctx context.Context, cfg *Config) (*user.Store, *catalog.Store, error) {
	var (
		users *user.Store
		cs    *catalog.Store
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if cfg.UsersFile != "" {
			users, err = user.Load(cfg.UsersFile)
		} else {
			users, err = user.Parse(bytes.NewReader(data.Users))
		}
		return errors.Wrap(err, "users")
	})
	g.Go(func() error {
		var err error
		if cfg.CatalogFile != "" {
			cs, err = catalog.Load(cfg.CatalogFile)
		} else {
			cs, err = catalog.Parse(bytes.NewReader(data.Catalog))
		}
		return errors.Wrap(err, "catalog")
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return users, cs, nil
}
