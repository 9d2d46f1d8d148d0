// Command paygate-server serves a payment-protected endpoint.
//
// Configuration is read from the environment (and .env). Sending SIGHUP
// reloads the offer configuration without dropping in-flight requests.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	x402 "github.com/x402-foundation/x402-paygate"
	"github.com/x402-foundation/x402-paygate/cache/redis"
	"github.com/x402-foundation/x402-paygate/config"
	"github.com/x402-foundation/x402-paygate/facilitators/coinbase"
	x402http "github.com/x402-foundation/x402-paygate/http"
	ginmw "github.com/x402-foundation/x402-paygate/http/gin"
	"github.com/x402-foundation/x402-paygate/metrics"
	"github.com/x402-foundation/x402-paygate/paygate"
	"github.com/x402-foundation/x402-paygate/settlement"
)

func main() {
	if err := run(); err != nil {
		slog.Error("paygate-server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	facilitator, closeFacilitator, err := newFacilitator(ctx, cfg, collector, logger)
	if err != nil {
		return err
	}
	defer closeFacilitator()

	observers := []paygate.Observer{paygate.NewLogObserver(logger), collector}
	if cfg.NatsURL != "" {
		nc, err := settlement.Connect(cfg.NatsURL, "paygate-server")
		if err != nil {
			return err
		}
		defer nc.Close()
		observers = append(observers, settlement.NewObserver(settlement.NewNATSPublisher(nc), logger))
		logger.Info("publishing settlement events", "nats", cfg.NatsURL)
	}
	observer := paygate.Observers(observers...)

	m, err := buildMiddleware(cfg, facilitator, observer)
	if err != nil {
		return err
	}
	snapshot := paygate.NewSnapshot(m)
	go reloadOnHangup(ctx, snapshot, logger)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(snapshot, reg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("paygate-server listening", "addr", srv.Addr, "offers", len(m.PriceTags()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newFacilitator builds the remote facilitator with metrics and, when
// configured, a supported-kinds cache.
func newFacilitator(ctx context.Context, cfg *config.Config, collector *metrics.Collector, logger *slog.Logger) (x402.Facilitator, func(), error) {
	facilitatorConfig := &x402http.FacilitatorConfig{URL: cfg.FacilitatorURL}
	if cfg.CDPAPIKeyID != "" {
		var err error
		facilitatorConfig, err = coinbase.CreateFacilitatorConfig(cfg.CDPAPIKeyID, cfg.CDPAPIKeySecret)
		if err != nil {
			return nil, nil, fmt.Errorf("coinbase facilitator: %w", err)
		}
	}
	facilitatorConfig.Timeout = cfg.FacilitatorTimeout

	client := x402http.NewFacilitatorClient(facilitatorConfig)
	logger.Info("using facilitator", "url", client.URL())

	facilitator := collector.Instrument(client)
	if cfg.SupportedCacheTTL <= 0 {
		return facilitator, func() {}, nil
	}

	opts := []x402.CacheOption{
		x402.WithSupportedTTL(cfg.SupportedCacheTTL),
		x402.WithCacheKey(client.Identifier()),
	}
	closer := func() {}
	if cfg.RedisAddr != "" {
		rdb, err := redis.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, x402.WithSupportedStore(redis.NewStore(rdb)))
		closer = func() { _ = rdb.Close() }
	}
	return x402.NewCachingFacilitator(facilitator, opts...), closer, nil
}

func buildMiddleware(cfg *config.Config, facilitator x402.Facilitator, observer paygate.Observer) (*paygate.Middleware, error) {
	tags, err := cfg.PriceTags()
	if err != nil {
		return nil, err
	}
	m, err := cfg.Middleware(paygate.New(facilitator, tags...).WithObserver(observer))
	if err != nil {
		return nil, err
	}
	if err := m.Validate().Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// reloadOnHangup rebuilds the offers from the environment on SIGHUP,
// keeping the facilitator and observers of the running configuration.
func reloadOnHangup(ctx context.Context, snapshot *paygate.Snapshot, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		}

		cfg, err := config.Load()
		if err != nil {
			logger.Error("reload failed", "error", err)
			continue
		}
		tags, err := cfg.PriceTags()
		if err != nil {
			logger.Error("reload failed", "error", err)
			continue
		}

		var reloadErr error
		snapshot.Update(func(current *paygate.Middleware) *paygate.Middleware {
			next, err := cfg.Middleware(current.WithPriceTag(tags...))
			if err == nil {
				err = next.Validate().Err()
			}
			if err != nil {
				reloadErr = err
				return current
			}
			reloadErr = nil
			return next
		})
		if reloadErr != nil {
			logger.Error("reload failed", "error", reloadErr)
			continue
		}
		logger.Info("configuration reloaded", "offers", len(tags))
	}
}

func newRouter(source paygate.Source, gatherer prometheus.Gatherer, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	paid := r.Group("/pay", ginmw.PaymentMiddleware(source, ginmw.WithLogger(logger)))
	paid.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "payment accepted",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	return r
}
