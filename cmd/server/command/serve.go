package command

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/shiva/shiptrack/config"
	"github.com/shiva/shiptrack/internal/events"
	"github.com/shiva/shiptrack/internal/handler"
	"github.com/shiva/shiptrack/internal/metrics"
	"github.com/shiva/shiptrack/internal/middleware"
	"github.com/shiva/shiptrack/internal/repository"
	"github.com/shiva/shiptrack/internal/service"
	"github.com/shiva/shiptrack/pkg/cache"
	"github.com/shiva/shiptrack/pkg/db"
	"github.com/shiva/shiptrack/pkg/geo"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

// stores groups the two store roles so both drivers can fill them.
type stores struct {
	shipments     service.ShipmentStore
	notifications service.NotificationStore
}

func runServe(_ *cobra.Command, _ []string) error {
	// ── Load configuration ──────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	metrics.Register()

	// ── Connect to PostgreSQL ───────────────────────────
	var (
		pgPool *pgxpool.Pool
		st     stores
	)
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		mem := repository.NewMemoryStore()
		st = stores{shipments: mem, notifications: mem}
		log.Println("⚠ Using in-memory store; data is lost on restart")
	default:
		pgPool, err = db.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pgPool.Close()
		log.Println("✓ PostgreSQL connected")

		if err := repository.Migrate(ctx, pgPool); err != nil {
			return err
		}
		st = stores{
			shipments:     repository.NewShipmentRepository(pgPool),
			notifications: repository.NewNotificationRepository(pgPool),
		}
	}

	// ── Connect to Redis (optional) ─────────────────────
	var (
		redisClient *redis.Client
		viewCache   service.ViewCache
	)
	if cfg.Redis.Enabled() && cfg.Tracking.CacheTTL > 0 {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		viewCache = repository.NewTrackingCache(redisClient, cfg.Tracking.CacheTTL)
		log.Printf("✓ Redis connected (tracking cache TTL %s)", cfg.Tracking.CacheTTL)
	}

	// ── Kafka (optional) ────────────────────────────────
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled() {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.PublishTimeout)
		log.Printf("✓ Publishing events to %s on %v", cfg.Kafka.Topic, cfg.Kafka.Brokers)
	}
	defer publisher.Close()

	// ── Initialize layers ───────────────────────────────
	cities := geo.NewCityDirectory(geo.DefaultCities)

	trackingSvc := service.NewTrackingService(st.shipments, viewCache, publisher, cfg.Tracking)
	shipmentSvc := service.NewShipmentService(st.shipments, cities, viewCache, publisher, cfg.Tracking)
	notifySvc := service.NewNotificationService(st.notifications, cfg.Tracking)

	router := handler.NewRouter(handler.Handlers{
		Tracking: handler.NewTrackingHandler(trackingSvc),
		Shipment: handler.NewShipmentHandler(shipmentSvc),
		Notify:   handler.NewNotifyHandler(notifySvc),
		Health:   healthHandler(pgPool, redisClient),
		Metrics:  promhttp.Handler(),
	})

	// Request logging and CORS wrap the router so they also see unmatched routes.
	root := middleware.CORS(middleware.RequestLogger(router))

	// ── Start HTTP server ───────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Server.ServerAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// ── Graceful shutdown ───────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}
	log.Println("⏳ Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("✅ Server gracefully stopped")
	return nil
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// healthHandler checks PG and Redis connectivity. A nil dependency is
// reported as disabled rather than unhealthy.
func healthHandler(pgPool *pgxpool.Pool, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Services: make(map[string]string),
		}

		switch {
		case pgPool == nil:
			resp.Services["postgres"] = "disabled"
		case db.HealthCheck(r.Context(), pgPool) != nil:
			resp.Status = "degraded"
			resp.Services["postgres"] = "unhealthy"
		default:
			resp.Services["postgres"] = "healthy"
		}

		switch {
		case redisClient == nil:
			resp.Services["redis"] = "disabled"
		case cache.HealthCheck(r.Context(), redisClient) != nil:
			resp.Status = "degraded"
			resp.Services["redis"] = "unhealthy"
		default:
			resp.Services["redis"] = "healthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	}
}
