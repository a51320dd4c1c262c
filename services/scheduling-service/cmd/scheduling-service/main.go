package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lfmorais/agendo/libs/config"
	"github.com/lfmorais/agendo/libs/db"
	"github.com/lfmorais/agendo/libs/httpx"
	"github.com/lfmorais/agendo/libs/kafkax"
	otelx "github.com/lfmorais/agendo/libs/otel"
	"github.com/lfmorais/agendo/libs/runtime"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/booking"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/consumer"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/handlers"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/inbox"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/model"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/outbox"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	outboxRepo := outbox.NewRepository()
	store := storage.New(pool, outboxRepo)
	engine := booking.NewEngine(store, logger)

	brokers := config.String("KAFKA_BROKERS", "")
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_SECONDS", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	if topic := config.String("KAFKA_PLAN_TOPIC", "billing.plan.changed.v1"); brokers != "" && topic != "" {
		planConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "scheduling-service"),
			Topic:   topic,
		}, func(ctx context.Context, msg kafka.Message) error {
			var payload struct {
				ProviderID string `json:"provider_id"`
				Plan       string `json:"plan"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid plan event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			plan, ok := model.ParsePlan(payload.Plan)
			if payload.ProviderID == "" || !ok {
				logger.Error("missing or unknown plan event fields", "topic", msg.Topic)
				return nil
			}
			return store.UpsertProviderPlan(ctx, payload.ProviderID, plan)
		})
		go planConsumer.Run(ctx)
	}

	handler := handlers.NewSchedulingHandler(engine, store, logger)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)

	// The public booking surface is unauthenticated; it gets its own rate
	// limit so one hot booking link cannot starve the provider dashboard.
	publicLimit := publicRateLimit(logger)
	mux.Handle("/api/v1/public/slots", publicLimit(http.HandlerFunc(handler.PublicSlots)))
	mux.Handle("/api/v1/public/book", publicLimit(http.HandlerFunc(handler.PublicBook)))

	mux.HandleFunc("/api/v1/appointments", handler.Appointments)
	mux.HandleFunc("/api/v1/appointments/update", handler.Update)
	mux.HandleFunc("/api/v1/appointments/status", handler.Status)
	mux.HandleFunc("/api/v1/appointments/delete", handler.Delete)
	mux.HandleFunc("/api/v1/appointments/slots", handler.Slots)

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-Request-Id", handlers.ProviderIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
