package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/api"
	"github.com/Checker-Finance/client-portal/internal/archive"
	"github.com/Checker-Finance/client-portal/internal/audit"
	"github.com/Checker-Finance/client-portal/internal/auth"
	"github.com/Checker-Finance/client-portal/internal/client"
	"github.com/Checker-Finance/client-portal/internal/config"
	"github.com/Checker-Finance/client-portal/internal/fixtures"
	"github.com/Checker-Finance/client-portal/internal/httpclient"
	"github.com/Checker-Finance/client-portal/internal/jobs"
	"github.com/Checker-Finance/client-portal/internal/latency"
	"github.com/Checker-Finance/client-portal/internal/notification"
	"github.com/Checker-Finance/client-portal/internal/publisher"
	"github.com/Checker-Finance/client-portal/internal/push"
	"github.com/Checker-Finance/client-portal/internal/rabbitmq"
	"github.com/Checker-Finance/client-portal/internal/rate"
	"github.com/Checker-Finance/client-portal/internal/relationship"
	"github.com/Checker-Finance/client-portal/internal/report"
	"github.com/Checker-Finance/client-portal/internal/repository"
	internalsecrets "github.com/Checker-Finance/client-portal/internal/secrets"
	"github.com/Checker-Finance/client-portal/internal/session"
	"github.com/Checker-Finance/client-portal/internal/store"
	"github.com/Checker-Finance/client-portal/internal/trade"
	"github.com/Checker-Finance/client-portal/pkg/eventbus"
	"github.com/Checker-Finance/client-portal/pkg/logger"
	"github.com/Checker-Finance/client-portal/pkg/secrets"
	"github.com/Checker-Finance/client-portal/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [client-portal]...")

	decimal.MarshalJSONWithoutQuotes = true
	clock := clockwork.NewRealClock()
	bus := eventbus.NewWithLogger(logger.Named("eventbus"))

	// --- JWT signing key (AWS Secrets Manager, local fallback) ---
	var provider secrets.Provider
	if cfg.JWTSecretName != "" {
		p, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		provider = p
	}
	keyCache := secrets.NewCache[[]byte](cfg.CacheTTL)
	stopCleaner := make(chan struct{})
	go keyCache.StartCleaner(cfg.CleanupFreq, stopCleaner)

	keyResolver := internalsecrets.NewSigningKeyResolver(logg.Desugar(), cfg.Env, cfg.JWTSecretName, cfg.JWTSigningKey, provider, keyCache)
	signingKey, err := keyResolver.Resolve(ctx)
	if err != nil {
		logg.Fatalw("failed to resolve jwt signing key", "error", err)
	}
	tokens, err := auth.NewTokenIssuer(signingKey, cfg.JWTIssuer, auth.DefaultTokenTTL, clock)
	if err != nil {
		logg.Fatalw("failed to init token issuer", "error", err)
	}

	// --- Fixtures and repositories ---
	gen := fixtures.New(cfg.FixtureSeed)
	lat := latency.Disabled()
	if cfg.LatencyEnabled() {
		lat = latency.New(cfg.LatencyMin, cfg.LatencyMax, gen, clock)
	}
	userRecords, err := auth.SeedRecords(fixtures.Users(), cfg.BcryptCost)
	if err != nil {
		logg.Fatalw("failed to hash seed credentials", "error", err)
	}
	repos := repository.NewMemorySet(gen.Seed(clock.Now()), userRecords)

	// --- Session store (Redis when configured) and Postgres archive pool ---
	kv, pool, err := openStores(ctx, cfg, logg)
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}

	// --- Domain services ---
	authSvc := auth.NewService(repos.Users, tokens, lat, cfg.BcryptCost, logger.Named("auth"))
	sessions := session.NewRegistry(authSvc, kv, session.Options{
		Timeout:    cfg.SessionTimeout,
		StorageTTL: auth.DefaultTokenTTL,
		Clock:      clock,
		Bus:        bus,
		Logger:     logger.Named("session"),
	})
	trades := trade.NewService(trade.Deps{
		Instructions: repos.Instructions,
		Trades:       repos.Trades,
		Audit:        repos.Audit,
		Gen:          gen,
		Latency:      lat,
		Bus:          bus,
		Clock:        clock,
		Logger:       logger.Named("trade"),
	})
	clients := client.NewService(repos.Clients, gen, lat, logger.Named("client"))
	reports := report.NewService(repos.Statements, repos.Instructions, lat, clock, logger.Named("report"))
	audits := audit.NewService(repos.Audit, gen, lat, clock, logger.Named("audit"))
	rel := relationship.NewService(repos.Mandates, repos.Feedback, lat, clock, logger.Named("relationship"))

	// --- Notifications (local inbox, or pass-through to a remote API) ---
	localInbox := notification.NewLocal(repos.Notifications, lat, bus, clock, logger.Named("notification"))
	fanout := notification.NewFanout(bus, localInbox, logger.Named("notification"))
	var inbox notification.Service = localInbox
	if cfg.NotificationAPIOrigin != "" {
		outbound := rate.NewManager(rate.Config{RequestsPerSecond: 10, Burst: 20})
		exec := httpclient.New(logger.Named("notification"), outbound, nil, 3, "notification_api", notification.ErrorFromStatus)
		inbox = notification.NewClient(cfg.NotificationAPIOrigin, exec)
		logg.Infow("notifications proxied", "origin", cfg.NotificationAPIOrigin)
	}

	// --- Status progressor ---
	progressor := jobs.NewStatusProgressor(logger.Named("jobs"), repos.Instructions, trades, gen, clock, cfg.StatusTick, jobs.DefaultRules)
	go progressor.Start(ctx)

	// --- NATS JetStream (optional) ---
	var (
		nc     *nats.Conn
		bridge *publisher.Bridge
	)
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		js, err := nc.JetStream()
		if err != nil {
			logg.Fatalw("failed to init jetstream", "error", err)
		}
		if err := publisher.EnsureStream(js, cfg.NATSStream, cfg.NATSSubjectPrefix); err != nil {
			logg.Fatalw("failed to ensure stream", "stream", cfg.NATSStream, "error", err)
		}
		pub, err := publisher.New(nc, cfg.NATSSubjectPrefix, cfg.ServiceName, logger.Named("publisher"))
		if err != nil {
			logg.Fatalw("failed to init publisher", "error", err)
		}
		bridge = publisher.NewBridge(bus, pub, 5*time.Second, logger.Named("publisher"))
	}

	// --- RabbitMQ notification delivery (optional) ---
	var (
		amqpConn    *amqp.Connection
		amqpPub     *rabbitmq.Publisher
		amqpConsume *rabbitmq.Consumer
	)
	if cfg.AMQPURL != "" {
		conn, ch, err := rabbitmq.Dial(cfg.AMQPURL)
		if err != nil {
			logg.Fatalw("failed to connect to RabbitMQ", "error", err)
		}
		amqpConn = conn
		amqpPub, err = rabbitmq.NewPublisher(ch, cfg.AMQPExchange, bus, inbox, logger.Named("rabbitmq"))
		if err != nil {
			logg.Fatalw("failed to init rabbitmq publisher", "error", err)
		}
		amqpConsume = rabbitmq.NewConsumer(ch, cfg.AMQPInboundQueue, localInbox, logger.Named("rabbitmq"))
		if err := amqpConsume.Start(ctx); err != nil {
			logg.Fatalw("failed to start rabbitmq consumer", "error", err)
		}
	}

	// --- Instruction archive (optional) ---
	var writer *archive.InstructionWriter
	if pool != nil {
		writer = archive.NewInstructionWriter(pool, logger.Named("archive"), cfg.ServiceName)
		if err := writer.EnsureSchema(ctx); err != nil {
			logg.Fatalw("failed to ensure archive schema", "error", err)
		}
		writer.Subscribe(bus)
	}

	// --- Push (websocket) server ---
	hub := push.NewHub(bus, logger.Named("push"))
	pushSrv := push.NewServer(cfg.PushPort, push.NewHandler(hub, sessions, logger.Named("push")), cfg.HTTPReadTimeout, cfg.HTTPIdleTimeout)
	go func() {
		logg.Infof("push listening on :%d", cfg.PushPort)
		if err := pushSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatalw("push.listen_failed", "error", err)
		}
	}()

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
		ErrorHandler: api.ErrorHandler,
	})

	httpLog := logger.Named("api")
	api.RegisterRoutes(app, api.Deps{
		Logger:   httpLog,
		Store:    kv,
		NATS:     nc,
		Tokens:   tokens,
		Sessions: sessions,
		Auth: api.NewAuthHandler(httpLog, authSvc, sessions, rate.NewManager(rate.Config{
			RequestsPerSecond: cfg.LoginRatePerSec,
			Burst:             cfg.LoginRateBurst,
		})),
		Clients: api.NewClientHandler(httpLog, clients),
		Trades:  api.NewTradeHandler(httpLog, trades),
		Reports: api.NewReportHandler(httpLog, reports, audits),
		Inbox:   api.NewInboxHandler(httpLog, inbox, rel),
	})

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[client-portal] running",
		"env", cfg.Env,
		"session_timeout", cfg.SessionTimeout,
		"status_tick", cfg.StatusTick,
		"redis", cfg.RedisAddr != "",
		"nats", cfg.NATSURL != "",
		"amqp", cfg.AMQPURL != "",
		"archive", pool != nil)

	<-ctx.Done()
	logg.Info("shutting down [client-portal]...")

	close(stopCleaner)
	progressor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	hub.Close()
	if err := pushSrv.Shutdown(shutdownCtx); err != nil {
		logg.Warnw("push.shutdown_failed", "error", err)
	}

	if amqpConsume != nil {
		amqpConsume.Stop()
	}
	if amqpPub != nil {
		amqpPub.Close()
	}
	if amqpConn != nil {
		if err := amqpConn.Close(); err != nil {
			logg.Warnw("rabbitmq.close_failed", "error", err)
		}
	}
	if bridge != nil {
		bridge.Close()
	}
	if writer != nil {
		writer.Close()
	}
	fanout.Close()
	bus.Close()

	if nc != nil {
		if err := nc.Drain(); err != nil {
			logg.Warnw("nats.drain_failed", "error", err)
		}
	}
	if err := kv.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
	if pool != nil && cfg.RedisAddr == "" {
		pool.Close()
	}
}

// openStores picks the session KV (Redis when configured, else in-process)
// and opens the optional Postgres pool. pool is nil without DATABASE_URL.
func openStores(ctx context.Context, cfg *config.Config, logg *zap.SugaredLogger) (store.KV, *pgxpool.Pool, error) {
	pgCfg := store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}
	if cfg.DatabaseURL != "" {
		logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))
	}

	if cfg.RedisAddr != "" {
		hs, err := store.NewHybrid(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPass, cfg.DatabaseURL, pgCfg, logg.Desugar())
		if err != nil {
			return nil, nil, err
		}
		return hs, hs.PG, nil
	}

	kv := store.NewLocal(cfg.CleanupFreq)
	pool, err := store.NewPGPool(ctx, cfg.DatabaseURL, pgCfg)
	if err != nil {
		_ = kv.Close()
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	return kv, pool, nil
}
