package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Vovarama1992/inbox-sync-core/internal/assistai"
	"github.com/Vovarama1992/inbox-sync-core/internal/config"
	"github.com/Vovarama1992/inbox-sync-core/internal/inbox"
	"github.com/Vovarama1992/inbox-sync-core/internal/prefs"
	"github.com/Vovarama1992/inbox-sync-core/internal/push"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("INBOX_CONFIG"))
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if cfg.APIURL == "" {
		log.Fatal("INBOX_API_URL is not set")
	}

	logger, err := buildLogger(cfg.LogDev)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- filter persistence ---
	var filterStore inbox.FilterStore
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db open error", zap.Error(err))
		}
		defer db.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			logger.Fatal("db ping error", zap.Error(err))
		}
		filterStore = prefs.NewPostgresStore(db)
	} else {
		logger.Warn("DATABASE_URL not set, agent filter will not survive restarts")
		filterStore = prefs.NewMemoryStore()
	}

	// --- inbox module wiring ---
	upstream := assistai.NewClient(cfg.APIURL, cfg.APIToken)

	notifier := inbox.NotifierFunc(func(m inbox.Mutation) {
		logger.Named("notify").Info("new inbound message",
			zap.String("sessionId", m.SessionID))
	})

	var channel *push.Channel
	var joiner inbox.Joiner
	svcHolder := &serviceHolder{}
	if cfg.PushURL != "" {
		channel = push.NewChannel(cfg.PushURL, cfg.APIToken, svcHolder.dispatch, logger.Named("push"))
		joiner = channel
	}

	svc := inbox.NewService(upstream, joiner, filterStore, notifier, logger.Named("inbox"))
	svcHolder.svc = svc

	poller := inbox.NewPollScheduler(upstream, svc, cfg.PollInterval, logger.Named("poll"))

	go svc.Run(ctx)
	go poller.Run(ctx)
	if channel != nil {
		go channel.Run(ctx)
	}

	if err := svc.Start(ctx); err != nil {
		logger.Fatal("startup error", zap.Error(err))
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	inbox.RegisterRoutes(r, inbox.NewHandler(svc))

	// --- health ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("port", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

// serviceHolder breaks the construction cycle between the push channel
// (needs a dispatch target) and the service (needs the channel as joiner).
type serviceHolder struct {
	svc *inbox.Service
}

func (h *serviceHolder) dispatch(ev inbox.PushEvent) {
	if h.svc != nil {
		h.svc.Dispatch(ev)
	}
}

func buildLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
