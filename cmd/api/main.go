package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hoaquangthang/a-seed/backend/internal/config"
	"github.com/hoaquangthang/a-seed/backend/internal/handler"
	"github.com/hoaquangthang/a-seed/backend/internal/handler/ops"
	"github.com/hoaquangthang/a-seed/backend/internal/service/ai"
	authservice "github.com/hoaquangthang/a-seed/backend/internal/service/auth"
	chatservice "github.com/hoaquangthang/a-seed/backend/internal/service/chat"
	"github.com/hoaquangthang/a-seed/backend/internal/service/embedder"
	memoryservice "github.com/hoaquangthang/a-seed/backend/internal/service/memory"
	trendservice "github.com/hoaquangthang/a-seed/backend/internal/service/trend"
	"github.com/hoaquangthang/a-seed/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	turns, index, users, stats := buildStore(ctx, cfg.Store)

	// The memory index is derived from the turn log; re-derive it on boot so a
	// fresh deployment starts with full recall.
	if err := index.Rebuild(ctx); err != nil {
		log.Printf("warning: memory index rebuild failed: %v", err)
	}

	var provider embedder.Provider
	if cfg.Embedding.Enabled() {
		provider, err = embedder.New(ctx, cfg.Embedding)
		if err != nil {
			log.Printf("warning: embedding provider unavailable, memory recall disabled: %v", err)
			provider = nil
		} else {
			log.Printf("embedding provider %q initialized", cfg.Embedding.Provider)
		}
	} else {
		log.Println("embedding credentials not configured, memory recall disabled")
	}

	var generator chatservice.Generator
	if cfg.AI.Enabled() {
		aiSvc, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without reply generation - check the Ark environment variables")
		} else {
			generator = aiSvc
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("Ark credentials not configured, skipping AI initialization")
	}

	memorySvc := memoryservice.NewService(turns, index, provider, cfg.Memory.TopK)
	trendSvc := trendservice.NewService(turns, cfg.Trend.WindowDays, cfg.Trend.EscalateAfter)
	chatSvc := chatservice.NewService(turns, memorySvc, generator, trendSvc, cfg.Memory.HistoryWindow)
	authSvc := authservice.NewService(users, cfg.Auth)

	router := handler.NewRouter(authSvc, chatSvc, stats, ops.Providers{
		Generation: generator != nil,
		Embedding:  provider != nil,
		Postgres:   cfg.Store.DatabaseURL != "",
	})

	startServer(ctx, cfg.Server, router)
}

// buildStore picks Postgres when DATABASE_URL is set and the in-memory store
// otherwise. The in-memory store loses everything on restart; it exists for
// local development.
func buildStore(ctx context.Context, cfg config.StoreConfig) (store.TurnStore, store.MemoryIndex, store.UserStore, store.StatsReader) {
	if cfg.DatabaseURL == "" {
		log.Println("DATABASE_URL not set, using the in-memory store (state is lost on restart)")
		mem := store.NewMemStore()
		return mem, mem, mem, mem
	}

	pg, err := store.NewPgStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	log.Println("connected to postgres")
	return pg, pg, pg, pg
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("A SEED backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
