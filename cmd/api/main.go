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

	"github.com/kandedongma/foreigner-app/backend/internal/analytics"
	"github.com/kandedongma/foreigner-app/backend/internal/config"
	"github.com/kandedongma/foreigner-app/backend/internal/crypto"
	"github.com/kandedongma/foreigner-app/backend/internal/handler"
	chatservice "github.com/kandedongma/foreigner-app/backend/internal/service/chat"
	moderationservice "github.com/kandedongma/foreigner-app/backend/internal/service/moderation"
	"github.com/kandedongma/foreigner-app/backend/internal/storage"
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

	store, err := newStore(ctx, cfg.Chat)
	if err != nil {
		log.Fatalf("failed to initialize storage: %v", err)
	}

	cipher, err := crypto.New(cfg.Chat.EncryptionKey)
	if err != nil {
		log.Fatalf("failed to initialize cipher: %v", err)
	}

	chatService := chatservice.NewService(store, cipher, analytics.LogSink{}, cfg.Chat.SessionTTL)
	defer chatService.Close()

	// 重启后的对账：过期会话立即清除，其余重新武装定时器。
	if err := chatService.ReconcileSchedules(ctx); err != nil {
		log.Printf("warning: schedule reconciliation failed: %v", err)
	}

	moderationService := moderationservice.NewService(store)

	// Initialize the LLM reviewer when configured; rule checks never depend on it.
	var advisor *moderationservice.Advisor
	if cfg.Moderation.Enabled() {
		chatModel, err := cfg.Moderation.NewChatModel(ctx)
		if err != nil {
			log.Printf("warning: failed to initialize moderation reviewer model: %v", err)
		} else {
			advisor, err = moderationservice.NewAdvisor(ctx, chatModel, moderationservice.AdvisorConfig{Enabled: true})
			if err != nil {
				log.Printf("warning: failed to initialize moderation reviewer: %v", err)
				advisor = nil
			} else {
				log.Println("Moderation LLM reviewer enabled")
			}
		}
	} else {
		log.Println("Moderation LLM reviewer disabled, using static rules only")
	}

	router := handler.NewRouter(chatService, moderationService, advisor)

	startServer(ctx, cfg.Server, router)
}

// newStore 按配置选择存储后端。
func newStore(ctx context.Context, cfg config.ChatConfig) (storage.Store, error) {
	switch cfg.Storage {
	case config.StorageFile:
		log.Printf("using file storage under %s", cfg.DataDir)
		return storage.NewFileStore(cfg.DataDir)
	case config.StorageRedis:
		log.Printf("using redis storage at %s", cfg.RedisAddr)
		return storage.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword)
	default:
		log.Println("using in-memory storage, sessions will not survive a restart")
		return storage.NewMemoryStore(), nil
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("secure chat backend listening on %s", addr)
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
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
