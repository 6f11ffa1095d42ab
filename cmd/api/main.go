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

	"github.com/flightdeck/aerochat/internal/config"
	"github.com/flightdeck/aerochat/internal/handler"
	"github.com/flightdeck/aerochat/internal/model/fleet"
	"github.com/flightdeck/aerochat/internal/service/answer"
	"github.com/flightdeck/aerochat/internal/service/session"
	"github.com/flightdeck/aerochat/internal/service/voice"
	"github.com/flightdeck/aerochat/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	registry := fleet.NewMemoryRegistry(fleet.Seed())
	conversations := store.NewMemoryStore()

	var answerClient answer.Client
	if cfg.Answer.Enabled() {
		answerSvc, err := answer.NewService(ctx, registry, cfg.Answer)
		if err != nil {
			log.Printf("warning: failed to initialize answer service: %v", err)
			log.Println("continuing without answer functionality - check ANSWER_* environment variables")
		} else {
			answerClient = answerSvc
			log.Println("answer service initialized successfully")
		}
	} else {
		log.Println("answer backend credentials not configured, skipping answer service")
	}

	sessions := session.NewManager(conversations, answerClient, registry)

	var voiceAdapter *voice.Adapter
	if cfg.Voice.Enabled {
		voiceAdapter = voice.NewAdapter(voice.NewWebsocketTransport(), sessions, registry, cfg.Voice)
		defer voiceAdapter.Disconnect()
		log.Println("voice adapter initialized successfully")
	} else {
		log.Println("voice gateway not configured, skipping voice adapter")
	}

	router := handler.NewRouter(registry, sessions, voiceAdapter, answerClient != nil)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Aerochat backend listening on %s", serverCfg.Addr)
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
