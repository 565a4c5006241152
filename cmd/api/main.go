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

	"github.com/pensador-ai/website/backend/internal/config"
	"github.com/pensador-ai/website/backend/internal/handler"
	"github.com/pensador-ai/website/backend/internal/handler/chatbot"
	"github.com/pensador-ai/website/backend/internal/service/ai"
	"github.com/pensador-ai/website/backend/internal/service/guard"
	"github.com/pensador-ai/website/backend/internal/service/history"
	"github.com/pensador-ai/website/backend/internal/service/session"
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

	sanitizer := history.NewSanitizer(history.Limits{
		MaxMessages:     cfg.Chatbot.HistoryMaxMessages,
		MaxMessageChars: cfg.Chatbot.MessageMaxChars,
		MaxPayloadBytes: cfg.Chatbot.HistoryMaxPayloadBytes,
	})
	sessions := session.NewStore(sanitizer, cfg.Chatbot.SessionMaxAge, cfg.Chatbot.SweepInterval)

	originPolicy := guard.NewOriginPolicy(cfg.Site.SiteURL, cfg.Site.PublicSiteURL, cfg.Server.Production())
	limiter := guard.NewRateLimiter(guard.RateLimitConfig{
		Window:     cfg.Chatbot.RateLimitWindow,
		PerIP:      cfg.Chatbot.RateLimitPerIP,
		PerSession: cfg.Chatbot.RateLimitPerSession,
	})
	traffic := guard.NewTrafficMonitor(guard.TrafficConfig{
		GlobalPerMinute: cfg.Chatbot.SpikeAlertPerMinute,
		PerIPPerMinute:  cfg.Chatbot.SpikeAlertPerIPPerMin,
	})

	// The model boundary is optional at startup: without a credential the
	// service still serves history reads, only POST degrades.
	var replies chatbot.ReplyGenerator
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ai.Config{
			APIKey:               cfg.AI.APIKey,
			BaseURL:              cfg.AI.BaseURL,
			Model:                cfg.AI.Model,
			UseTemperature:       cfg.AI.UseTemperature,
			Temperature:          float32(cfg.AI.Temperature),
			UseTopP:              cfg.AI.UseTopP,
			TopP:                 float32(cfg.AI.TopP),
			MaxOutputTokens:      cfg.AI.MaxOutputTokens,
			RetryMaxOutputTokens: cfg.AI.RetryMaxOutputTokens,
			Timeout:              cfg.AI.Timeout,
		})
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality - check OpenAI environment variables")
		} else {
			replies = aiService
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("OPENAI_API_KEY not configured, chat replies disabled")
	}

	chatbotHandler := chatbot.New(sanitizer, sessions, originPolicy, limiter, traffic, replies, chatbot.Options{
		CookieName:      cfg.Chatbot.SessionCookieName,
		CookieMaxAge:    cfg.Chatbot.SessionMaxAge,
		MaxRequestBytes: cfg.Chatbot.MaxRequestBytes,
	})

	corsOrigins := []string{cfg.Site.SiteURL, cfg.Site.PublicSiteURL}
	if !cfg.Server.Production() {
		corsOrigins = append(corsOrigins, "http://localhost:3000", "http://127.0.0.1:3000")
	}

	router := handler.NewRouter(chatbotHandler, corsOrigins)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Pensador chatbot backend listening on %s", addr)
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
