package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/grishabot/grisha/internal/commenting"
	"github.com/grishabot/grisha/internal/config"
	"github.com/grishabot/grisha/internal/engine"
	"github.com/grishabot/grisha/internal/facts"
	"github.com/grishabot/grisha/internal/httpapi"
	"github.com/grishabot/grisha/internal/index"
	"github.com/grishabot/grisha/internal/learning"
	"github.com/grishabot/grisha/internal/model"
	"github.com/grishabot/grisha/internal/observability"
	"github.com/grishabot/grisha/internal/patterns"
	"github.com/grishabot/grisha/internal/session"
	"github.com/grishabot/grisha/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	logger := log.Default()

	ctx := context.Background()
	userStore, err := facts.NewStore(ctx, cfg.UsersFile, cfg.DatabaseURL, logger)
	if err != nil {
		log.Fatalf("user store init failed: %v", err)
	}
	defer userStore.Close()

	patternStore := patterns.NewStore(cfg.PatternsFile, logger)
	exampleIndex := index.New(cfg.DatasetPath, patternStore, logger)
	exampleIndex.OnPatternAdded = func() { metrics.PatternsLearned.Inc() }
	learner := learning.New(patternStore, exampleIndex, logger)
	sessions := session.NewMemory(cfg.MaxContextMessages)

	generator, err := model.NewAdapter(model.Config{
		Mode:    cfg.ModelAdapterMode,
		HTTPURL: cfg.ModelHTTPURL,
	})
	if err != nil {
		log.Fatalf("model adapter init failed: %v", err)
	}

	params := model.Params{
		MaxNewTokens:      cfg.MaxNewTokens,
		Temperature:       cfg.Temperature,
		TopP:              cfg.TopP,
		RepetitionPenalty: cfg.RepetitionPenalty,
	}

	eng := engine.New(engine.Options{
		Facts:        userStore,
		Session:      sessions,
		Index:        exampleIndex,
		Learner:      learner,
		Generator:    generator,
		Metrics:      metrics,
		Logger:       logger,
		SystemPrompt: cfg.SystemPrompt,
		Params:       params,
	})

	commentHistory := commenting.NewHistory(cfg.CommentHistoryFile, cfg.CommentHistoryLimit, logger)
	comments := commenting.NewSystem(commenting.Config{
		EnabledGroups: cfg.CommentGroups,
		MinPostLength: cfg.MinPostLength,
		MaxPerHour:    cfg.MaxCommentsPerHour,
		MediaPosts:    cfg.CommentMediaPosts,
	}, commentHistory, generator, params, metrics, logger)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	pollerDone := make(chan struct{})
	if cfg.TelegramToken != "" {
		client := telegram.NewClient(cfg.TelegramAPIBaseURL, cfg.TelegramToken, cfg.TelegramPollTimeout)
		poller := telegram.NewPoller(client, eng, comments, metrics, logger, cfg.TelegramPollTimeout)
		go func() {
			defer close(pollerDone)
			if err := poller.Run(runCtx); err != nil {
				log.Printf("telegram poller stopped: %v", err)
			}
		}()
	} else {
		close(pollerDone)
		log.Printf("TELEGRAM_BOT_TOKEN not set, telegram polling disabled")
	}

	api := httpapi.New(cfg, eng, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	<-pollerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
