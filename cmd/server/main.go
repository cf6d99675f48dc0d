package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/jamesgurung/school-helpdesk/internal/ai"
	"github.com/jamesgurung/school-helpdesk/internal/api"
	"github.com/jamesgurung/school-helpdesk/internal/auth"
	"github.com/jamesgurung/school-helpdesk/internal/config"
	"github.com/jamesgurung/school-helpdesk/internal/database"
	"github.com/jamesgurung/school-helpdesk/internal/email"
	"github.com/jamesgurung/school-helpdesk/internal/mailqueue"
	"github.com/jamesgurung/school-helpdesk/internal/repository"
	"github.com/jamesgurung/school-helpdesk/internal/roster"
	"github.com/jamesgurung/school-helpdesk/internal/runner"
	"github.com/jamesgurung/school-helpdesk/internal/runner/tasks"
)

func main() {
	logger := log.New(os.Stdout, "[helpdesk] ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "."
	}
	if err := config.Load(configPath); err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}
	cfg := config.Get()

	if os.Getenv("APP_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	school := roster.NewSchool()
	ticketRepo := repository.NewTicketRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	queueRepo := mailqueue.NewRepository(db)

	composer, err := email.NewComposer(cfg.School.Name, cfg.School.SiteURL)
	if err != nil {
		logger.Fatalf("failed to build composer: %v", err)
	}
	sender := email.NewSender(cfg.SMTP, email.WithSenderLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var drafter *ai.Drafter
	if cfg.AI.Enabled {
		drafter, err = ai.New(ctx, cfg.AI.Region, cfg.AI.ModelID, cfg.School.Name)
		if err != nil {
			logger.Printf("drafting assistant unavailable: %v", err)
			drafter = nil
		}
	}

	location := cfg.School.Location()
	registry := runner.NewRegistry()
	registry.Register(tasks.NewMailQueueTask(queueRepo, composer, sender, logger))
	registry.Register(tasks.NewReminderTask(ticketRepo, queueRepo, location, logger))
	jobs := runner.New(registry, runner.WithLocation(location), runner.WithLogger(logger))
	if err := jobs.Start(ctx); err != nil {
		logger.Fatalf("failed to start background tasks: %v", err)
	}
	defer jobs.Stop()

	server := api.NewServer(api.Deps{
		Config:   config.Get,
		School:   school,
		Tickets:  ticketRepo,
		Messages: messageRepo,
		Queue:    queueRepo,
		Composer: composer,
		Sender:   sender,
		Drafter:  drafter,
		JWT:      auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Logger:   logger,
	})
	engine := gin.New()
	engine.Use(gin.Recovery())
	server.Register(engine)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Printf("listening on %s", cfg.Server.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown error: %v", err)
	}
}
