package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/medsupply/indent-backend/internal/indent/events"
	indenthandler "github.com/medsupply/indent-backend/internal/indent/handler"
	indentrepo "github.com/medsupply/indent-backend/internal/indent/repository"
	indentsvc "github.com/medsupply/indent-backend/internal/indent/service"
	rxhandler "github.com/medsupply/indent-backend/internal/prescription/handler"
	rxrepo "github.com/medsupply/indent-backend/internal/prescription/repository"
	rxsvc "github.com/medsupply/indent-backend/internal/prescription/service"
	"github.com/medsupply/indent-backend/pkg/actor"
	"github.com/medsupply/indent-backend/pkg/config"
	"github.com/medsupply/indent-backend/pkg/database"
	"github.com/medsupply/indent-backend/pkg/httputil"
	"github.com/medsupply/indent-backend/pkg/logger"
	"github.com/medsupply/indent-backend/pkg/messaging"
)

const serviceName = "indent-service"

func main() {
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	eventPub, err := messaging.NewPublisher(rmq, messaging.ExchangeIndentEvents, serviceName, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}
	publisher := events.NewPublisher(eventPub, log)

	indentRepo := indentrepo.NewIndentRepository(db)
	itemRepo := indentrepo.NewItemRepository(db)
	batchRepo := indentrepo.NewBatchRepository(db)
	medicineRepo := indentrepo.NewMedicineRepository(db)
	auditRepo := indentrepo.NewAuditTrailRepository(db)
	prescriptionRepo := rxrepo.NewPrescriptionRepository(db)

	auditService := indentsvc.NewAuditService(auditRepo, log)
	indentService := indentsvc.NewIndentService(indentRepo, itemRepo, batchRepo, medicineRepo, auditService, publisher, log)
	stockService := indentsvc.NewStockService(indentRepo, itemRepo, batchRepo, auditService, publisher, log)
	prescriptionService := rxsvc.NewPrescriptionService(prescriptionRepo, batchRepo, auditService, publisher, log)

	indentHandler := indenthandler.NewIndentHandler(indentService, log)
	stockHandler := indenthandler.NewStockHandler(stockService, log)
	auditHandler := indenthandler.NewAuditHandler(auditService, medicineRepo, log)
	prescriptionHandler := rxhandler.NewPrescriptionHandler(prescriptionService, log)

	// Writes are throttled per acting user, not per connection: the limits
	// follow the username across clients.
	limitKey := func(r *http.Request) (string, error) {
		if a, ok := actor.FromContext(r.Context()); ok {
			return a.Username, nil
		}
		return httprate.KeyByIP(r)
	}
	createLimiter := httprate.Limit(cfg.RateLimit.CreateLimit, cfg.RateLimit.Window, httprate.WithKeyFuncs(limitKey))
	editLimiter := httprate.Limit(cfg.RateLimit.EditLimit, cfg.RateLimit.Window, httprate.WithKeyFuncs(limitKey))

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httputil.ActorMiddleware(cfg.JWT.Secret, log))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"service":  serviceName,
			"database": db.Health(req.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		indentHandler.RegisterRoutes(r, createLimiter, editLimiter)
		stockHandler.RegisterRoutes(r, editLimiter)
		auditHandler.RegisterRoutes(r)
		prescriptionHandler.RegisterRoutes(r, createLimiter)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("server stopped")
}
