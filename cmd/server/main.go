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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rekur/backend/internal/app"
	"github.com/rekur/backend/internal/config"
	"github.com/rekur/backend/internal/domain"
	"github.com/rekur/backend/internal/handler"
	"github.com/rekur/backend/internal/logging"
	appMiddleware "github.com/rekur/backend/internal/middleware"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat, "server")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	// Seed admin user on first startup
	if err := a.Auth.SeedAdmin(ctx); err != nil {
		log.Fatal().Err(err).Msg("admin seed failed")
	}

	a.Monitor.Start(ctx)

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      newRouter(a),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("shutting down")
		stop()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("addr", addr).Msg("rekur backend listening")
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
}

func newRouter(a *app.App) http.Handler {
	cfg := a.Config

	var redisPing handler.Pinger
	if a.Redis != nil {
		redisPing = handler.PingFunc(func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() })
	}

	authHandler := handler.NewAuthHandler(a.Auth)
	userHandler := handler.NewUserHandler(a.Auth)
	healthHandler := handler.NewHealthHandler(a.DB, redisPing)
	plansHandler := handler.NewPlansHandler(map[domain.PlanTier]handler.PlanProducts{
		domain.PlanPro: {
			StripePriceIDs:  cfg.Stripe.ProPriceIDs,
			LemonVariantIDs: cfg.Lemon.ProVariantIDs,
		},
		domain.PlanBusiness: {
			StripePriceIDs:  cfg.Stripe.BusinessPriceIDs,
			LemonVariantIDs: cfg.Lemon.BusinessVariantIDs,
		},
	})
	webhookHandler := handler.NewWebhookHandler(a.Billing)
	paymentHandler := handler.NewPaymentHandler(a.Checkout)
	adminHandler := handler.NewAdminHandler(a.Admin)
	reminderHandler := handler.NewReminderHandler(a.Reminders)
	trackerHandler := handler.NewSubscriptionHandler(a.Subscriptions)

	r := chi.NewRouter()

	// Global middleware
	r.Use(appMiddleware.Recovery)
	r.Use(appMiddleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/health", healthHandler.Check)
	r.Get("/api/plans", plansHandler.List)

	// Provider webhooks carry their own signatures
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.WebhookRateLimiter())
		r.Post("/api/lemon/webhook", webhookHandler.Lemon)
		r.Post("/api/stripe/webhook", webhookHandler.Stripe)
	})

	// Scheduler trigger and scrape endpoint
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.CronAuth(cfg.CronSecret))
		r.Handle("/metrics", promhttp.Handler())
		r.Get("/api/cron/check-reminders", reminderHandler.Run)
		r.Post("/api/cron/check-reminders", reminderHandler.Run)
		r.Get("/api/cron/status", reminderHandler.Status)
	})

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.NewRateLimiter("api", 20, 40).Middleware())

		// Auth routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.StrictRateLimiter())
			r.Post("/api/auth/login", authHandler.Login)
			r.Post("/api/auth/register", authHandler.Register)
		})

		// Protected API routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.Auth(a.Auth))

			r.Get("/api/auth/me", authHandler.Me)

			r.Get("/api/subscriptions", trackerHandler.List)
			r.Post("/api/subscriptions", trackerHandler.Create)
			r.Put("/api/subscriptions/{id}", trackerHandler.Update)
			r.Delete("/api/subscriptions/{id}", trackerHandler.Delete)

			r.Get("/api/categories", trackerHandler.ListCategories)
			r.Post("/api/categories", trackerHandler.CreateCategory)
			r.Delete("/api/categories/{id}", trackerHandler.DeleteCategory)

			r.Get("/api/team/invites", trackerHandler.ListInvites)
			r.Post("/api/team/invites", trackerHandler.Invite)
			r.Delete("/api/team/invites/{id}", trackerHandler.RevokeInvite)

			r.Get("/api/account", trackerHandler.Account)
			r.Put("/api/account", trackerHandler.UpdateAccount)

			r.Post("/api/billing/stripe/checkout", paymentHandler.StripeCheckout)
			r.Post("/api/billing/lemon/checkout", paymentHandler.LemonCheckout)
			r.Post("/api/billing/stripe/portal", paymentHandler.Portal)

			// Admin routes
			r.Group(func(r chi.Router) {
				r.Use(appMiddleware.AdminOnly)
				r.Get("/api/admin/stats", adminHandler.GetStats)
				r.Get("/api/admin/data", adminHandler.GetData)
				r.Get("/api/admin/users", adminHandler.ListUsers)
				r.Post("/api/admin/users", userHandler.Create)
				r.Delete("/api/admin/users/{id}", userHandler.Delete)
				r.Post("/api/admin/change-plan", adminHandler.ChangePlan)
				r.Post("/api/admin/disable-user", adminHandler.DisableUser)
				r.Post("/api/admin/refund-payment", adminHandler.Refund)
				r.Post("/api/admin/reset-plans", adminHandler.ResetPlans)
				r.Post("/api/admin/reminders/run", reminderHandler.Run)
				r.Get("/api/admin/reminders/status", reminderHandler.Status)
				r.Get("/api/admin/reminders/logs", reminderHandler.Logs)
			})
		})
	})

	return r
}
