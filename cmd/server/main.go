package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admin-portal/backend/internal/audit"
	auditrepo "admin-portal/backend/internal/audit/repository"
	companyrepo "admin-portal/backend/internal/company/repository"
	companyservice "admin-portal/backend/internal/company/service"
	"admin-portal/backend/internal/config"
	"admin-portal/backend/internal/db"
	"admin-portal/backend/internal/policy"
	"admin-portal/backend/internal/security"
	"admin-portal/backend/internal/server"
	"admin-portal/backend/internal/server/handlers"
	"admin-portal/backend/internal/server/middleware"
	sessionrepo "admin-portal/backend/internal/session/repository"
	sessionservice "admin-portal/backend/internal/session/service"
	otelsetup "admin-portal/backend/internal/telemetry/otel"
	"admin-portal/backend/internal/transport/cookies"
	userrepo "admin-portal/backend/internal/user/repository"
	userservice "admin-portal/backend/internal/user/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "admin-portal", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	pool, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	sessions := sessionrepo.NewPostgresSessionRepository(pool)
	users := userrepo.NewPostgresUserRepository(pool)
	companies := companyrepo.NewPostgresCompanyRepository(pool)
	auditEvents := auditrepo.NewPostgresRepository(pool)
	auditLog := audit.NewLogger(auditEvents, middleware.ClientIP)

	tokens := security.NewTokenProvider(security.TokenConfig{
		Secret:       cfg.JWTSecret,
		Issuer:       cfg.JWTIssuer,
		Audience:     cfg.JWTAudience,
		AccessTTL:    cfg.AccessTTL(),
		RefreshTTL:   cfg.RefreshTTL(),
		RotateWithin: 5 * time.Minute,
	})
	hasher := security.NewHasher(cfg.BcryptCost)

	companySvc := companyservice.NewService(companies, auditLog)
	userSvc := userservice.NewService(users, sessions, hasher, auditLog)
	sessionSvc := sessionservice.NewService(sessions, userSvc, companySvc, tokens, auditLog)

	cookieWriter := cookies.NewWriter(cfg.CookieDomain, cfg.AccessTTL(), cfg.RefreshTTL())

	routes, err := policy.NewRouteEngine(ctx)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}
	gate := middleware.NewGate(tokens, cookieWriter, routes, sessionSvc)

	handler := server.NewHandler(server.Deps{
		Gate:             gate,
		Sessions:         handlers.NewSessionHandler(sessionSvc, cookieWriter, cfg.ClientURL, cfg.IdleTimeout(), cfg.DevLoginEnabled),
		Users:            handlers.NewUserHandler(userSvc, cookieWriter),
		Companies:        handlers.NewCompanyHandler(companySvc, cookieWriter),
		Audit:            handlers.NewAuditHandler(auditEvents),
		CORSOriginSuffix: cfg.CORSOriginSuffix,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Periodic sweep on top of the opportunistic one in the logout path, so
	// idle rows are reaped even when nobody logs out.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				n, err := sessions.DeleteExpired(sweepCtx, time.Now().UTC(), cfg.IdleTimeout())
				if err != nil {
					log.Printf("session sweep: %v", err)
				} else if n > 0 {
					log.Printf("session sweep: removed %d expired sessions", n)
				}
			}
		}
	}()

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	stopSweep()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
