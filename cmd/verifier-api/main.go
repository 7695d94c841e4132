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

	log "github.com/sirupsen/logrus"

	"github.com/codatta/codattaOnchainDataVerify/config"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/api"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/service"
)

func main() {
	// Load configuration
	if err := config.LoadConfig(); err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	settings := config.SettingsObj

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := service.Build(ctx, settings)
	if err != nil {
		log.WithError(err).Fatal("Failed to build verification service")
	}
	defer svc.Close()

	apiServer := api.NewAPIServer(svc.NewRunner(), svc.Calculator, api.Config{
		RateLimit:         settings.APIRateLimit,
		RateBurst:         settings.APIRateBurst,
		CORSOrigins:       settings.APICORSOrigins,
		RequestTimeout:    settings.APIRequestTimeout,
		TrustProxyHeaders: settings.APITrustProxy,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", settings.APIHost, settings.APIPort),
		Handler:      apiServer.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: settings.APIRequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server
	go func() {
		log.WithField("addr", httpServer.Addr).Info("🚀 Starting verifier API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("API server failed")
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("Shutting down verifier API server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Failed to gracefully shutdown HTTP server")
	}

	log.Info("Verifier API server stopped")
}
