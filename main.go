// @title Librarian API
// @version 1.0
// @description Catalog of scientific data files, their physical instances and their event history
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
package main

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/net/http2"

	"github.com/arrayops/librarian/config"
	"github.com/arrayops/librarian/internal/database"
	"github.com/arrayops/librarian/internal/logger"
	"github.com/arrayops/librarian/internal/middleware"
	"github.com/arrayops/librarian/internal/router"
	scannerservice "github.com/arrayops/librarian/internal/service/scanner"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(&logger.Config{
		Level:    cfg.Logger.Level,
		Format:   cfg.Logger.Format,
		Output:   cfg.Logger.Output,
		FilePath: cfg.Logger.FilePath,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}

	loggerMiddleware := middleware.NewLoggerMiddleware()
	services := router.NewServices(db)
	r := router.NewRouter(loggerMiddleware, db, services, cfg)

	// The scanner is optional: librarians whose stores only change
	// through the API do not need it.
	var scanner scannerservice.ScannerService
	scannerCtx, cancelScanner := context.WithCancel(context.Background())
	defer cancelScanner()
	if cfg.Scanner.Enabled {
		scanner = scannerservice.NewScannerService(cfg.Scanner, cfg.Librarian.Name,
			services.Stores, services.Catalog, services.Instances)
		scanner.Start(scannerCtx)
	}

	srv := newServer(cfg, r)

	go func() {
		var err error
		if cfg.Server.EnableHTTPS {
			logger.Infof("HTTPS server listening on port %d (HTTP/2: %v)", cfg.Server.HTTPSPort, cfg.Server.EnableHTTP2)
			err = srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			logger.Infof("HTTP server listening on port %d", cfg.Server.Port)
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	cancelScanner()
	if scanner != nil {
		scanner.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shut down: %v", err)
	}

	logger.Info("Server exited")
}

func newServer(cfg *config.Config, r *router.Router) *http.Server {
	port := cfg.Server.Port
	if cfg.Server.EnableHTTPS {
		port = cfg.Server.HTTPSPort
	}

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      r.GetEngine(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	if cfg.Server.EnableHTTPS {
		srv.TLSConfig = &tls.Config{
			NextProtos: []string{"h2", "http/1.1"},
		}
		if cfg.Server.EnableHTTP2 {
			if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
				logger.Fatalf("Failed to configure HTTP/2: %v", err)
			}
		}
	}

	return srv
}
