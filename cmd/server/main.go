package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-ledger-go/internal/config"
	"crypto-ledger-go/internal/database"
	"crypto-ledger-go/internal/importer"
	"crypto-ledger-go/internal/ledger"
	"crypto-ledger-go/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Connect to the database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	store := ledger.NewStore(db, log)
	csvImporter := importer.NewImporter(store, log)

	// Create a handler that has access to the logger and the ledger
	apiHandler := NewAPIHandler(log, store, csvImporter)
	mux := newRouter(apiHandler, cfg.Server.StaticDir)

	// One token bucket for the whole API surface
	limiter := rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateLimitBurst)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: rateLimitMiddleware(limiter, mux),
	}

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	log.Info("Starting web server", zap.String("address", addr))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("Web server failed", zap.Error(err))
	}
	log.Info("Server has been shut down.")
}

// newRouter wires the API endpoints and the static UI assets.
func newRouter(apiHandler *APIHandler, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("GET /api/transactions", apiHandler.ListTransactionsHandler)
	mux.HandleFunc("POST /api/transactions", apiHandler.CreateTransactionHandler)
	mux.HandleFunc("PUT /api/transactions/{id}", apiHandler.UpdateTransactionHandler)
	mux.HandleFunc("DELETE /api/transactions/{id}", apiHandler.DeleteTransactionHandler)
	mux.HandleFunc("GET /api/balances", apiHandler.BalancesHandler)
	mux.HandleFunc("POST /api/import-csv", apiHandler.ImportCSVHandler)
	mux.HandleFunc("GET /api/export-csv", apiHandler.ExportCSVHandler)
	mux.HandleFunc("GET /api/health", apiHandler.HealthHandler)

	// Static file serving for CSS, JS, etc.
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	// HTML template serving
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/templates/index.html")
	})

	return mux
}

// rateLimitMiddleware rejects requests once the shared token bucket is empty.
func rateLimitMiddleware(limiter *rate.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
