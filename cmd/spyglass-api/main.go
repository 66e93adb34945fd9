package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hive-corporation/spyglass/internal/adapter/geo"
	"github.com/hive-corporation/spyglass/internal/adapter/handler"
	"github.com/hive-corporation/spyglass/internal/adapter/provider"
	"github.com/hive-corporation/spyglass/internal/adapter/repository"
	"github.com/hive-corporation/spyglass/internal/core/ports"
	"github.com/hive-corporation/spyglass/internal/core/service"
	"github.com/hive-corporation/spyglass/internal/metrics"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found (this is fine)")
	}

	ctx := context.Background()

	metrics.InitMetrics()
	log.Println("✅ Prometheus metrics initialized")

	client := &http.Client{Timeout: 15 * time.Second}

	aggregator := service.NewAggregator(
		provider.NewNVDProvider(client),
		provider.NewKEVProvider(client),
		provider.NewUSCERTProvider(client),
		provider.NewMalwareBazaarProvider(client),
	)

	var cache ports.GeoCache
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		dbPool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			log.Fatalf("❌ Failed to connect to database: %v", err)
		}
		defer dbPool.Close()
		cache = repository.NewPostgresGeoCache(dbPool)
		log.Println("✅ Postgres geo cache enabled")
	} else {
		cache = geo.NewFileCache(getEnv("GEO_CACHE_PATH", "geo_cache.json"))
		log.Println("⚠️  File geo cache in use (no DATABASE_URL)")
	}

	resolver := geo.NewResolver(cache, geo.NewIPWhoisClient(nil))
	pipeline := service.NewPipeline(aggregator, resolver)

	// HTTP router
	router := mux.NewRouter()

	restHandler := handler.NewRestHandler(pipeline)

	// Health check
	router.HandleFunc("/api/v1/health", restHandler.Health).Methods("GET")

	// Pipeline endpoints
	router.HandleFunc("/api/v1/advisories", restHandler.Advisories).Methods("GET")
	router.HandleFunc("/api/v1/dashboard", restHandler.Dashboard).Methods("GET")
	router.HandleFunc("/api/v1/feed", restHandler.Feed).Methods("GET")

	// Metrics endpoint (requires authentication)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Middleware
	router.Use(loggingMiddleware)
	router.Use(authMiddleware)

	// HTTP server
	port := getEnv("REST_API_PORT", "8080")
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // pipeline runs synchronously behind the dashboard endpoint
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("🚀 Spyglass REST API listening on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("→ %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
		log.Printf("← %s %s (%v)", r.Method, r.URL.Path, time.Since(start))
	})
}

func authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth for health check
		if r.URL.Path == "/api/v1/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("Authorization")
		expectedToken := os.Getenv("REST_API_AUTH_TOKEN")

		// If no token configured, allow all requests (development mode)
		if expectedToken == "" {
			log.Println("⚠️  Warning: REST_API_AUTH_TOKEN not set - auth disabled")
			next.ServeHTTP(w, r)
			return
		}

		if token != "Bearer "+expectedToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
