package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/hive-corporation/spyglass/internal/adapter/geo"
	"github.com/hive-corporation/spyglass/internal/adapter/notifier"
	"github.com/hive-corporation/spyglass/internal/adapter/provider"
	"github.com/hive-corporation/spyglass/internal/adapter/repository"
	"github.com/hive-corporation/spyglass/internal/core/ports"
	"github.com/hive-corporation/spyglass/internal/core/service"
	"github.com/hive-corporation/spyglass/internal/metrics"
)

func main() {
	// Load .env file if it exists (optional - nothing here strictly needs it)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found (this is fine)")
	}

	maxItems := flag.Int("max-items", 25, "Maximum advisories to fetch per source")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	metrics.InitMetrics()

	client := &http.Client{Timeout: 15 * time.Second}

	aggregator := service.NewAggregator(
		provider.NewNVDProvider(client),
		provider.NewKEVProvider(client),
		provider.NewUSCERTProvider(client),
		provider.NewMalwareBazaarProvider(client),
	)

	// The geo cache lives in Postgres when a database is configured,
	// otherwise in a local JSON file.
	var (
		cache   ports.GeoCache
		archive ports.AdvisoryArchive
	)
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		log.Println("🔌 Database connection...")
		dbPool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			log.Fatalf("❌ Error connecting to database: %v", err)
		}
		defer dbPool.Close()

		cache = repository.NewPostgresGeoCache(dbPool)
		archive = repository.NewPostgresArchive(dbPool)
	} else {
		cache = geo.NewFileCache(getEnv("GEO_CACHE_PATH", "geo_cache.json"))
	}

	resolver := geo.NewResolver(cache, geo.NewIPWhoisClient(nil))
	pipeline := service.NewPipeline(aggregator, resolver)

	log.Println("🚀 Advisory collection started...")
	result, err := pipeline.Run(ctx, *maxItems)
	if err != nil {
		log.Fatalf("❌ Pipeline run failed: %v", err)
	}

	for source, count := range result.Summary {
		log.Printf("📥 %s: %d advisories", source, count)
	}
	log.Printf("🌍 Resolved %d IOCs (%d plottable markers)", len(result.Geo), len(result.Markers))
	log.Printf("📊 Created today: %d | last 7 days: %d | last 30 days: %d",
		result.Stats.CreatedToday, result.Stats.Created7, result.Stats.Created30)
	log.Printf("🚨 %d advisories classified as alerts", len(result.Alerts))

	if archive != nil {
		runID := uuid.New()
		if err := archive.SaveRun(ctx, runID, result.Advisories); err != nil {
			log.Printf("❌ Failed to archive run %s: %v", runID, err)
		} else {
			log.Printf("💾 Run %s archived (%d advisories)", runID, len(result.Advisories))
		}
	}

	if slackToken := os.Getenv("SLACK_BOT_TOKEN"); slackToken != "" {
		slack := notifier.NewSlackNotifier(
			slackToken,
			getEnv("SLACK_CHANNEL_SECURITY", "#security-alerts"),
			getEnv("SLACK_MENTION_TEAM", "@security-team"),
		)
		for _, alert := range result.Alerts {
			if err := slack.NotifyAlert(alert); err != nil {
				log.Printf("⚠️  Failed to notify alert %s: %v", alert.ID, err)
			}
		}
		log.Printf("✅ Slack notifications sent for %d alerts", len(result.Alerts))
	}

	log.Println("🏁 Advisory collection finished!")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
