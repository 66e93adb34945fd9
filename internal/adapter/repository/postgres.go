package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hive-corporation/spyglass/internal/core/domain"
)

// PostgresGeoCache is the key-value variant of the geo cache for deployments
// that run concurrent pipelines: per-key upsert instead of a whole-file
// rewrite, so one batch never drops entries written by another.
type PostgresGeoCache struct {
	db *pgxpool.Pool
}

func NewPostgresGeoCache(db *pgxpool.Pool) *PostgresGeoCache {
	return &PostgresGeoCache{db: db}
}

func (c *PostgresGeoCache) Load(ctx context.Context) (map[string]*domain.GeoRecord, error) {
	query := `
		SELECT ioc, resolved, lat, lon, city, country, query
		FROM geo_cache
	`

	rows, err := c.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query geo cache: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]*domain.GeoRecord)

	for rows.Next() {
		var (
			ioc      string
			resolved bool
			record   domain.GeoRecord
		)
		err := rows.Scan(
			&ioc,
			&resolved,
			&record.Lat,
			&record.Lon,
			&record.City,
			&record.Country,
			&record.Query,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan geo cache row: %w", err)
		}

		if resolved {
			r := record
			entries[ioc] = &r
		} else {
			entries[ioc] = nil
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating geo cache rows: %w", err)
	}

	return entries, nil
}

func (c *PostgresGeoCache) Save(ctx context.Context, entries map[string]*domain.GeoRecord) error {
	batch := &pgx.Batch{}

	// A cache hit is authoritative and never re-validated, hence DO NOTHING
	// instead of an update on conflict.
	query := `
		INSERT INTO geo_cache (ioc, resolved, lat, lon, city, country, query, cached_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (ioc) DO NOTHING
	`

	now := time.Now()
	for ioc, record := range entries {
		if record != nil {
			batch.Queue(query, ioc, true, record.Lat, record.Lon, record.City, record.Country, record.Query, now)
		} else {
			batch.Queue(query, ioc, false, nil, nil, "", "", "", now)
		}
	}

	br := c.db.SendBatch(ctx, batch)
	defer br.Close()

	if _, err := br.Exec(); err != nil {
		return fmt.Errorf("failed to execute geo cache batch: %w", err)
	}

	return nil
}

// PostgresArchive persists the advisories of each pipeline run for later
// audit, keyed by run id.
type PostgresArchive struct {
	db *pgxpool.Pool
}

func NewPostgresArchive(db *pgxpool.Pool) *PostgresArchive {
	return &PostgresArchive{db: db}
}

func (a *PostgresArchive) SaveRun(ctx context.Context, runID uuid.UUID, advisories []domain.Advisory) error {
	batch := &pgx.Batch{}

	query := `
		INSERT INTO advisory_runs (run_id, source, advisory_id, title, description, severity, published, iocs, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	now := time.Now()
	for _, adv := range advisories {
		batch.Queue(query,
			runID,
			string(adv.Source),
			adv.ID,
			adv.Title,
			adv.Description,
			adv.Severity.String(),
			adv.Published,
			adv.IOCs,
			now,
		)
	}

	br := a.db.SendBatch(ctx, batch)
	defer br.Close()

	if _, err := br.Exec(); err != nil {
		return fmt.Errorf("failed to execute archive batch: %w", err)
	}

	return nil
}
