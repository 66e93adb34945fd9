package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/hive-corporation/spyglass/internal/core/domain"
)

// AdvisoryProvider is one upstream feed. Fetch performs exactly one outbound
// call (or one paginated sequence), never retries, and never returns more
// than maxItems advisories.
type AdvisoryProvider interface {
	Fetch(ctx context.Context, maxItems int) ([]domain.Advisory, error)
	Name() string
}

// IOCResolver maps a batch of IOC strings to approximate locations. Every
// input IOC appears in the result exactly once; a nil record means the IOC
// could not be resolved.
type IOCResolver interface {
	Resolve(ctx context.Context, iocs []string) (map[string]*domain.GeoRecord, error)
}

// GeoCache is the persistent IOC -> GeoRecord-or-negative mapping owned by
// the resolver. Key presence distinguishes a cached negative from a value
// never looked up.
type GeoCache interface {
	Load(ctx context.Context) (map[string]*domain.GeoRecord, error)
	Save(ctx context.Context, entries map[string]*domain.GeoRecord) error
}

// AdvisoryArchive persists the advisories of one pipeline run.
type AdvisoryArchive interface {
	SaveRun(ctx context.Context, runID uuid.UUID, advisories []domain.Advisory) error
}

// Notifier pushes alert-classified advisories to an external channel.
type Notifier interface {
	NotifyAlert(advisory domain.Advisory) error
}
