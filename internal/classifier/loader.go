package classifier

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dvloznov/bankdata-pipeline/internal/gcs"
	"github.com/dvloznov/bankdata-pipeline/internal/logger"
	"github.com/patrickmn/go-cache"
)

const (
	defaultArtifactTTL     = 6 * time.Hour
	defaultCleanupInterval = 30 * time.Minute
)

// ArtifactLoader fetches naive-Bayes artifacts from object storage and keeps
// decoded models in memory keyed by object name and generation.
type ArtifactLoader struct {
	storage gcs.Storage
	cache   *cache.Cache
}

// NewArtifactLoader creates a loader over storage. A zero ttl uses the default.
func NewArtifactLoader(storage gcs.Storage, ttl time.Duration) *ArtifactLoader {
	if ttl <= 0 {
		ttl = defaultArtifactTTL
	}
	return &ArtifactLoader{
		storage: storage,
		cache:   cache.New(ttl, defaultCleanupInterval),
	}
}

// Load returns the model stored under name. A new object generation
// invalidates the cached copy.
func (l *ArtifactLoader) Load(ctx context.Context, name string) (*NaiveBayes, error) {
	log := logger.FromContext(ctx)

	info, err := l.storage.Stat(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("ArtifactLoader.Load: %w: %v", ErrArtifactUnavailable, err)
	}

	key := name + "@" + strconv.FormatInt(info.Generation, 10)
	if cached, ok := l.cache.Get(key); ok {
		if m, ok := cached.(*NaiveBayes); ok {
			log.Debug().Str("artifact", key).Msg("Using cached classifier artifact")
			return m, nil
		}
	}

	data, err := l.storage.Read(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("ArtifactLoader.Load: %w: %v", ErrArtifactUnavailable, err)
	}

	m, err := LoadNaiveBayes(data)
	if err != nil {
		return nil, fmt.Errorf("ArtifactLoader.Load: %s: %w", name, err)
	}

	l.cache.Set(key, m, cache.DefaultExpiration)
	log.Info().
		Str("artifact", key).
		Time("trained_at", m.TrainedAt).
		Msg("Loaded classifier artifact")

	return m, nil
}
