package guide

import (
	"context"
	"time"

	"github.com/epguides-io/epguides-api/models"
)

// CatalogSource is the primary listing source: the full show index plus
// per-show scrapes and episode exports.
type CatalogSource interface {
	FetchCatalog(ctx context.Context) ([]*models.Show, error)
	FetchShow(ctx context.Context, key string) (*models.Show, error)
	FetchEpisodes(ctx context.Context, key string) ([]*models.Episode, error)
}

// FallbackSource fills in what the primary source lacks: show status for
// end-date derivation, alternate identifiers, posters and episode
// summaries. Everything it provides is optional.
type FallbackSource interface {
	// Resolve finds the fallback-side record for a show, by external id
	// when available and by title otherwise. A miss is (nil, nil).
	Resolve(ctx context.Context, show *models.Show) (*FallbackShow, error)
	Episodes(ctx context.Context, ref *FallbackShow) ([]*FallbackEpisode, error)
}

type FallbackShow struct {
	ID        int
	Status    string
	IMDBID    string
	PosterURL string
}

// Concluded reports whether the fallback source marks the show as having
// finished airing.
func (s *FallbackShow) Concluded() bool {
	return s != nil && s.Status == "Ended"
}

type FallbackEpisode struct {
	Season     int
	Number     int
	Summary    string
	RunTimeMin int
}

// Store is the cache the guide writes through. Reads report found/missing
// only; writes never fail the request.
type Store interface {
	GetJSON(ctx context.Context, key string, out any) bool
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration)
	Drop(ctx context.Context, keys ...string)
	Flush(ctx context.Context) error
	Ping(ctx context.Context) bool
}

// EpisodeFilterer narrows an episode list by a free-text query. Best
// effort only.
type EpisodeFilterer interface {
	FilterEpisodes(ctx context.Context, query string, episodes []*models.Episode) ([]*models.Episode, error)
}
