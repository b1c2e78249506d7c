package freshness

import (
	"time"

	"github.com/urfave/cli"

	"github.com/epguides-io/epguides-api/models"
)

const (
	ttlOngoingFlag   = "cache-ttl-ongoing"
	ttlConcludedFlag = "cache-ttl-concluded"
	ttlCatalogFlag   = "cache-ttl-catalog"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.DurationFlag{
			Name:   ttlOngoingFlag,
			Usage:  "cache ttl for ongoing shows",
			Value:  7 * 24 * time.Hour,
			EnvVar: "CACHE_TTL_ONGOING",
		},
		cli.DurationFlag{
			Name:   ttlConcludedFlag,
			Usage:  "cache ttl for concluded shows",
			Value:  365 * 24 * time.Hour,
			EnvVar: "CACHE_TTL_CONCLUDED",
		},
		cli.DurationFlag{
			Name:   ttlCatalogFlag,
			Usage:  "cache ttl for the show catalog index",
			Value:  30 * 24 * time.Hour,
			EnvVar: "CACHE_TTL_CATALOG",
		},
	)
}

// Policy decides how long cached data stays usable. The only state that
// matters is whether a show is known to have concluded: a concluded show's
// data is immutable from this service's point of view, an ongoing show can
// gain episodes weekly, and the catalog index changes only with new
// premieres.
type Policy struct {
	ongoing   time.Duration
	concluded time.Duration
	catalog   time.Duration
}

func New(c *cli.Context) *Policy {
	return NewPolicy(
		c.Duration(ttlOngoingFlag),
		c.Duration(ttlConcludedFlag),
		c.Duration(ttlCatalogFlag),
	)
}

func NewPolicy(ongoing, concluded, catalog time.Duration) *Policy {
	return &Policy{
		ongoing:   ongoing,
		concluded: concluded,
		catalog:   catalog,
	}
}

// ShowTTL returns the write-time ttl for a show's metadata entry.
func (s *Policy) ShowTTL(show *models.Show) time.Duration {
	if show != nil && show.Concluded() {
		return s.concluded
	}
	return s.ongoing
}

// EpisodesTTL returns the write-time ttl for a show's episode list. The
// list inherits the show's concluded state; an unknown show is treated as
// ongoing.
func (s *Policy) EpisodesTTL(show *models.Show) time.Duration {
	if show != nil && show.Concluded() {
		return s.concluded
	}
	return s.ongoing
}

// CatalogTTL returns the write-time ttl for the catalog index.
func (s *Policy) CatalogTTL() time.Duration {
	return s.catalog
}

// NextStale reports whether a cached episode list can no longer answer a
// next-episode query: once the release date of the episode that was
// unreleased at write time passes, the entry is stale no matter how much
// ttl remains, otherwise an already-aired episode would keep being served
// as "next" for up to the full ttl window.
func (s *Policy) NextStale(cached []*models.Episode, now time.Time) bool {
	for _, e := range cached {
		if e.IsReleased {
			continue
		}
		if e.ReleasedAt(now) {
			return true
		}
	}
	return false
}
