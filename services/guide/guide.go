package guide

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/webtor-io/lazymap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/epguides-io/epguides-api/models"
	"github.com/epguides-io/epguides-api/services/cache"
	"github.com/epguides-io/epguides-api/services/freshness"
)

const (
	MaxPageSize     = 100
	DefaultPageSize = 50
)

// Guide answers every show and episode query by composing the freshness
// policy, the cache store and the two upstream sources. Concurrent
// requests for the same missing key share a single upstream fetch.
type Guide struct {
	catalog  CatalogSource
	fallback FallbackSource
	store    Store
	policy   *freshness.Policy
	filterer EpisodeFilterer
	now      func() time.Time

	catalogSF  *lazymap.LazyMap[[]*models.Show]
	showSF     *lazymap.LazyMap[*models.Show]
	episodesSF *lazymap.LazyMap[[]*models.Episode]
}

func New(catalog CatalogSource, fallback FallbackSource, store Store, policy *freshness.Policy, filterer EpisodeFilterer) *Guide {
	sfConfig := &lazymap.Config{
		Expire:      10 * time.Second,
		ErrorExpire: time.Second,
	}
	return &Guide{
		catalog:    catalog,
		fallback:   fallback,
		store:      store,
		policy:     policy,
		filterer:   filterer,
		now:        time.Now,
		catalogSF:  lazymap.New[[]*models.Show](sfConfig),
		showSF:     lazymap.New[*models.Show](sfConfig),
		episodesSF: lazymap.New[[]*models.Episode](sfConfig),
	}
}

// WithNow pins the clock, for tests.
func (s *Guide) WithNow(now func() time.Time) *Guide {
	s.now = now
	return s
}

// Catalog returns the full show index, cached for the catalog ttl.
func (s *Guide) Catalog(ctx context.Context, refresh bool) ([]*models.Show, error) {
	key := cache.CatalogKey()
	if !refresh {
		var cached []*models.Show
		if s.store.GetJSON(ctx, key, &cached) {
			return cached, nil
		}
	} else {
		s.catalogSF.Drop(key)
	}
	return s.catalogSF.Get(key, func() ([]*models.Show, error) {
		shows, err := s.catalog.FetchCatalog(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "fetch catalog")
		}
		s.store.SetJSON(ctx, key, shows, s.policy.CatalogTTL())
		return shows, nil
	})
}

// GetShow returns a show's metadata. When the catalog lacks an end date the
// missing pieces are pulled from the fallback source and the episode
// listing, and the derived concluded state drives the cache ttl.
func (s *Guide) GetShow(ctx context.Context, key string, refresh bool) (*models.Show, error) {
	nkey := models.NormalizeKey(key)
	ckey := cache.ShowKey(nkey)
	if !refresh {
		var cached models.Show
		if s.store.GetJSON(ctx, ckey, &cached) {
			return &cached, nil
		}
	} else {
		s.showSF.Drop(ckey)
	}
	return s.showSF.Get(ckey, func() (*models.Show, error) {
		return s.fetchShow(ctx, nkey)
	})
}

func (s *Guide) fetchShow(ctx context.Context, nkey string) (*models.Show, error) {
	base, err := s.lookupShow(ctx, nkey)
	if err != nil {
		return nil, err
	}
	shw := *base

	var (
		wg      sync.WaitGroup
		eps     []*models.Episode
		epsErr  error
		fb      *FallbackShow
		fbErr   error
		scraped *models.Show
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		eps, epsErr = s.catalog.FetchEpisodes(ctx, nkey)
	}()
	if s.fallback != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fb, fbErr = s.fallback.Resolve(ctx, base)
		}()
	}
	if shw.IMDBID == "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scraped, _ = s.catalog.FetchShow(ctx, nkey)
		}()
	}
	wg.Wait()

	if epsErr != nil {
		log.WithError(epsErr).Warnf("failed to fetch episode stats for %v", nkey)
	}
	if fbErr != nil {
		log.WithError(fbErr).Warnf("failed to resolve fallback data for %v", nkey)
	}

	if scraped != nil && shw.IMDBID == "" {
		shw.SetIMDBID(scraped.IMDBID)
	}
	if fb != nil {
		if shw.IMDBID == "" {
			shw.SetIMDBID(fb.IMDBID)
		}
		if shw.PosterURL == "" {
			shw.PosterURL = fb.PosterURL
		}
	}
	if len(eps) > 0 {
		shw.TotalEpisodes = len(eps)
		// The catalog's explicit end date is authoritative. Only when it
		// is absent, and the fallback source reports the show as ended
		// with nothing left to air, the last release date stands in.
		if shw.EndDate == nil && fb.Concluded() && allReleased(eps, s.now()) {
			if last := latestFrom(eps, s.now()); last != nil {
				d := last.ReleaseDate
				shw.EndDate = &d
			}
		}
	}

	s.store.SetJSON(ctx, cache.ShowKey(nkey), &shw, s.policy.ShowTTL(&shw))
	return &shw, nil
}

func (s *Guide) lookupShow(ctx context.Context, nkey string) (*models.Show, error) {
	shows, err := s.Catalog(ctx, false)
	if err != nil {
		log.WithError(err).Warn("catalog unavailable, falling back to page scrape")
	}
	for _, c := range shows {
		if models.NormalizeKey(c.EpguidesKey) == nkey {
			return c, nil
		}
	}
	return s.catalog.FetchShow(ctx, nkey)
}

// GetEpisodes returns a show's full episode list, primary structure merged
// with fallback summaries, ordered by season and number. The released flag
// is recomputed against the current time on every call, cache hit or not.
func (s *Guide) GetEpisodes(ctx context.Context, key string, refresh bool) ([]*models.Episode, error) {
	nkey := models.NormalizeKey(key)
	ckey := cache.EpisodesKey(nkey)
	if !refresh {
		var cached []*models.Episode
		if s.store.GetJSON(ctx, ckey, &cached) {
			return s.restamp(cached), nil
		}
	} else {
		s.episodesSF.Drop(ckey)
	}
	eps, err := s.episodesSF.Get(ckey, func() ([]*models.Episode, error) {
		return s.fetchEpisodes(ctx, nkey)
	})
	if err != nil {
		return nil, err
	}
	return s.restamp(eps), nil
}

func (s *Guide) fetchEpisodes(ctx context.Context, nkey string) ([]*models.Episode, error) {
	shw, lerr := s.lookupShow(ctx, nkey)
	if lerr != nil && !errors.Is(lerr, models.ErrNotFound) {
		log.WithError(lerr).Warnf("failed to look up show %v for episode merge", nkey)
	}

	var (
		wg     sync.WaitGroup
		eps    []*models.Episode
		epsErr error
		fbEps  []*FallbackEpisode
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		eps, epsErr = s.catalog.FetchEpisodes(ctx, nkey)
	}()
	if s.fallback != nil && shw != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fb, err := s.fallback.Resolve(ctx, shw)
			if err == nil && fb != nil {
				fbEps, err = s.fallback.Episodes(ctx, fb)
			}
			if err != nil {
				log.WithError(err).Warnf("failed to fetch fallback episodes for %v", nkey)
			}
		}()
	}
	wg.Wait()

	if epsErr != nil {
		return nil, errors.Wrapf(epsErr, "fetch episodes %v", nkey)
	}

	s.mergeEpisodes(eps, fbEps, shw)
	models.SortEpisodes(eps)
	now := s.now()
	for _, e := range eps {
		e.IsReleased = e.ReleasedAt(now)
	}

	s.store.SetJSON(ctx, cache.EpisodesKey(nkey), eps, s.policy.EpisodesTTL(shw))
	return eps, nil
}

// mergeEpisodes layers the opportunistic fallback fields onto the primary
// structure: summaries always come from the fallback, runtimes prefer the
// catalog's show-level value.
func (s *Guide) mergeEpisodes(eps []*models.Episode, fbEps []*FallbackEpisode, shw *models.Show) {
	type epKey struct{ season, number int }
	bySlot := make(map[epKey]*FallbackEpisode, len(fbEps))
	for _, fe := range fbEps {
		bySlot[epKey{fe.Season, fe.Number}] = fe
	}
	for _, e := range eps {
		fe := bySlot[epKey{e.Season, e.Number}]
		if fe != nil && e.Summary == "" {
			e.Summary = fe.Summary
		}
		if shw != nil && shw.RunTimeMin > 0 {
			e.RunTimeMin = shw.RunTimeMin
		} else if fe != nil && fe.RunTimeMin > 0 {
			e.RunTimeMin = fe.RunTimeMin
		}
	}
}

// Episodes runs the full episode query: fetch, structured filters, then
// the optional natural-language narrowing. A failing or unconfigured
// filterer leaves the structured result untouched.
func (s *Guide) Episodes(ctx context.Context, key string, f Filters, nlq string, refresh bool) ([]*models.Episode, error) {
	eps, err := s.GetEpisodes(ctx, key, refresh)
	if err != nil {
		return nil, err
	}
	eps = ApplyFilters(eps, f)
	if nlq != "" && s.filterer != nil {
		filtered, ferr := s.filterer.FilterEpisodes(ctx, nlq, eps)
		if ferr != nil {
			log.WithError(ferr).Warn("nlq filtering failed, returning unfiltered set")
		} else {
			eps = filtered
		}
	}
	return eps, nil
}

// NextEpisode returns the episode with the earliest release date strictly
// after now. A cached list is revalidated first: once the episode that was
// "next" at write time has aired, the entry is refetched regardless of its
// remaining ttl.
func (s *Guide) NextEpisode(ctx context.Context, key string) (*models.Episode, error) {
	nkey := models.NormalizeKey(key)
	var cached []*models.Episode
	if s.store.GetJSON(ctx, cache.EpisodesKey(nkey), &cached) {
		if !s.policy.NextStale(cached, s.now()) {
			return nextFrom(s.restamp(cached), s.now())
		}
		log.Infof("cached next episode for %v passed its release date, refetching", nkey)
	}
	eps, err := s.GetEpisodes(ctx, nkey, true)
	if err != nil {
		return nil, err
	}
	return nextFrom(eps, s.now())
}

// LatestEpisode returns the episode with the latest release date not after
// now.
func (s *Guide) LatestEpisode(ctx context.Context, key string) (*models.Episode, error) {
	eps, err := s.GetEpisodes(ctx, key, false)
	if err != nil {
		return nil, err
	}
	latest := latestFrom(eps, s.now())
	if latest == nil {
		return nil, errors.Wrap(models.ErrNotFound, "no released episode")
	}
	return latest, nil
}

// Search matches the query against catalog titles, case- and
// diacritic-insensitively, keeping source order.
func (s *Guide) Search(ctx context.Context, query string) ([]*models.Show, error) {
	shows, err := s.Catalog(ctx, false)
	if err != nil {
		return nil, err
	}
	q := fold(query)
	var out []*models.Show
	for _, c := range shows {
		if strings.Contains(fold(c.Title), q) {
			out = append(out, c)
		}
	}
	return out, nil
}

type ShowList struct {
	Items    []*models.Show `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// List paginates the catalog index. The page size is clamped to
// MaxPageSize and a page past the end yields an empty list.
func (s *Guide) List(ctx context.Context, page int, pageSize int) (*ShowList, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	shows, err := s.Catalog(ctx, false)
	if err != nil {
		return nil, err
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	items := []*models.Show{}
	if start < len(shows) {
		if end > len(shows) {
			end = len(shows)
		}
		items = shows[start:end]
	}
	return &ShowList{
		Items:    items,
		Total:    len(shows),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// FlushCache drops the whole cache. Administrative only.
func (s *Guide) FlushCache(ctx context.Context) error {
	return s.store.Flush(ctx)
}

// CacheHealthy reports whether the cache backend answers.
func (s *Guide) CacheHealthy(ctx context.Context) bool {
	return s.store.Ping(ctx)
}

// restamp recomputes the released flag against the current time on fresh
// copies, so cached snapshots never leak a frozen value and concurrent
// callers never share mutable episodes.
func (s *Guide) restamp(eps []*models.Episode) []*models.Episode {
	now := s.now()
	out := make([]*models.Episode, len(eps))
	for i, e := range eps {
		c := *e
		c.IsReleased = c.ReleasedAt(now)
		out[i] = &c
	}
	return out
}

func nextFrom(eps []*models.Episode, now time.Time) (*models.Episode, error) {
	var next *models.Episode
	for _, e := range eps {
		if !e.ReleaseDate.Time.After(now) {
			continue
		}
		if next == nil || e.ReleaseDate.Time.Before(next.ReleaseDate.Time) {
			next = e
		}
	}
	if next == nil {
		return nil, errors.Wrap(models.ErrNotFound, "no upcoming episode")
	}
	return next, nil
}

func latestFrom(eps []*models.Episode, now time.Time) *models.Episode {
	var latest *models.Episode
	for _, e := range eps {
		if e.ReleaseDate.Time.After(now) {
			continue
		}
		if latest == nil || e.ReleaseDate.Time.After(latest.ReleaseDate.Time) {
			latest = e
		}
	}
	return latest
}

func allReleased(eps []*models.Episode, now time.Time) bool {
	for _, e := range eps {
		if !e.ReleasedAt(now) {
			return false
		}
	}
	return true
}

var foldT = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func fold(s string) string {
	folded, _, err := transform.String(foldT, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}
