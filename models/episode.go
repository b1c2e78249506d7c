package models

import (
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Episode is a single aired or scheduled episode of a show. Season 0 holds
// specials.
type Episode struct {
	Season         int    `json:"season"`
	Number         int    `json:"number"`
	AbsoluteNumber int    `json:"absolute_number,omitempty"`
	Title          string `json:"title"`
	ReleaseDate    Date   `json:"release_date"`
	IsReleased     bool   `json:"is_released"`
	RunTimeMin     int    `json:"run_time_min,omitempty"`
	Summary        string `json:"summary,omitempty"`
}

// NewEpisode builds an episode with the required fields set.
func NewEpisode(season int, number int, title string, releaseDate Date) (*Episode, error) {
	if season < 0 {
		return nil, errors.Errorf("episode season %v is negative", season)
	}
	if number < 1 {
		return nil, errors.Errorf("episode number %v is not positive", number)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("episode title is empty")
	}
	if releaseDate.IsZero() {
		return nil, errors.New("episode release date is not set")
	}
	return &Episode{
		Season:      season,
		Number:      number,
		Title:       title,
		ReleaseDate: releaseDate,
	}, nil
}

// ReleasedAt reports whether the episode has aired as of the given time.
func (e *Episode) ReleasedAt(now time.Time) bool {
	return !e.ReleaseDate.Time.After(now)
}

// SortEpisodes orders episodes by season and number and renumbers their
// absolute positions across the full run.
func SortEpisodes(episodes []*Episode) {
	sort.Slice(episodes, func(i, j int) bool {
		if episodes[i].Season != episodes[j].Season {
			return episodes[i].Season < episodes[j].Season
		}
		return episodes[i].Number < episodes[j].Number
	})
	for i, e := range episodes {
		e.AbsoluteNumber = i + 1
	}
}
