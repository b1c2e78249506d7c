package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Show is the canonical representation of a TV show assembled from the
// upstream listing sources.
type Show struct {
	EpguidesKey   string `json:"epguides_key"`
	Title         string `json:"title"`
	IMDBID        string `json:"imdb_id,omitempty"`
	Network       string `json:"network,omitempty"`
	Country       string `json:"country,omitempty"`
	RunTimeMin    int    `json:"run_time_min,omitempty"`
	StartDate     *Date  `json:"start_date,omitempty"`
	EndDate       *Date  `json:"end_date,omitempty"`
	TotalEpisodes int    `json:"total_episodes,omitempty"`
	PosterURL     string `json:"poster_url,omitempty"`
	EpguidesURL   string `json:"epguides_url,omitempty"`
	IMDBURL       string `json:"imdb_url,omitempty"`
}

// NewShow builds a show with the required identity fields set. The key is
// stored in its normalized form.
func NewShow(key string, title string) (*Show, error) {
	key = NormalizeKey(key)
	title = strings.TrimSpace(title)
	if key == "" {
		return nil, errors.New("show key is empty")
	}
	if title == "" {
		return nil, errors.Errorf("show %v has no title", key)
	}
	return &Show{
		EpguidesKey: key,
		Title:       title,
	}, nil
}

// Concluded reports whether the show has a known end date.
func (s *Show) Concluded() bool {
	return s.EndDate != nil
}

// SetIMDBID stores a normalized IMDB id together with the matching title URL.
func (s *Show) SetIMDBID(id string) {
	id = NormalizeIMDBID(id)
	if id == "" {
		return
	}
	s.IMDBID = id
	s.IMDBURL = fmt.Sprintf("https://www.imdb.com/title/%v/", id)
}

// NormalizeKey converts a show key to its canonical catalog form: lower
// case, no spaces and no leading "the", so "The Office", "theoffice" and
// "TheOffice" address the same entry.
func NormalizeKey(key string) string {
	k := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), " ", "")
	return strings.TrimPrefix(k, "the")
}

// NormalizeIMDBID pads the numeric part of an IMDB id to seven digits, so
// "tt903747" and "tt0903747" address the same title.
func NormalizeIMDBID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) <= 2 || !strings.HasPrefix(strings.ToLower(id), "tt") {
		return id
	}
	n, err := strconv.Atoi(id[2:])
	if err != nil {
		return id
	}
	return fmt.Sprintf("tt%07d", n)
}
