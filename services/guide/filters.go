package guide

import (
	"strings"

	"github.com/epguides-io/epguides-api/models"
)

// Filters narrows an episode list in memory. Nil fields are not applied.
type Filters struct {
	Season      *int
	Episode     *int
	Year        *int
	TitleSearch string
}

func (f Filters) empty() bool {
	return f.Season == nil && f.Episode == nil && f.Year == nil && f.TitleSearch == ""
}

// ApplyFilters returns the episodes matching every set filter, in their
// original order.
func ApplyFilters(episodes []*models.Episode, f Filters) []*models.Episode {
	if f.empty() {
		return episodes
	}
	search := strings.ToLower(f.TitleSearch)
	var out []*models.Episode
	for _, e := range episodes {
		if f.Season != nil && e.Season != *f.Season {
			continue
		}
		if f.Episode != nil && e.Number != *f.Episode {
			continue
		}
		if f.Year != nil && e.ReleaseDate.Year() != *f.Year {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Title), search) {
			continue
		}
		out = append(out, e)
	}
	return out
}
