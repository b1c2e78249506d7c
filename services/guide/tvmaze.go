package guide

import (
	"context"

	"github.com/epguides-io/epguides-api/models"
	"github.com/epguides-io/epguides-api/services/tvmaze"
)

// TVMaze adapts the tvmaze client to the FallbackSource seam.
type TVMaze struct {
	api *tvmaze.Api
}

func NewTVMaze(api *tvmaze.Api) *TVMaze {
	if api == nil {
		return nil
	}
	return &TVMaze{api: api}
}

func (s *TVMaze) Resolve(ctx context.Context, show *models.Show) (*FallbackShow, error) {
	var (
		resp *tvmaze.ShowResponse
		err  error
	)
	if show.IMDBID != "" {
		resp, err = s.api.LookupByIMDB(ctx, show.IMDBID)
	} else {
		resp, err = s.api.SingleSearch(ctx, show.Title)
	}
	if err != nil || resp == nil {
		return nil, err
	}
	fb := &FallbackShow{
		ID:     resp.ID,
		Status: resp.Status,
		IMDBID: resp.Externals.IMDB,
	}
	if resp.Image.Original != "" {
		fb.PosterURL = resp.Image.Original
	} else {
		fb.PosterURL = resp.Image.Medium
	}
	return fb, nil
}

func (s *TVMaze) Episodes(ctx context.Context, ref *FallbackShow) ([]*FallbackEpisode, error) {
	if ref == nil {
		return nil, nil
	}
	resp, err := s.api.Episodes(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	episodes := make([]*FallbackEpisode, 0, len(resp))
	for _, e := range resp {
		episodes = append(episodes, &FallbackEpisode{
			Season:     e.Season,
			Number:     e.Number,
			Summary:    e.Summary,
			RunTimeMin: e.Runtime,
		})
	}
	return episodes, nil
}
