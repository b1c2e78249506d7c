package main

import (
	"net/http"

	"github.com/urfave/cli"

	"github.com/epguides-io/epguides-api/services/cache"
	"github.com/epguides-io/epguides-api/services/epguides"
	"github.com/epguides-io/epguides-api/services/freshness"
	"github.com/epguides-io/epguides-api/services/guide"
	"github.com/epguides-io/epguides-api/services/nlq"
	"github.com/epguides-io/epguides-api/services/tvmaze"
)

func configureGuide(f []cli.Flag) []cli.Flag {
	f = epguides.RegisterFlags(f)
	f = tvmaze.RegisterFlags(f)
	f = nlq.RegisterFlags(f)
	return f
}

func makeGuide(c *cli.Context, cl *http.Client, store *cache.Store, policy *freshness.Policy) *guide.Guide {
	// Setting Epguides API
	epguidesApi := epguides.New(c, cl)

	// Setting TVMaze API
	tvmazeApi := tvmaze.New(c, cl)

	// Setting NLQ API
	nlqApi := nlq.New(c, cl)

	var filterer guide.EpisodeFilterer
	if nlqApi != nil {
		filterer = nlqApi
	}

	var fallback guide.FallbackSource
	if fb := guide.NewTVMaze(tvmazeApi); fb != nil {
		fallback = fb
	}

	// Setting Guide
	return guide.New(epguidesApi, fallback, store, policy, filterer)
}
