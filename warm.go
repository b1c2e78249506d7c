package main

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"

	"github.com/epguides-io/epguides-api/services/cache"
	"github.com/epguides-io/epguides-api/services/freshness"
)

func makeWarmCMD() cli.Command {
	warmCMD := cli.Command{
		Name:    "warm",
		Aliases: []string{"w"},
		Usage:   "Prefetches the show catalog into the cache",
		Action:  warm,
	}
	configureWarm(&warmCMD)
	return warmCMD
}

func configureWarm(c *cli.Command) {
	c.Flags = cs.RegisterRedisClientFlags(c.Flags)
	c.Flags = cache.RegisterFlags(c.Flags)
	c.Flags = freshness.RegisterFlags(c.Flags)
	c.Flags = configureGuide(c.Flags)
}

func warm(c *cli.Context) error {
	// Setting HTTP Client
	cl := &http.Client{
		Timeout: 30 * time.Second,
	}

	// Setting Redis
	redis := cs.NewRedisClient(c)
	defer redis.Close()

	// Setting Cache Store
	store := cache.New(c, redis)

	// Setting Freshness Policy
	policy := freshness.New(c)

	// Setting Guide
	g := makeGuide(c, cl, store, policy)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	log.Info("warming up catalog index")
	shows, err := g.Catalog(ctx, true)
	if err != nil {
		return err
	}
	log.Infof("catalog warmed with %v shows", len(shows))

	return nil
}
