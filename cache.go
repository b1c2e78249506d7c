package main

import (
	"context"
	"time"

	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"

	log "github.com/sirupsen/logrus"

	"github.com/epguides-io/epguides-api/services/cache"
)

func makeCacheCMD() cli.Command {
	cacheCMD := cli.Command{
		Name:    "cache",
		Aliases: []string{"c"},
		Usage:   "Cache operations",
	}
	configureCache(&cacheCMD)
	return cacheCMD
}

func configureCache(c *cli.Command) {
	flushCMD := cli.Command{
		Name:    "flush",
		Usage:   "Drops every cached entry",
		Aliases: []string{"f"},
		Action: func(c *cli.Context) error {
			return cacheFlush(c)
		},
	}
	c.Subcommands = []cli.Command{flushCMD}
	for k := range c.Subcommands {
		configureSubCache(&c.Subcommands[k])
	}
}

func configureSubCache(c *cli.Command) {
	c.Flags = cs.RegisterRedisClientFlags(c.Flags)
	c.Flags = cache.RegisterFlags(c.Flags)
}

func cacheFlush(c *cli.Context) error {
	// Setting Redis
	redis := cs.NewRedisClient(c)
	defer redis.Close()

	// Setting Cache Store
	store := cache.New(c, redis)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	log.Info("flushing cache")
	if err := store.Flush(ctx); err != nil {
		return err
	}
	log.Info("cache flushed")

	return nil
}
