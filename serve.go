package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"

	wc "github.com/epguides-io/epguides-api/handlers/cache"
	"github.com/epguides-io/epguides-api/handlers/rpc"
	"github.com/epguides-io/epguides-api/handlers/shows"
	"github.com/epguides-io/epguides-api/services/cache"
	"github.com/epguides-io/epguides-api/services/common"
	"github.com/epguides-io/epguides-api/services/freshness"
	w "github.com/epguides-io/epguides-api/services/web"
)

func makeServeCMD() cli.Command {
	serveCMD := cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Serves the api",
		Action:  serve,
	}
	configureServe(&serveCMD)
	return serveCMD
}

func configureServe(c *cli.Command) {
	c.Flags = cs.RegisterProbeFlags(c.Flags)
	c.Flags = cs.RegisterPprofFlags(c.Flags)
	c.Flags = cs.RegisterRedisClientFlags(c.Flags)
	c.Flags = w.RegisterFlags(c.Flags)
	c.Flags = common.RegisterFlags(c.Flags)
	c.Flags = cache.RegisterFlags(c.Flags)
	c.Flags = freshness.RegisterFlags(c.Flags)
	c.Flags = configureGuide(c.Flags)
}

func serve(c *cli.Context) error {
	// Setting HTTP Client
	cl := &http.Client{
		Timeout: 30 * time.Second,
	}

	var servers []cs.Servable

	// Setting Probe
	probe := cs.NewProbe(c)
	if probe != nil {
		servers = append(servers, probe)
		defer probe.Close()
	}

	// Setting Pprof
	pprof := cs.NewPprof(c)
	if pprof != nil {
		servers = append(servers, pprof)
		defer pprof.Close()
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

	// Setting Gin
	r := gin.New()
	r.RedirectTrailingSlash = false
	r.Use(w.RequestID(), w.Logger(), gin.Recovery())

	// Setting Web
	web := w.New(c, r)
	servers = append(servers, web)
	defer web.Close()

	// Setting ShowsHandler
	shows.RegisterHandler(c, r, g)

	// Setting RPCHandler
	rpc.RegisterHandler(r, g)

	// Setting CacheHandler
	wc.RegisterHandler(r, g)

	// Setting Serve
	serve := cs.NewServe(servers...)

	// And SERVE!
	err := serve.Serve()
	if err != nil {
		log.WithError(err).Error("got server error")
	}
	return err
}
