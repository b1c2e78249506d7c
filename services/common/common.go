package common

import (
	"time"

	"github.com/epguides-io/epguides-api/models"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/urfave/cli"
)

var (
	DomainFlag = "domain"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	f = append(f,
		cli.StringFlag{
			Name:   DomainFlag,
			Usage:  "public domain of this api",
			Value:  "http://localhost:8080",
			EnvVar: "DOMAIN",
		},
	)

	return f
}

// NewBreaker builds the circuit breaker used by the upstream clients. It
// opens after a sustained failure rate and lets a few probe requests
// through while half-open.
func NewBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithField("breaker", name).Infof("state changed from %v to %v", from, to)
		},
		// A missing entity is a valid upstream answer, only transport-level
		// trouble should trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, models.ErrNotFound)
		},
	})
}
