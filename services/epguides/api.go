package epguides

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/urfave/cli"

	"github.com/epguides-io/epguides-api/models"
	sv "github.com/epguides-io/epguides-api/services/common"
)

const (
	hostFlag   = "epguides-host"
	portFlag   = "epguides-port"
	secureFlag = "epguides-secure"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   hostFlag,
			Usage:  "epguides host",
			EnvVar: "EPGUIDES_HOST",
			Value:  "epguides.com",
		},
		cli.IntFlag{
			Name:   portFlag,
			Usage:  "epguides port",
			EnvVar: "EPGUIDES_PORT",
			Value:  443,
		},
		cli.BoolTFlag{
			Name:   secureFlag,
			Usage:  "epguides secure (https)",
			EnvVar: "EPGUIDES_SECURE",
		},
	)
}

// Api fetches the primary catalog and the per-show episode listings. It
// does no caching and reports any transport trouble as a typed failure.
type Api struct {
	url string
	cl  *http.Client
	cb  *gobreaker.CircuitBreaker[[]byte]
	now func() time.Time
}

func New(c *cli.Context, cl *http.Client) *Api {
	host := c.String(hostFlag)
	port := c.Int(portFlag)
	secure := c.BoolT(secureFlag)
	protocol := "http"
	if secure {
		protocol = "https"
	}
	u := fmt.Sprintf("%v://%v:%v", protocol, host, port)
	log.Infof("epguides endpoint %v", u)
	return &Api{
		url: u,
		cl:  cl,
		cb:  sv.NewBreaker("epguides"),
		now: time.Now,
	}
}

// FetchCatalog retrieves and parses the full show index.
func (api *Api) FetchCatalog(ctx context.Context) ([]*models.Show, error) {
	body, err := api.get(ctx, api.url+"/common/allshows.txt")
	if err != nil {
		return nil, errors.Wrap(err, "fetch catalog")
	}
	shows := parseCatalog(string(body), api.now())
	for _, s := range shows {
		s.EpguidesURL = api.showURL(s.EpguidesKey)
	}
	return shows, nil
}

// FetchShowPage retrieves and scrapes a single show's listing page.
func (api *Api) FetchShowPage(ctx context.Context, key string) (*ShowPage, error) {
	body, err := api.get(ctx, api.showURL(key))
	if err != nil {
		return nil, errors.Wrapf(err, "fetch show page %v", key)
	}
	return parseShowPage(string(body)), nil
}

// FetchShow builds a show from the scraped page alone, for entries missing
// from the catalog index.
func (api *Api) FetchShow(ctx context.Context, key string) (*models.Show, error) {
	page, err := api.FetchShowPage(ctx, key)
	if err != nil {
		return nil, err
	}
	if page.Title == "" {
		return nil, errors.Wrapf(models.ErrNotFound, "no title found for %v", key)
	}
	s, err := models.NewShow(key, page.Title)
	if err != nil {
		return nil, err
	}
	s.SetIMDBID(page.IMDBID)
	s.EpguidesURL = api.showURL(key)
	return s, nil
}

// FetchEpisodes resolves the CSV export link on the show page, then
// fetches and parses the export.
func (api *Api) FetchEpisodes(ctx context.Context, key string) ([]*models.Episode, error) {
	page, err := api.FetchShowPage(ctx, key)
	if err != nil {
		return nil, err
	}
	if page.ExportPath == "" {
		return nil, errors.Wrapf(models.ErrNotFound, "no episode export found for %v", key)
	}
	body, err := api.get(ctx, api.url+page.ExportPath)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch episodes %v", key)
	}
	return parseEpisodes(string(body), page.Columns, api.now()), nil
}

func (api *Api) showURL(key string) string {
	return fmt.Sprintf("%v/%v", api.url, key)
}

func (api *Api) get(ctx context.Context, url string) ([]byte, error) {
	body, err := api.cb.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return nil, errors.Wrap(err, "create request")
		}
		resp, err := api.cl.Do(req)
		if err != nil {
			return nil, errors.Wrapf(models.ErrUpstreamUnavailable, "request failed: %v", err)
		}
		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)
		if resp.StatusCode == http.StatusNotFound {
			return nil, errors.Wrapf(models.ErrNotFound, "%v not found", url)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, errors.Wrapf(models.ErrUpstreamUnavailable, "unexpected status code %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrapf(models.ErrUpstreamUnavailable, "read response: %v", err)
		}
		return data, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Wrapf(models.ErrUpstreamUnavailable, "circuit open: %v", err)
	}
	return body, err
}
