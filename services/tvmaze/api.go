package tvmaze

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/urfave/cli"

	"github.com/epguides-io/epguides-api/models"
	sv "github.com/epguides-io/epguides-api/services/common"
)

const (
	hostFlag   = "tvmaze-api-host"
	portFlag   = "tvmaze-api-port"
	secureFlag = "tvmaze-api-secure"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   hostFlag,
			Usage:  "tvmaze api host",
			EnvVar: "TVMAZE_API_HOST",
			Value:  "api.tvmaze.com",
		},
		cli.IntFlag{
			Name:   portFlag,
			Usage:  "tvmaze api port",
			EnvVar: "TVMAZE_API_PORT",
			Value:  443,
		},
		cli.BoolTFlag{
			Name:   secureFlag,
			Usage:  "tvmaze api secure (https)",
			EnvVar: "TVMAZE_API_SECURE",
		},
	)
}

const StatusEnded = "Ended"

type ShowResponse struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Externals struct {
		IMDB string `json:"imdb"`
	} `json:"externals"`
	Image struct {
		Medium   string `json:"medium"`
		Original string `json:"original"`
	} `json:"image"`
}

type EpisodeResponse struct {
	ID      int    `json:"id"`
	Season  int    `json:"season"`
	Number  int    `json:"number"`
	Name    string `json:"name"`
	Airdate string `json:"airdate"`
	Runtime int    `json:"runtime"`
	Summary string `json:"summary"`
}

type Api struct {
	url string
	cl  *http.Client
	cb  *gobreaker.CircuitBreaker[[]byte]
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
	log.Infof("tvmaze api endpoint %v", u)
	return &Api{
		url: u,
		cl:  cl,
		cb:  sv.NewBreaker("tvmaze"),
	}
}

// SingleSearch finds the best title match. A miss is a soft (nil, nil)
// result, not an error.
func (api *Api) SingleSearch(ctx context.Context, title string) (*ShowResponse, error) {
	u := fmt.Sprintf("%s/singlesearch/shows?q=%s", api.url, url.QueryEscape(strings.TrimSpace(title)))
	var resp ShowResponse
	found, err := api.getJSON(ctx, u, &resp)
	if err != nil || !found {
		return nil, err
	}
	return &resp, nil
}

// LookupByIMDB resolves a show by its IMDB id. A miss is a soft (nil, nil)
// result.
func (api *Api) LookupByIMDB(ctx context.Context, imdbID string) (*ShowResponse, error) {
	u := fmt.Sprintf("%s/lookup/shows?imdb=%s", api.url, url.QueryEscape(imdbID))
	var resp ShowResponse
	found, err := api.getJSON(ctx, u, &resp)
	if err != nil || !found {
		return nil, err
	}
	return &resp, nil
}

// Episodes lists all episodes of a show with their summaries.
func (api *Api) Episodes(ctx context.Context, id int) ([]*EpisodeResponse, error) {
	u := fmt.Sprintf("%s/shows/%d/episodes", api.url, id)
	var resp []*EpisodeResponse
	found, err := api.getJSON(ctx, u, &resp)
	if err != nil || !found {
		return nil, err
	}
	for _, e := range resp {
		e.Summary = stripTags(e.Summary)
	}
	return resp, nil
}

var tagRe = regexp.MustCompile(`<[^>]+>`)

func stripTags(s string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(s, ""))
}

func (api *Api) getJSON(ctx context.Context, url string, out any) (bool, error) {
	body, err := api.cb.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return nil, errors.Wrap(err, "create request")
		}
		req.Header.Set("Accept", "application/json")
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
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false, errors.Wrapf(models.ErrUpstreamUnavailable, "circuit open: %v", err)
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, errors.Wrap(err, "decode response")
	}
	return true, nil
}
