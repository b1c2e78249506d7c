package nlq

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/epguides-io/epguides-api/models"
)

const (
	apiURLFlag = "nlq-api-url"
	apiKeyFlag = "nlq-api-key"
	modelFlag  = "nlq-model"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   apiURLFlag,
			Usage:  "openai-compatible completion api url for natural-language episode filtering",
			Value:  "",
			EnvVar: "NLQ_API_URL",
		},
		cli.StringFlag{
			Name:   apiKeyFlag,
			Usage:  "completion api key",
			Value:  "",
			EnvVar: "NLQ_API_KEY",
		},
		cli.StringFlag{
			Name:   modelFlag,
			Usage:  "completion model name",
			Value:  "",
			EnvVar: "NLQ_MODEL",
		},
	)
}

const (
	maxEpisodesForContext = 100
	maxSummaryLen         = 150
)

// Api filters episode lists through an openai-compatible completion
// endpoint. This is strictly best effort: callers treat any error as "no
// filtering applied".
type Api struct {
	url   string
	key   string
	model string
	cl    *http.Client
}

func New(c *cli.Context, cl *http.Client) *Api {
	u := strings.TrimSuffix(c.String(apiURLFlag), "/")
	if u == "" {
		return nil
	}
	log.Infof("nlq api endpoint %v", u)
	return &Api{
		url:   u,
		key:   c.String(apiKeyFlag),
		model: c.String(modelFlag),
		cl:    cl,
	}
}

type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// FilterEpisodes asks the model which episodes match the free-text query
// and returns that subset in the original order.
func (api *Api) FilterEpisodes(ctx context.Context, query string, episodes []*models.Episode) ([]*models.Episode, error) {
	if len(episodes) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(chatRequest{
		Model:       api.model,
		Messages:    []chatMessage{{Role: "user", Content: buildPrompt(query, episodes)}},
		Temperature: 0.1,
		MaxTokens:   100,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", api.url+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if api.key != "" {
		req.Header.Set("Authorization", "Bearer "+api.key)
	}

	resp, err := api.cl.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	if len(cr.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}

	var indices []int
	if err := json.Unmarshal([]byte(strings.TrimSpace(cr.Choices[0].Message.Content)), &indices); err != nil {
		return nil, errors.Wrap(err, "parse index array")
	}

	var filtered []*models.Episode
	for _, i := range indices {
		if i >= 0 && i < len(episodes) {
			filtered = append(filtered, episodes[i])
		}
	}
	log.Infof("nlq filtered %d episodes to %d for query %q", len(episodes), len(filtered), query)
	return filtered, nil
}

type episodeContext struct {
	Idx   int    `json:"idx"`
	S     int    `json:"s"`
	E     int    `json:"e"`
	Title string `json:"title"`
	Date  string `json:"date"`
	Plot  string `json:"plot,omitempty"`
}

func buildPrompt(query string, episodes []*models.Episode) string {
	var ctxEpisodes []episodeContext
	for _, e := range episodes {
		if len(ctxEpisodes) >= maxEpisodesForContext {
			break
		}
		ec := episodeContext{
			Idx:   len(ctxEpisodes),
			S:     e.Season,
			E:     e.Number,
			Title: e.Title,
			Date:  e.ReleaseDate.String(),
		}
		if e.Summary != "" {
			ec.Plot = e.Summary
			if r := []rune(ec.Plot); len(r) > maxSummaryLen {
				ec.Plot = string(r[:maxSummaryLen]) + "..."
			}
		}
		ctxEpisodes = append(ctxEpisodes, ec)
	}

	seasons := map[int][]int{}
	for _, ec := range ctxEpisodes {
		seasons[ec.S] = append(seasons[ec.S], ec.Idx)
	}
	var nums []int
	for s := range seasons {
		nums = append(nums, s)
	}
	sort.Ints(nums)
	var parts []string
	for _, s := range nums {
		idx := seasons[s]
		parts = append(parts, fmt.Sprintf("S%d: eps %d-%d", s, idx[0], idx[len(idx)-1]))
	}

	data, _ := json.Marshal(ctxEpisodes)

	return fmt.Sprintf(`Find episodes matching the query. Return their idx values as a JSON array.

DATA FIELDS: idx (use this for output), s (season), e (episode number), title, date, plot

SEASON STRUCTURE: %s

RULES:
- "season finale" = highest episode number in each season
- "season premiere" = episode 1 of each season
- "pilot" = first episode ever (idx 0)
- For plot searches, check the "plot" field
- BE STRICT: Return [] if no clear match

Query: %q

Episodes:
%s

Return ONLY a JSON array of idx values, e.g. [0,5,12] or []. No text.`, strings.Join(parts, ", "), query, data)
}
