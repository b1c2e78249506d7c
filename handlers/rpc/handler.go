package rpc

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/epguides-io/epguides-api/models"
	"github.com/epguides-io/epguides-api/services/guide"
)

// JSON-RPC 2.0 error codes; the -32000 range carries the domain outcomes
// so callers can tell a missing show from an upstream outage.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32000
	codeNotFound       = -32004
	codeUpstream       = -32053
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Handler struct {
	g *guide.Guide
}

func RegisterHandler(r *gin.Engine, g *guide.Guide) {
	h := &Handler{g: g}
	gr := r.Group("/rpc")
	gr.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"POST"},
	}))
	gr.POST("", h.handle)
}

func (s *Handler) handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, errorResponse(nil, codeParseError, "failed to read request"))
		return
	}
	body = bytes.TrimSpace(body)

	if len(body) > 0 && body[0] == '[' {
		var reqs []json.RawMessage
		if err := json.Unmarshal(body, &reqs); err != nil || len(reqs) == 0 {
			c.JSON(http.StatusOK, errorResponse(nil, codeInvalidRequest, "invalid batch"))
			return
		}
		var out []*response
		for _, raw := range reqs {
			if resp := s.dispatchRaw(c.Request.Context(), raw); resp != nil {
				out = append(out, resp)
			}
		}
		if len(out) == 0 {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, out)
		return
	}

	resp := s.dispatchRaw(c.Request.Context(), body)
	if resp == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// dispatchRaw handles one request envelope. A nil return means the request
// was a notification and gets no response.
func (s *Handler) dispatchRaw(ctx context.Context, raw []byte) *response {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nil, codeParseError, "parse error")
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(req.ID, codeInvalidRequest, "invalid request")
	}
	result, err := s.call(ctx, req.Method, req.Params)
	if req.ID == nil {
		return nil
	}
	if err != nil {
		return errorFromDomain(req.ID, err)
	}
	return &response{JSONRPC: "2.0", Result: result, ID: req.ID}
}

type showParams struct {
	Key             string `json:"key"`
	IncludeEpisodes bool   `json:"include_episodes"`
	Refresh         bool   `json:"refresh"`
}

type episodesParams struct {
	Key         string `json:"key"`
	Season      *int   `json:"season"`
	Episode     *int   `json:"episode"`
	Year        *int   `json:"year"`
	TitleSearch string `json:"title_search"`
	NLQ         string `json:"nlq"`
	Refresh     bool   `json:"refresh"`
}

type searchParams struct {
	Query string `json:"query"`
}

type listParams struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

var errInvalidParams = errors.New("invalid params")

func (s *Handler) call(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case "show.Get":
		var p showParams
		if err := decodeParams(params, &p); err != nil || p.Key == "" {
			return nil, errInvalidParams
		}
		shw, err := s.g.GetShow(ctx, p.Key, p.Refresh)
		if err != nil {
			return nil, err
		}
		if !p.IncludeEpisodes {
			return shw, nil
		}
		eps, err := s.g.GetEpisodes(ctx, p.Key, p.Refresh)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return map[string]any{"show": shw, "episodes": eps}, nil
	case "show.Episodes":
		var p episodesParams
		if err := decodeParams(params, &p); err != nil || p.Key == "" {
			return nil, errInvalidParams
		}
		f := guide.Filters{
			Season:      p.Season,
			Episode:     p.Episode,
			Year:        p.Year,
			TitleSearch: p.TitleSearch,
		}
		return s.g.Episodes(ctx, p.Key, f, p.NLQ, p.Refresh)
	case "show.Next":
		var p showParams
		if err := decodeParams(params, &p); err != nil || p.Key == "" {
			return nil, errInvalidParams
		}
		return s.g.NextEpisode(ctx, p.Key)
	case "show.Latest":
		var p showParams
		if err := decodeParams(params, &p); err != nil || p.Key == "" {
			return nil, errInvalidParams
		}
		return s.g.LatestEpisode(ctx, p.Key)
	case "show.Search":
		var p searchParams
		if err := decodeParams(params, &p); err != nil || p.Query == "" {
			return nil, errInvalidParams
		}
		return s.g.Search(ctx, p.Query)
	case "show.List":
		var p listParams
		if err := decodeParams(params, &p); err != nil {
			return nil, errInvalidParams
		}
		return s.g.List(ctx, p.Page, p.PageSize)
	case "cache.Flush":
		if err := s.g.FlushCache(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"flushed": true}, nil
	case "cache.Health":
		return map[string]any{"healthy": s.g.CacheHealthy(ctx)}, nil
	default:
		return nil, errors.Wrapf(errMethodNotFound, "%v", method)
	}
}

var errMethodNotFound = errors.New("method not found")

func decodeParams(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func errorFromDomain(id json.RawMessage, err error) *response {
	switch {
	case errors.Is(err, errInvalidParams):
		return errorResponse(id, codeInvalidParams, "invalid params")
	case errors.Is(err, errMethodNotFound):
		return errorResponse(id, codeMethodNotFound, "method not found")
	case errors.Is(err, models.ErrNotFound):
		return errorResponse(id, codeNotFound, "not found")
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return errorResponse(id, codeUpstream, "upstream unavailable")
	default:
		log.WithError(err).Error("rpc call failed")
		return errorResponse(id, codeInternal, "internal error")
	}
}

func errorResponse(id json.RawMessage, code int, message string) *response {
	if id == nil {
		id = json.RawMessage("null")
	}
	return &response{
		JSONRPC: "2.0",
		Error:   &rpcError{Code: code, Message: message},
		ID:      id,
	}
}
