package shows

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/epguides-io/epguides-api/models"
	sv "github.com/epguides-io/epguides-api/services/common"
	"github.com/epguides-io/epguides-api/services/guide"
)

type Handler struct {
	g      *guide.Guide
	domain string
}

func RegisterHandler(c *cli.Context, r *gin.Engine, g *guide.Guide) {
	h := &Handler{
		g:      g,
		domain: strings.TrimSuffix(c.String(sv.DomainFlag), "/"),
	}
	gr := r.Group("/shows")
	gr.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET"},
	}))
	gr.GET("", h.list)
	gr.GET("/search", h.search)
	gr.GET("/:key", h.get)
	gr.GET("/:key/episodes", h.episodes)
	gr.GET("/:key/episodes/next", h.next)
	gr.GET("/:key/episodes/latest", h.latest)
	gr.GET("/:key/episodes/:season/:number/released", h.released)
}

type showDetails struct {
	*models.Show
	Episodes []*models.Episode `json:"episodes,omitempty"`
}

func (s *Handler) list(c *gin.Context) {
	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "page_size", guide.DefaultPageSize)
	res, err := s.g.List(c.Request.Context(), page, pageSize)
	if err != nil {
		abortWithError(c, err)
		return
	}
	resp := gin.H{
		"items":        res.Items,
		"total":        res.Total,
		"page":         res.Page,
		"page_size":    res.PageSize,
		"has_next":     res.Page*res.PageSize < res.Total,
		"has_previous": res.Page > 1,
	}
	if res.Page*res.PageSize < res.Total {
		resp["next"] = fmt.Sprintf("%s/shows?page=%d&page_size=%d", s.domain, res.Page+1, res.PageSize)
	}
	if res.Page > 1 {
		resp["previous"] = fmt.Sprintf("%s/shows?page=%d&page_size=%d", s.domain, res.Page-1, res.PageSize)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Handler) search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		query = c.Query("query")
	}
	if len(query) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query must be at least 2 characters"})
		return
	}
	res, err := s.g.Search(c.Request.Context(), query)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if res == nil {
		res = []*models.Show{}
	}
	c.JSON(http.StatusOK, res)
}

func (s *Handler) get(c *gin.Context) {
	key := c.Param("key")
	refresh := boolQuery(c, "refresh")
	shw, err := s.g.GetShow(c.Request.Context(), key, refresh)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if c.Query("include") == "episodes" {
		eps, err := s.g.GetEpisodes(c.Request.Context(), key, refresh)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, &showDetails{Show: shw, Episodes: eps})
		return
	}
	c.JSON(http.StatusOK, shw)
}

func (s *Handler) episodes(c *gin.Context) {
	f := guide.Filters{
		Season:      intQueryPtr(c, "season"),
		Episode:     intQueryPtr(c, "episode"),
		Year:        intQueryPtr(c, "year"),
		TitleSearch: c.Query("title_search"),
	}
	eps, err := s.g.Episodes(c.Request.Context(), c.Param("key"), f, c.Query("nlq"), boolQuery(c, "refresh"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if eps == nil {
		eps = []*models.Episode{}
	}
	c.JSON(http.StatusOK, eps)
}

func (s *Handler) next(c *gin.Context) {
	e, err := s.g.NextEpisode(c.Request.Context(), c.Param("key"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"episode": e})
}

func (s *Handler) latest(c *gin.Context) {
	e, err := s.g.LatestEpisode(c.Request.Context(), c.Param("key"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"episode": e})
}

func (s *Handler) released(c *gin.Context) {
	season, err1 := strconv.Atoi(c.Param("season"))
	number, err2 := strconv.Atoi(c.Param("number"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "season and episode number must be integers"})
		return
	}
	eps, err := s.g.GetEpisodes(c.Request.Context(), c.Param("key"), false)
	if err != nil {
		abortWithError(c, err)
		return
	}
	for _, e := range eps {
		if e.Season == season && e.Number == number {
			c.JSON(http.StatusOK, gin.H{"status": e.IsReleased})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "episode not found"})
}

func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, models.ErrUpstreamUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upstream unavailable"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func intQuery(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

func intQueryPtr(c *gin.Context, name string) *int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return nil
	}
	return &v
}

func boolQuery(c *gin.Context, name string) bool {
	v, err := strconv.ParseBool(c.Query(name))
	return err == nil && v
}
