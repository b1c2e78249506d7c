package cache

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/epguides-io/epguides-api/services/guide"
)

// Administrative cache endpoints, kept off the request-serving surface.
type Handler struct {
	g *guide.Guide
}

func RegisterHandler(r *gin.Engine, g *guide.Guide) {
	h := &Handler{g: g}
	gr := r.Group("/cache")
	gr.POST("/flush", h.flush)
	gr.GET("/health", h.health)
}

func (s *Handler) flush(c *gin.Context) {
	if err := s.g.FlushCache(c.Request.Context()); err != nil {
		log.WithError(err).Error("failed to flush cache")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to flush cache"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"flushed": true})
}

func (s *Handler) health(c *gin.Context) {
	healthy := s.g.CacheHealthy(c.Request.Context())
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"healthy": healthy})
}
