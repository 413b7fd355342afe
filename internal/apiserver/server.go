package apiserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/solomatovs/gauss/internal/logging"
	"github.com/solomatovs/gauss/internal/topic"
)

// Serve builds the gin router and runs it until ctx is cancelled. It is
// meant to be run in its own goroutine by the engine bootstrap; a bind
// failure is logged rather than propagated since the API server is an
// optional collaborator (spec.md marks query/subscribe as best-effort).
func Serve(ctx context.Context, registry *topic.Registry, apiPort, wsBuffer int, wsOverflow topic.OverflowPolicy) {
	log := logging.Component("apiserver")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), structuredLogger())

	h := &handler{registry: registry, wsBuffer: wsBuffer, wsOverflow: wsOverflow}

	router.GET("/healthz", h.health)

	api := router.Group("/api")
	api.Use(requestTimeout(10 * time.Second))
	api.GET("/topics", h.listTopics)
	api.GET("/topics/:name", h.queryTopic)

	router.GET("/api/topics/:name/subscribe", h.subscribeTopic)

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(apiPort),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("api server stopped")
	}
}

type handler struct {
	registry   *topic.Registry
	wsBuffer   int
	wsOverflow topic.OverflowPolicy
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) listTopics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"topics": h.registry.Names()})
}

// queryTopic serves GET /api/topics/:name?key=&from_ms=&to_ms=&limit=&offset=&order=
func (h *handler) queryTopic(c *gin.Context) {
	name := c.Param("name")
	t, ok := h.registry.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "topic not found"})
		return
	}

	q := topic.Query{Order: topic.OrderDesc}
	if key := c.Query("key"); key != "" {
		q.Key = &key
	}
	if v, ok := parseInt64Query(c, "from_ms"); ok {
		q.FromMs = &v
	}
	if v, ok := parseInt64Query(c, "to_ms"); ok {
		q.ToMs = &v
	}
	if v, ok := parseIntQuery(c, "limit"); ok {
		q.Limit = &v
	}
	if v, ok := parseIntQuery(c, "offset"); ok {
		q.Offset = &v
	}
	if order := c.Query("order"); order == string(topic.OrderAsc) {
		q.Order = topic.OrderAsc
	}

	result, err := t.Query(q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"records":     result.Records,
		"next_offset": result.NextOffset,
	})
}

func parseInt64Query(c *gin.Context, key string) (int64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	return v, err == nil
}

func parseIntQuery(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	return v, err == nil
}
