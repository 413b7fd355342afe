package apiserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/solomatovs/gauss/internal/record"
	"github.com/solomatovs/gauss/internal/topic"

	memstorage "github.com/solomatovs/gauss/plugins/storage/memory"
)

func newTestHandler(t *testing.T) *handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := topic.NewRegistry()
	tp, err := topic.New("ticks", "json", nil, memstorage.New(0))
	require.NoError(t, err)
	require.NoError(t, reg.Register(tp))
	require.NoError(t, tp.Publish(record.Record{TsMs: 1, Key: "AAPL", Value: 100}))
	require.NoError(t, tp.Publish(record.Record{TsMs: 2, Key: "MSFT", Value: 200}))

	return &handler{registry: reg, wsBuffer: 4, wsOverflow: topic.Drop}
}

func TestHealthReturnsOK(t *testing.T) {
	h := newTestHandler(t)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/healthz", nil)

	h.health(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestListTopicsReturnsRegisteredNames(t *testing.T) {
	h := newTestHandler(t)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/topics", nil)

	h.listTopics(c)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Topics []string `json:"topics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, []string{"ticks"}, body.Topics)
}

func TestQueryTopicNotFound(t *testing.T) {
	h := newTestHandler(t)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/topics/missing", nil)
	c.Params = gin.Params{{Key: "name", Value: "missing"}}

	h.queryTopic(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueryTopicFiltersByKeyAndOrder(t *testing.T) {
	h := newTestHandler(t)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/topics/ticks?key=AAPL&order=asc", nil)
	c.Params = gin.Params{{Key: "name", Value: "ticks"}}

	h.queryTopic(c)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Records []record.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Records, 1)
	require.Equal(t, "AAPL", body.Records[0].Key)
}

func TestParseInt64QueryAndParseIntQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/x?from_ms=100&limit=abc", nil)

	v, ok := parseInt64Query(c, "from_ms")
	require.True(t, ok)
	require.Equal(t, int64(100), v)

	_, ok = parseInt64Query(c, "to_ms")
	require.False(t, ok)

	_, ok = parseIntQuery(c, "limit")
	require.False(t, ok, "non-numeric limit must be rejected")
}
