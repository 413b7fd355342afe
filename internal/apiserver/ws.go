package apiserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/solomatovs/gauss/internal/logging"
	"github.com/solomatovs/gauss/internal/record"
	"github.com/solomatovs/gauss/internal/topic"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// subscribeTopic upgrades GET /api/topics/:name/subscribe to a WebSocket and
// streams every record published to the topic from that point on, one JSON
// object per message. The write side follows the teacher's writePump:
// a ticker drives periodic pings and the connection closes on the first
// write error or once the subscription channel is closed (readPump closes
// the subscription on client disconnect; the topic's next publish reaps it).
func (h *handler) subscribeTopic(c *gin.Context) {
	name := c.Param("name")
	t, ok := h.registry.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "topic not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Component("apiserver").Warn().Err(err).Str("topic", name).Msg("websocket upgrade failed")
		return
	}

	sub := t.Subscribe(h.wsBuffer, h.wsOverflow)
	go serveSubscriber(conn, sub)
}

func serveSubscriber(conn *websocket.Conn, sub *topic.Subscription) {
	defer sub.Close()
	defer conn.Close()

	log := logging.Component("apiserver")
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	go readPump(conn, sub)

	for {
		select {
		case rec, ok := <-sub.Records():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			data, err := json.Marshal(wireRecord(rec))
			if err != nil {
				log.Warn().Err(err).Msg("failed to marshal record for subscriber")
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains and discards client frames, only to detect disconnects
// and answer pongs, the same division of labor as the teacher's readPump.
func readPump(conn *websocket.Conn, sub *topic.Subscription) {
	defer sub.Close()
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

type wireRecordT struct {
	TsMs  int64  `json:"ts_ms"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func wireRecord(rec record.Record) wireRecordT {
	return wireRecordT{TsMs: rec.TsMs, Key: rec.Key, Value: rec.Value}
}
