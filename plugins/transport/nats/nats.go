// Package nats implements a subject-based pub/sub Transport, the
// alternative to raw TCP for sources/sinks that want NATS's reconnect and
// routing behavior instead of owning a listen socket directly.
//
// NATS is message-based, not stream-based, so NextConnection returns one
// long-lived Conn wrapping the whole subscription/subject for the
// transport's lifetime (a single logical "connection") rather than one per
// peer; a second call reports no more connections. The synthetic Conn's
// Read pulls the next message payload, Write republishes to the subject —
// framing still applies on top, exactly as with a real byte stream.
package nats

import (
	"time"

	"github.com/nats-io/nats.go"

	"github.com/solomatovs/gauss/internal/perr"
	"github.com/solomatovs/gauss/internal/pipeline"
	"github.com/solomatovs/gauss/internal/pluginhost"
)

func init() {
	params := []pluginhost.ConfigParam{
		{Name: "url", Type: pluginhost.ParamStr, Context: pluginhost.ContextPostmaster, Required: true,
			Description: "NATS server URL"},
		{Name: "subject", Type: pluginhost.ParamStr, Context: pluginhost.ContextPostmaster, Required: true,
			Description: "subject to subscribe/publish on"},
	}
	pluginhost.RegisterBuiltin(pluginhost.KindTransport, "nats", params, func(cfg pluginhost.ConfigValues) (any, error) {
		return New(cfg.String("url", ""), cfg.String("subject", "")), nil
	})
}

// Transport implements pipeline.Transport over one NATS subject.
type Transport struct {
	url     string
	subject string
	conn    *nats.Conn
	handed  bool
}

func New(url, subject string) *Transport { return &Transport{url: url, subject: subject} }

func (t *Transport) Start() error {
	conn, err := nats.Connect(t.url,
		nats.Name("gauss-pipeline"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(10),
	)
	if err != nil {
		return perr.Wrap(perr.KindIO, "nats", "connect failed", err)
	}
	t.conn = conn
	return nil
}

// NextConnection hands back one synthetic Conn wrapping the whole
// subscription; subsequent calls report no more connections since NATS has
// no notion of discrete peer connections the way TCP does.
func (t *Transport) NextConnection() (pipeline.Conn, error) {
	if t.handed {
		return nil, pipeline.ErrNoMoreConnections
	}
	sub, err := t.conn.SubscribeSync(t.subject)
	if err != nil {
		return nil, perr.Wrap(perr.KindIO, "nats", "subscribe failed", err)
	}
	t.handed = true
	return &subjectConn{conn: t.conn, sub: sub, subject: t.subject}, nil
}

func (t *Transport) Stop() error {
	if t.conn != nil {
		t.conn.Close()
	}
	return nil
}

// subjectConn adapts a NATS subscription + publish subject to io.ReadWriteCloser.
type subjectConn struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	subject string
	pending []byte
}

func (c *subjectConn) Read(p []byte) (int, error) {
	if len(c.pending) == 0 {
		msg, err := c.sub.NextMsg(5 * time.Second)
		if err != nil {
			if err == nats.ErrTimeout {
				return 0, nil
			}
			return 0, perr.Wrap(perr.KindIO, "nats", "next message failed", err)
		}
		c.pending = msg.Data
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *subjectConn) Write(p []byte) (int, error) {
	if err := c.conn.Publish(c.subject, p); err != nil {
		return 0, perr.Wrap(perr.KindIO, "nats", "publish failed", err)
	}
	return len(p), nil
}

func (c *subjectConn) Close() error {
	return c.sub.Unsubscribe()
}
