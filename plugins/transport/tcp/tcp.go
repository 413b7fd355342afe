// Package tcp implements a blocking TCP listener Transport: Start binds and
// listens, NextConnection blocks on Accept, Stop closes the listener. Used
// identically by sources (accepting publishers) and sinks (accepting
// subscribers), matching spec.md §4.3's "transport exposes blocking
// start/next_connection/stop" contract for both roles.
package tcp

import (
	"net"

	"github.com/solomatovs/gauss/internal/perr"
	"github.com/solomatovs/gauss/internal/pipeline"
	"github.com/solomatovs/gauss/internal/pluginhost"
)

func init() {
	params := []pluginhost.ConfigParam{
		{Name: "addr", Type: pluginhost.ParamStr, Context: pluginhost.ContextPostmaster, Required: true,
			Description: "address to listen on, e.g. \":9001\""},
	}
	pluginhost.RegisterBuiltin(pluginhost.KindTransport, "tcp", params, func(cfg pluginhost.ConfigValues) (any, error) {
		return New(cfg.String("addr", "")), nil
	})
}

// Transport implements pipeline.Transport over net.Listen("tcp", ...).
type Transport struct {
	addr     string
	listener net.Listener
}

func New(addr string) *Transport { return &Transport{addr: addr} }

func (t *Transport) Start() error {
	l, err := net.Listen("tcp", t.addr)
	if err != nil {
		return perr.Wrap(perr.KindIO, "tcp", "listen failed", err)
	}
	t.listener = l
	return nil
}

func (t *Transport) NextConnection() (pipeline.Conn, error) {
	conn, err := t.listener.Accept()
	if err != nil {
		if t.listener == nil {
			return nil, pipeline.ErrNoMoreConnections
		}
		return nil, perr.Wrap(perr.KindIO, "tcp", "accept failed", err)
	}
	return conn, nil
}

func (t *Transport) Stop() error {
	if t.listener == nil {
		return nil
	}
	l := t.listener
	t.listener = nil
	return l.Close()
}
