package engine

import (
	"github.com/solomatovs/gauss/internal/config"
	"github.com/solomatovs/gauss/internal/pipeline"
	"github.com/solomatovs/gauss/internal/pluginhost"
)

// endpointHandles is everything buildEndpoint loaded, so the caller can
// unload it symmetrically when the endpoint's task stops.
type endpointHandles struct {
	transport  *pluginhost.Handle
	framing    *pluginhost.Handle
	middleware []*pluginhost.Handle
	codec      *pluginhost.Handle
}

func (h endpointHandles) unload(host *pluginhost.Host) {
	if h.transport != nil {
		_ = host.Unload(h.transport)
	}
	if h.framing != nil {
		_ = host.Unload(h.framing)
	}
	for _, m := range h.middleware {
		_ = host.Unload(m)
	}
	if h.codec != nil {
		_ = host.Unload(h.codec)
	}
}

// buildEndpoint composes one pipeline.Endpoint from an EndpointConfig's
// pipeline-mode fields (spec.md §4.3 Endpoint composition).
func buildEndpoint(host *pluginhost.Host, ep config.EndpointConfig) (*pipeline.Endpoint, endpointHandles, error) {
	var handles endpointHandles

	transport, tHandle, err := pluginhost.LoadTyped[pipeline.Transport](host, pluginhost.KindTransport, ep.Transport, ep.TransportConfig)
	if err != nil {
		return nil, handles, err
	}
	handles.transport = tHandle

	framing, fHandle, err := pluginhost.LoadTyped[pipeline.Framing](host, pluginhost.KindFraming, ep.Framing, ep.FramingConfig)
	if err != nil {
		handles.unload(host)
		return nil, handles, err
	}
	handles.framing = fHandle

	var middleware []pipeline.Middleware
	for _, ref := range ep.Middleware {
		mw, mHandle, err := pluginhost.LoadTyped[pipeline.Middleware](host, pluginhost.KindMiddleware, ref.Plugin, ref.Config)
		if err != nil {
			handles.unload(host)
			return nil, handles, err
		}
		middleware = append(middleware, mw)
		handles.middleware = append(handles.middleware, mHandle)
	}

	codec, cHandle, err := pluginhost.LoadTyped[pipeline.Codec](host, pluginhost.KindCodec, ep.Codec, ep.CodecConfig)
	if err != nil {
		handles.unload(host)
		return nil, handles, err
	}
	handles.codec = cHandle

	endpoint := &pipeline.Endpoint{
		Transport:  transport,
		Framing:    framing,
		Middleware: middleware,
		Codec:      codec,
		KeyField:   ep.KeyField,
		TsField:    ep.TsField,
	}
	return endpoint, handles, nil
}
