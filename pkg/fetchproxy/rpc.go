package fetchproxy

import (
	"context"
	"net/rpc"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

// DefaultCallTimeout bounds one RPC call made without a context deadline.
const DefaultCallTimeout = 30 * time.Second

// Plugin implements the go-plugin Plugin interface for the fetch proxy.
type Plugin struct {
	plugin.Plugin
	Impl Handler
}

// Server returns an RPC server for this plugin.
func (p *Plugin) Server(*plugin.MuxBroker) (any, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

// Client returns an RPC client for this plugin.
func (p *Plugin) Client(_ *plugin.MuxBroker, c *rpc.Client) (any, error) {
	return &RPCClient{client: c}, nil
}

// RPCServer is the RPC server implementation of the fetch proxy.
type RPCServer struct {
	Impl Handler
}

// Handle implements the RPC method. Failures travel in the Response so the
// RPC call itself only fails on transport errors.
func (s *RPCServer) Handle(req Request, resp *Response) error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultCallTimeout)
	defer cancel()
	*resp = s.Impl.Handle(ctx, req)
	return nil
}

// RPCClient is the RPC client implementation of the fetch proxy.
type RPCClient struct {
	client *rpc.Client
}

// Handle calls the remote Handle method. Transport failures and context
// cancellation are reported in the Response.
func (c *RPCClient) Handle(ctx context.Context, req Request) Response {
	var resp Response
	call := c.client.Go("Plugin.Handle", req, &resp, make(chan *rpc.Call, 1))

	select {
	case <-call.Done:
		if call.Error != nil {
			return Response{Error: "rpc: " + call.Error.Error()}
		}
		return resp
	case <-ctx.Done():
		return Response{Error: ctx.Err().Error()}
	}
}

// Serve runs h as a fetch proxy plugin process. It does not return.
func Serve(h Handler, logger hclog.Logger) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			PluginName: &Plugin{Impl: h},
		},
		Logger: logger,
	})
}
