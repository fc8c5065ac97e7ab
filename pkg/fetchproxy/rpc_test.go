package fetchproxy

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var echoHandler = HandlerFunc(func(_ context.Context, req Request) Response {
	switch req.Action {
	case ActionFetchCSS:
		if req.URL == "https://example.com/missing.css" {
			return Response{Error: "HTTP 404: 404 Not Found"}
		}
		return Response{CSSText: "/* " + req.URL + " */"}
	default:
		return Unsupported(req)
	}
})

// connect wires an RPCClient to an RPCServer over an in-memory pipe.
func connect(t *testing.T, h Handler) *RPCClient {
	t.Helper()

	p := &Plugin{Impl: h}
	impl, err := p.Server(nil)
	require.NoError(t, err)

	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("Plugin", impl))

	serverConn, clientConn := net.Pipe()
	go srv.ServeConn(serverConn)

	rpcClient := rpc.NewClient(clientConn)
	t.Cleanup(func() { _ = rpcClient.Close() })

	raw, err := p.Client(nil, rpcClient)
	require.NoError(t, err)
	return raw.(*RPCClient)
}

func TestRPCRoundTrip(t *testing.T) {
	client := connect(t, echoHandler)
	ctx := context.Background()

	resp := client.Handle(ctx, Request{Action: ActionFetchCSS, URL: "https://example.com/site.css"})
	require.NoError(t, resp.Err())
	assert.Equal(t, "/* https://example.com/site.css */", resp.CSSText)

	resp = client.Handle(ctx, Request{Action: ActionFetchCSS, URL: "https://example.com/missing.css"})
	require.Error(t, resp.Err())
	assert.Equal(t, "HTTP 404: 404 Not Found", resp.Err().Error())
	assert.Empty(t, resp.CSSText)

	resp = client.Handle(ctx, Request{Action: "fetchJs"})
	assert.Equal(t, "unsupported action: fetchJs", resp.Error)
}

func TestRPCClientHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	client := connect(t, HandlerFunc(func(context.Context, Request) Response {
		<-block
		return Response{}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	resp := client.Handle(ctx, Request{Action: ActionFetchCSS, URL: "https://example.com/slow.css"})
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Error)
}

func TestRPCClientTransportError(t *testing.T) {
	client := connect(t, echoHandler)
	require.NoError(t, client.client.Close())

	resp := client.Handle(context.Background(), Request{Action: ActionFetchCSS, URL: "https://example.com/a.css"})
	assert.Contains(t, resp.Error, "rpc:")
}

func TestResponseErr(t *testing.T) {
	assert.NoError(t, Response{CSSText: "a{}"}.Err())

	var rpcErr *RPCError
	require.True(t, errors.As(Response{Error: "boom"}.Err(), &rpcErr))
	assert.Equal(t, "boom", rpcErr.Message)
}
