package fetchproxy

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	"github.com/jmylchreest/umbra/pkg/fetchproxy"
)

// Direct calls a handler in process. It satisfies engine.Fetcher.
type Direct struct {
	Handler fetchproxy.Handler
}

// FetchCSS sends a fetchCss request and unwraps the response.
func (d Direct) FetchCSS(ctx context.Context, url string) (string, error) {
	return fetchCSS(ctx, d.Handler, url)
}

func fetchCSS(ctx context.Context, h fetchproxy.Handler, url string) (string, error) {
	resp := h.Handle(ctx, fetchproxy.Request{Action: fetchproxy.ActionFetchCSS, URL: url})
	if err := resp.Err(); err != nil {
		return "", err
	}
	return resp.CSSText, nil
}

// Remote is a fetch proxy running in a separate umbra-fetchd process. It
// satisfies engine.Fetcher and is safe for concurrent use.
type Remote struct {
	mu     sync.Mutex
	client *plugin.Client
	proxy  fetchproxy.Handler
}

// Launch starts the fetch daemon at path and connects to it over go-plugin
// net/rpc. env is appended to the inherited environment. Close must be
// called to stop the process.
func Launch(path string, env []string, logger hclog.Logger) (*Remote, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	// #nosec G204 - Daemon path comes from configuration
	cmd := exec.Command(path)
	cmd.Env = append(os.Environ(), env...)

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: fetchproxy.Handshake,
		Plugins: map[string]plugin.Plugin{
			fetchproxy.PluginName: &fetchproxy.Plugin{},
		},
		Cmd:              cmd,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
		Logger:           logger.Named("fetchd"),
	})

	// Connect via RPC.
	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to get RPC client: %w", err)
	}

	// Request the plugin.
	raw, err := rpcClient.Dispense(fetchproxy.PluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to dispense fetch proxy: %w", err)
	}

	proxy, ok := raw.(*fetchproxy.RPCClient)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("unexpected fetch proxy type %T", raw)
	}

	return &Remote{client: client, proxy: proxy}, nil
}

// FetchCSS sends a fetchCss request to the daemon.
func (r *Remote) FetchCSS(ctx context.Context, url string) (string, error) {
	r.mu.Lock()
	proxy := r.proxy
	r.mu.Unlock()
	if proxy == nil {
		return "", fmt.Errorf("fetch proxy closed")
	}
	return fetchCSS(ctx, proxy, url)
}

// Close stops the daemon.
func (r *Remote) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		r.client.Kill()
		r.client = nil
		r.proxy = nil
	}
}
