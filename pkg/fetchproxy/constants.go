package fetchproxy

import (
	"github.com/hashicorp/go-plugin"
)

const (
	// ProtocolVersion defines the current fetch proxy API version.
	// Format: MAJOR.MINOR.PATCH.
	ProtocolVersion = "1.0.0"

	// PluginName is the name the proxy is dispensed under.
	PluginName = "fetchproxy"
)

// Handshake is the handshake configuration for the go-plugin protocol.
// This ensures that only a compatible fetch daemon is launched.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1, // Major version from ProtocolVersion
	MagicCookieKey:   "UMBRA_FETCH_PROXY",
	MagicCookieValue: "umbra_stylesheet_fetch",
}
