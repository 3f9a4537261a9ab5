package app

import (
	"strings"

	"github.com/fleetdeck-io/fleetdeck/internal/frames"
	"github.com/fleetdeck-io/fleetdeck/internal/relay"
)

// HandlerConfig converts RelayConfig into the relay package representation.
func (c RelayConfig) HandlerConfig() relay.Config {
	return relay.Config{
		UpstreamURL:      strings.TrimSpace(c.UpstreamURL),
		Secret:           strings.TrimSpace(c.Secret),
		ProtocolHeader:   strings.TrimSpace(c.ProtocolHeader),
		ProtocolValue:    strings.TrimSpace(c.ProtocolValue),
		HandshakeTimeout: c.HandshakeTimeout,
	}
}

// StoreConfig converts FramesConfig into the frame store representation.
func (c FramesConfig) StoreConfig() frames.Config {
	return frames.Config{
		MaxAge:  c.MaxAge,
		MaxKeys: c.MaxCameras,
	}
}
