package app

import (
	"github.com/fleetdeck-io/fleetdeck/internal/auth"
	"github.com/fleetdeck-io/fleetdeck/internal/services"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// SessionServiceConfig converts AuthConfig into SessionService parameters.
func (c AuthConfig) SessionServiceConfig() auth.SessionConfig {
	ttl := c.Session.RefreshTTL
	if ttl <= 0 {
		ttl = auth.DefaultRefreshTokenTTL
	}

	length := c.Session.RefreshLength
	if length <= 0 {
		length = 48
	}

	return auth.SessionConfig{
		RefreshTokenTTL: ttl,
		RefreshLength:   length,
	}
}

// LoginLinkOptions converts AuthConfig into LoginLinkService options.
func (c AuthConfig) LoginLinkOptions() []services.LoginLinkOption {
	opts := []services.LoginLinkOption{}
	if c.Login.LinkBaseURL != "" {
		opts = append(opts, services.WithLoginLinkBaseURL(c.Login.LinkBaseURL))
	}
	if c.Login.LinkExpiry > 0 {
		opts = append(opts, services.WithLoginLinkExpiry(c.Login.LinkExpiry))
	}
	if len(c.Login.AllowedEmails) > 0 {
		opts = append(opts, services.WithAllowedEmails(c.Login.AllowedEmails))
	}
	return opts
}
