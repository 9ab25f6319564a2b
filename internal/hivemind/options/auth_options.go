package options

import (
	"github.com/spf13/pflag"

	"github.com/kiosk404/hivelink/internal/hivemind/handler/middleware"
)

type AuthOptions struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	// Token falls back to HIVEMIND_TOKEN when empty.
	Token string `json:"-" mapstructure:"token"`
}

func NewAuthOptions() *AuthOptions {
	return &AuthOptions{}
}

func (o *AuthOptions) Validate() []error { return nil }

func (o *AuthOptions) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Enabled, "auth.enabled", o.Enabled, "Require a bearer token from non-loopback clients.")
	fs.StringVar(&o.Token, "auth.token", o.Token, "Bearer token. Defaults to $HIVEMIND_TOKEN.")
}

func (o *AuthOptions) Config() *middleware.AuthConfig {
	return &middleware.AuthConfig{Enabled: o.Enabled, Token: o.Token}
}
