package traefik

// =============================================================================
// Traefik Label Generation Types
// =============================================================================

// TargetOptions are the routing toggles a target may enable. Rule toggles
// are exclusive with precedence ReplaceAuth > ShieldAuth > NoServiceName >
// CheckEmailExists > PathPrefix > host rule; CORS, ForwardAuth and NonAuth
// add middleware labels on top of whichever rule wins.
type TargetOptions struct {
	// Enabled must be set for the other toggles to apply.
	Enabled bool `yaml:"enabled" toml:"enabled" mapstructure:"enabled"`

	CORS              bool `yaml:"cors" toml:"cors" mapstructure:"cors"`
	ForwardAuth       bool `yaml:"forward_auth" toml:"forward_auth" mapstructure:"forward_auth"`
	NonAuth           bool `yaml:"non_auth" toml:"non_auth" mapstructure:"non_auth"`
	ReplaceAuth       bool `yaml:"replace_auth" toml:"replace_auth" mapstructure:"replace_auth"`
	ReplaceWithShield bool `yaml:"replace_with_shield" toml:"replace_with_shield" mapstructure:"replace_with_shield"`
	ShieldAuth        bool `yaml:"shield_auth" toml:"shield_auth" mapstructure:"shield_auth"`
	NoServiceName     bool `yaml:"no_service_name" toml:"no_service_name" mapstructure:"no_service_name"`
	CheckEmailExists  bool `yaml:"check_email_exists" toml:"check_email_exists" mapstructure:"check_email_exists"`
	PathPrefix        bool `yaml:"path_prefix" toml:"path_prefix" mapstructure:"path_prefix"`
}

// LabelParams contains parameters for generating Traefik labels.
type LabelParams struct {
	// RouterName is the resolved proxied service name; every router,
	// service and middleware name is derived from it.
	RouterName string

	// Host is the host used by the default rule (e.g. "web.docker.localhost").
	Host string

	// Port is the container port to route traffic to; 0 emits no
	// loadbalancer label.
	Port int

	// Secure adds the HTTP to HTTPS redirect router and TLS labels.
	Secure bool

	// Options are the target's routing toggles.
	Options TargetOptions
}

// Label is one key/value pair. Labels are applied in order, so a later key
// replaces an earlier one.
type Label struct {
	Key   string
	Value any
}
