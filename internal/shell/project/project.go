// Package project reads stack descriptions from YAML or TOML files.
package project

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/artpar/giac/internal/core/traefik"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrUnsupportedFormat is returned for files that are neither YAML nor TOML.
	ErrUnsupportedFormat = errors.New("unsupported project file format")

	// ErrInvalidProject is returned when a project file fails validation.
	ErrInvalidProject = errors.New("invalid project")

	// ErrUnknownKind is returned for service kinds the catalog does not know.
	ErrUnknownKind = errors.New("unknown service kind")

	// ErrUnknownReference is returned when a service names a missing service.
	ErrUnknownReference = errors.New("unknown service reference")

	// ErrDuplicateName is returned when two services share a name.
	ErrDuplicateName = errors.New("duplicate service name")
)

// =============================================================================
// Project File
// =============================================================================

// Format is the encoding of a project file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Project describes one appliance.
type Project struct {
	Name     string        `yaml:"name" toml:"name"`
	Path     string        `yaml:"path,omitempty" toml:"path,omitempty"`
	Stack    string        `yaml:"stack,omitempty" toml:"stack,omitempty"`
	Proxy    *ProxySpec    `yaml:"proxy,omitempty" toml:"proxy,omitempty"`
	Postgres *PostgresSpec `yaml:"postgres,omitempty" toml:"postgres,omitempty"`
	Services []ServiceSpec `yaml:"services,omitempty" toml:"services,omitempty"`
}

// ProxySpec configures the reverse proxy.
type ProxySpec struct {
	Enabled    bool     `yaml:"enabled" toml:"enabled"`
	Secure     bool     `yaml:"secure,omitempty" toml:"secure,omitempty"`
	ExtraHosts []string `yaml:"extra_hosts,omitempty" toml:"extra_hosts,omitempty"`
}

// PostgresSpec configures a PostgreSQL engine.
type PostgresSpec struct {
	BaseImage  string   `yaml:"base_image,omitempty" toml:"base_image,omitempty"`
	Extensions []string `yaml:"extensions,omitempty" toml:"extensions,omitempty"`
}

// ServiceSpec is one catalog or image service.
type ServiceSpec struct {
	Kind        string            `yaml:"kind" toml:"kind"`
	Name        string            `yaml:"name,omitempty" toml:"name,omitempty"`
	Image       string            `yaml:"image,omitempty" toml:"image,omitempty"`
	Database    string            `yaml:"database,omitempty" toml:"database,omitempty"`
	Repo        string            `yaml:"repo,omitempty" toml:"repo,omitempty"`
	APIURL      string            `yaml:"api_url,omitempty" toml:"api_url,omitempty"`
	Ports       []string          `yaml:"ports,omitempty" toml:"ports,omitempty"`
	Expose      []int             `yaml:"expose,omitempty" toml:"expose,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty" toml:"environment,omitempty"`
	Command     []string          `yaml:"command,omitempty" toml:"command,omitempty"`
	DependsOn   []string          `yaml:"depends_on,omitempty" toml:"depends_on,omitempty"`
	Restart     string            `yaml:"restart,omitempty" toml:"restart,omitempty"`
	Postgres    *PostgresSpec     `yaml:"postgres,omitempty" toml:"postgres,omitempty"`

	// ProxyPort is the port the proxy routes to for image services.
	ProxyPort int                    `yaml:"proxy_port,omitempty" toml:"proxy_port,omitempty"`
	Routing   *traefik.TargetOptions `yaml:"routing,omitempty" toml:"routing,omitempty"`
}

// DetectFormat picks the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Load reads a project file. The project path defaults to the file's
// directory.
func Load(path string) (*Project, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project %s: %w", path, err)
	}
	p, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if p.Path == "" {
		p.Path = filepath.Dir(path)
	} else if !filepath.IsAbs(p.Path) {
		p.Path = filepath.Join(filepath.Dir(path), p.Path)
	}
	return p, nil
}

// Decode parses project data and validates it.
func Decode(data []byte, format Format) (*Project, error) {
	var p Project
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProject, err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProject, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%w: unknown keys %v", ErrInvalidProject, undecoded)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks names and kinds. References are checked by Build.
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProject)
	}
	if p.ContextName() == "" {
		return fmt.Errorf("%w: name %q has no usable characters", ErrInvalidProject, p.Name)
	}
	if p.Stack != "" && p.Stack != StackAutoBaaS {
		return fmt.Errorf("%w: stack %q", ErrInvalidProject, p.Stack)
	}
	if p.Stack == "" && len(p.Services) == 0 {
		return fmt.Errorf("%w: no services", ErrInvalidProject)
	}
	for i, s := range p.Services {
		if _, ok := builders[s.Kind]; !ok {
			return fmt.Errorf("%w: services[%d] kind %q", ErrUnknownKind, i, s.Kind)
		}
		if s.Kind == KindImage && (s.Name == "" || s.Image == "") {
			return fmt.Errorf("%w: services[%d] image services need name and image", ErrInvalidProject, i)
		}
	}
	return nil
}
