package compose

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Orchestration Document
// =============================================================================

// Document is the in-memory compose manifest. Services keep registration
// order when rendered.
type Document struct {
	Version  string
	Services []NamedService
	Networks map[string]NetworkDoc
	Volumes  map[string]VolumeDoc
}

// NamedService pairs a resolved service name with its rendering.
type NamedService struct {
	Name    string
	Service *ServiceDoc
}

// ServiceDoc is one entry of the services section. Field order is the
// rendering order.
type ServiceDoc struct {
	ContainerName string         `yaml:"container_name,omitempty"`
	Hostname      string         `yaml:"hostname,omitempty"`
	Build         *BuildDoc      `yaml:"build,omitempty"`
	Image         string         `yaml:"image,omitempty"`
	Restart       string         `yaml:"restart,omitempty"`
	Ports         []string       `yaml:"ports,omitempty"`
	Expose        []string       `yaml:"expose,omitempty"`
	DependsOn     []string       `yaml:"depends_on,omitempty"`
	Environment   map[string]any `yaml:"environment,omitempty"`
	Volumes       []string       `yaml:"volumes,omitempty"`
	ExtraHosts    []string       `yaml:"extra_hosts,omitempty"`
	Networks      []string       `yaml:"networks,omitempty"`
	Command       []string       `yaml:"command,omitempty"`
	Labels        map[string]any `yaml:"labels,omitempty"`
}

// BuildDoc is the build section of a service.
type BuildDoc struct {
	Context    string            `yaml:"context"`
	Dockerfile string            `yaml:"dockerfile"`
	Args       map[string]string `yaml:"args,omitempty"`
}

// NetworkDoc declares an external network.
type NetworkDoc struct {
	External ExternalDoc `yaml:"external"`
}

// ExternalDoc names the engine-level resource.
type ExternalDoc struct {
	Name string `yaml:"name"`
}

// VolumeDoc declares a named volume with engine defaults.
type VolumeDoc struct{}

// Service returns the rendering of the named service, or nil.
func (d *Document) Service(name string) *ServiceDoc {
	for _, ns := range d.Services {
		if ns.Name == name {
			return ns.Service
		}
	}
	return nil
}

// ServiceNames returns the service names in document order.
func (d *Document) ServiceNames() []string {
	names := make([]string, 0, len(d.Services))
	for _, ns := range d.Services {
		names = append(names, ns.Name)
	}
	return names
}

func (d *Document) setService(name string, svc *ServiceDoc) {
	for i, ns := range d.Services {
		if ns.Name == name {
			d.Services[i].Service = svc
			return
		}
	}
	d.Services = append(d.Services, NamedService{Name: name, Service: svc})
}

// MarshalYAML renders version, services (in order), networks and volumes.
func (d *Document) MarshalYAML() (any, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	if err := appendPair(root, "version", d.Version); err != nil {
		return nil, err
	}

	services := &yaml.Node{Kind: yaml.MappingNode}
	for _, ns := range d.Services {
		if err := appendPair(services, ns.Name, ns.Service); err != nil {
			return nil, fmt.Errorf("service %s: %w", ns.Name, err)
		}
	}
	root.Content = append(root.Content, scalar("services"), services)

	if len(d.Networks) > 0 {
		if err := appendPair(root, "networks", d.Networks); err != nil {
			return nil, err
		}
	}
	if len(d.Volumes) > 0 {
		if err := appendPair(root, "volumes", d.Volumes); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// Marshal encodes the document as YAML with two-space indentation.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func appendPair(mapping *yaml.Node, key string, value any) error {
	var node yaml.Node
	if err := node.Encode(value); err != nil {
		return err
	}
	mapping.Content = append(mapping.Content, scalar(key), &node)
	return nil
}
