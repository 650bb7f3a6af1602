package compose

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/artpar/giac/internal/core/giac"
	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Verification Result
// =============================================================================

// Manifest is what a compose engine would see after loading an emitted
// manifest.
type Manifest struct {
	Services     []ManifestService
	Networks     []string
	Volumes      []string
	Placeholders []Placeholder
}

// ManifestService is the engine view of one service.
type ManifestService struct {
	Name      string
	Image     string
	Ports     []string
	DependsOn []string
	Labels    map[string]string
}

// Placeholder is a runtime interpolation left in the manifest.
type Placeholder struct {
	Name       string
	Default    string
	HasDefault bool
}

// =============================================================================
// Verify
// =============================================================================

// Verify loads an emitted manifest with compose-go, the loader the engine
// CLI uses, interpolating runtime placeholders from env, and checks
// dependencies and ports. Placeholders are reported from the raw text.
func Verify(ctx context.Context, manifest []byte, env map[string]string) (*Manifest, error) {
	if strings.TrimSpace(string(manifest)) == "" {
		return nil, ErrEmptyInput
	}

	project, err := loadManifest(ctx, manifest, env)
	if err != nil {
		return nil, err
	}
	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	m := &Manifest{Placeholders: ExtractPlaceholders(string(manifest))}
	for _, name := range sortedKeys(project.Services) {
		svc := project.Services[name]
		converted := ManifestService{
			Name:   name,
			Image:  svc.Image,
			Labels: map[string]string(svc.Labels),
		}
		if svc.Image == "" && svc.Build == nil {
			return nil, NewParseError("services."+name, "service must have image or build", ErrServiceNoImage)
		}
		for _, p := range svc.Ports {
			spec := p.Published + ":" + fmt.Sprint(p.Target)
			if p.Protocol != "" && p.Protocol != "tcp" {
				spec += "/" + p.Protocol
			}
			converted.Ports = append(converted.Ports, spec)
		}
		for dep := range svc.DependsOn {
			converted.DependsOn = append(converted.DependsOn, dep)
		}
		sort.Strings(converted.DependsOn)
		m.Services = append(m.Services, converted)
	}
	for name := range project.Networks {
		m.Networks = append(m.Networks, name)
	}
	sort.Strings(m.Networks)
	for name := range project.Volumes {
		m.Volumes = append(m.Volumes, name)
	}
	sort.Strings(m.Volumes)

	if err := detectCircularDependencies(m.Services); err != nil {
		return nil, err
	}
	if err := validatePorts(project); err != nil {
		return nil, err
	}
	return m, nil
}

// loadManifest loads a manifest using compose-go.
func loadManifest(ctx context.Context, manifest []byte, env map[string]string) (*types.Project, error) {
	var dict map[string]any
	if err := yaml.Unmarshal(manifest, &dict); err != nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	if dict == nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}

	project, err := loader.LoadWithContext(ctx, types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: manifest,
				Config:  dict,
			},
		},
		Environment: types.Mapping(env),
	}, func(opts *loader.Options) {
		opts.SetProjectName("giac-verify", false)
		// in-memory; nothing to resolve against
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "dependency cycle detected") {
			return nil, NewParseError("", "circular dependency detected", ErrCircularDependency)
		}
		if strings.Contains(errStr, "depends on undefined service") {
			return nil, NewParseError("", errStr, ErrUnknownDependency)
		}
		return nil, NewParseError("", errStr, ErrInvalidYAML)
	}
	return project, nil
}

// detectCircularDependencies detects circular dependencies between services.
func detectCircularDependencies(services []ManifestService) error {
	deps := make(map[string][]string)
	for _, svc := range services {
		deps[svc.Name] = svc.DependsOn
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var hasCycle func(node string) bool
	hasCycle = func(node string) bool {
		visited[node] = true
		recStack[node] = true

		for _, dep := range deps[node] {
			if dep == node {
				return true
			}
			if !visited[dep] {
				if hasCycle(dep) {
					return true
				}
			} else if recStack[dep] {
				return true
			}
		}

		recStack[node] = false
		return false
	}

	for _, svc := range services {
		if !visited[svc.Name] {
			if hasCycle(svc.Name) {
				return ErrCircularDependency
			}
		}
	}
	return nil
}

// validatePorts checks every port mapping the engine would bind.
func validatePorts(project *types.Project) error {
	for _, name := range sortedKeys(project.Services) {
		for i, port := range project.Services[name].Ports {
			field := fmt.Sprintf("services.%s.ports[%d]", name, i)
			if port.Target == 0 {
				return NewParseError(field, "target port cannot be 0", ErrServiceInvalidPort)
			}
			if port.Target > 65535 {
				return NewParseError(field, "target port must be <= 65535", ErrServiceInvalidPort)
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// Placeholders
// =============================================================================

// placeholderRegex matches ${VAR_NAME} or ${VAR_NAME:-default}.
var placeholderRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExtractPlaceholders returns the unique runtime placeholders in text, in
// order of first appearance. "$${" escapes are skipped.
func ExtractPlaceholders(text string) []Placeholder {
	seen := make(map[string]bool)
	var out []Placeholder

	for _, loc := range placeholderRegex.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > 0 && text[loc[0]-1] == '$' {
			continue
		}
		name := text[loc[2]:loc[3]]
		if seen[name] {
			continue
		}
		seen[name] = true
		p := Placeholder{Name: name}
		if loc[4] >= 0 {
			p.HasDefault = true
			p.Default = text[loc[6]:loc[7]]
		}
		out = append(out, p)
	}
	return out
}

// UnregisteredPlaceholders returns the placeholders of m that were never
// registered with the context's EnvVars.
func UnregisteredPlaceholders(cc *giac.Context, m *Manifest) []Placeholder {
	var out []Placeholder
	for _, p := range m.Placeholders {
		if _, ok := cc.EnvVars().Lookup(p.Name); !ok {
			out = append(out, p)
		}
	}
	return out
}

// VerifyEnv builds the interpolation environment for Verify: every defaulted
// placeholder with its default, overridden by values (e.g. the process
// environment or a .env file).
func VerifyEnv(cc *giac.Context, values map[string]string) map[string]string {
	env := make(map[string]string)
	for _, p := range cc.EnvVars().Defaulted() {
		env[p.QualifiedName()] = p.DefaultText()
	}
	for k, v := range values {
		env[k] = v
	}
	return env
}
