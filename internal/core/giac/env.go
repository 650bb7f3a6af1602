package giac

import (
	"fmt"
	"strings"
	"unicode"
)

// =============================================================================
// Environment Variable Placeholders
// =============================================================================

// EnvVarPlaceholder is a runtime environment variable a service depends on.
// The compiler never resolves it; it emits ${NAME} or ${NAME:-default} and
// leaves substitution to the container engine.
type EnvVarPlaceholder struct {
	Name    string
	Purpose string
	Default any // nil for required variables
	Scope   Service

	qualifiedName string
}

// IsRequired reports whether the placeholder has no default.
func (p *EnvVarPlaceholder) IsRequired() bool {
	return p.Default == nil
}

// QualifiedName is the env-case name, prefixed with the scope's service name
// when scoped (e.g. "POSTGRESQLENGINE_PUBL_PORT").
func (p *EnvVarPlaceholder) QualifiedName() string {
	return p.qualifiedName
}

// DefaultText renders the default value.
func (p *EnvVarPlaceholder) DefaultText() string {
	if p.Default == nil {
		return ""
	}
	return fmt.Sprint(p.Default)
}

// Prepare renders the runtime interpolation placeholder.
func (p *EnvVarPlaceholder) Prepare() string {
	if p.IsRequired() {
		return "${" + p.qualifiedName + "}"
	}
	return "${" + p.qualifiedName + ":-" + p.DefaultText() + "}"
}

// Text returns the placeholder as a Text value.
func (p *EnvVarPlaceholder) Text() Text {
	return Literal(p.Prepare())
}

// Any returns the placeholder as an Any value.
func (p *EnvVarPlaceholder) Any() Any {
	return AnyOf(p.Prepare())
}

// ToEnvVarCase converts a name such as "reverse-proxy" or "publPort" to
// "REVERSE_PROXY" / "PUBL_PORT".
func ToEnvVarCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '-' || r == '.' || r == ' ':
			b.WriteRune('_')
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			b.WriteRune('_')
			b.WriteRune(r)
		default:
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// =============================================================================
// Registry
// =============================================================================

type envVarKey struct {
	scope string
	name  string
}

// EnvVars registers placeholders once per (scope, name). It is owned by a
// Context.
type EnvVars struct {
	cc        *Context
	index     map[envVarKey]*EnvVarPlaceholder
	required  []*EnvVarPlaceholder
	defaulted []*EnvVarPlaceholder
	listener  func(*EnvVarPlaceholder)
}

func newEnvVars(cc *Context) *EnvVars {
	return &EnvVars{cc: cc, index: make(map[envVarKey]*EnvVarPlaceholder)}
}

// RequiredEnvVar registers a variable without default. scope may be nil.
// Registering the same (scope, name) again returns the first placeholder.
func (ev *EnvVars) RequiredEnvVar(name, purpose string, scope Service) *EnvVarPlaceholder {
	return ev.register(name, purpose, nil, scope)
}

// DefaultEnvVar registers a variable with a default. scope may be nil.
func (ev *EnvVars) DefaultEnvVar(name, purpose string, def any, scope Service) *EnvVarPlaceholder {
	if def == nil {
		def = ""
	}
	return ev.register(name, purpose, def, scope)
}

func (ev *EnvVars) register(name, purpose string, def any, scope Service) *EnvVarPlaceholder {
	key := envVarKey{name: name}
	qualified := ToEnvVarCase(name)
	if scope != nil {
		key.scope = scope.Config().Name(ev.cc)
		qualified = strings.ToUpper(strings.ReplaceAll(key.scope, "-", "_")) + "_" + qualified
	}
	if existing, ok := ev.index[key]; ok {
		return existing
	}

	p := &EnvVarPlaceholder{
		Name:          name,
		Purpose:       purpose,
		Default:       def,
		Scope:         scope,
		qualifiedName: qualified,
	}
	ev.index[key] = p
	if p.IsRequired() {
		ev.required = append(ev.required, p)
	} else {
		ev.defaulted = append(ev.defaulted, p)
	}
	if ev.listener != nil {
		ev.listener(p)
	}
	return p
}

// Required returns required placeholders in registration order.
func (ev *EnvVars) Required() []*EnvVarPlaceholder {
	return append([]*EnvVarPlaceholder(nil), ev.required...)
}

// Defaulted returns defaulted placeholders in registration order.
func (ev *EnvVars) Defaulted() []*EnvVarPlaceholder {
	return append([]*EnvVarPlaceholder(nil), ev.defaulted...)
}

// All returns required then defaulted placeholders.
func (ev *EnvVars) All() []*EnvVarPlaceholder {
	return append(ev.Required(), ev.defaulted...)
}

// Lookup finds a placeholder by qualified name.
func (ev *EnvVars) Lookup(qualifiedName string) (*EnvVarPlaceholder, bool) {
	for _, p := range ev.All() {
		if p.qualifiedName == qualifiedName {
			return p, true
		}
	}
	return nil, false
}
