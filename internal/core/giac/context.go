package giac

import (
	"log/slog"
)

// =============================================================================
// Context
// =============================================================================

// Selector accepts the services a subscriber is interested in.
type Selector func(Service) bool

// Handler reacts to a selected service during Finalize.
type Handler func(cc *Context, s Service)

type subscription struct {
	handler   Handler
	selectors []Selector
}

// Context is the aggregate root of one compilation run. Registration
// (Configured, Subscribe, EnvVars) is single-writer and must complete before
// Finalize; afterwards the context is frozen.
type Context struct {
	projectPath string
	name        Text
	envVars     *EnvVars
	services    []Service
	subscribers []subscription
	finalized   *Services
	logger      *slog.Logger
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(cc *Context) { cc.logger = logger }
}

// WithEnvVarListener is called for every newly registered placeholder.
func WithEnvVarListener(fn func(*EnvVarPlaceholder)) ContextOption {
	return func(cc *Context) { cc.envVars.listener = fn }
}

// NewContext creates the context for one compilation run.
func NewContext(projectPath string, name Text, opts ...ContextOption) *Context {
	cc := &Context{
		projectPath: projectPath,
		name:        name,
		logger:      slog.Default(),
	}
	cc.envVars = newEnvVars(cc)
	for _, opt := range opts {
		opt(cc)
	}
	return cc
}

// ProjectPath is the directory artifacts are relative to.
func (cc *Context) ProjectPath() string { return cc.projectPath }

// Name is the appliance name.
func (cc *Context) Name() Text { return cc.name }

// ResolvedName resolves the appliance name.
func (cc *Context) ResolvedName() string { return cc.name.Resolve(cc) }

// EnvVars is the placeholder registry.
func (cc *Context) EnvVars() *EnvVars { return cc.envVars }

// Logger returns the context logger.
func (cc *Context) Logger() *slog.Logger { return cc.logger }

// Frozen reports whether Finalize has run.
func (cc *Context) Frozen() bool { return cc.finalized != nil }

// Register appends s to the registry. After Finalize the call is ignored and
// logged.
func (cc *Context) Register(s Service) {
	if cc.Frozen() {
		cc.logger.Warn("service registered after finalize is ignored",
			"service", s.Config().Name(cc),
			"error", ErrFrozen,
		)
		return
	}
	cc.services = append(cc.services, s)
}

// Configured registers s and returns it unchanged.
func Configured[S Service](cc *Context, s S) S {
	cc.Register(s)
	return s
}

// Registered returns the services registered so far, in order.
func (cc *Context) Registered() []Service {
	return append([]Service(nil), cc.services...)
}

// Subscribe registers handler for services accepted by any of selectors.
// Without selectors the handler receives every service.
func (cc *Context) Subscribe(handler Handler, selectors ...Selector) {
	if cc.Frozen() {
		cc.logger.Warn("subscriber added after finalize is ignored", "error", ErrFrozen)
		return
	}
	if len(selectors) == 0 {
		selectors = []Selector{func(Service) bool { return true }}
	}
	cc.subscribers = append(cc.subscribers, subscription{handler: handler, selectors: selectors})
}

// Finalize snapshots the registered services, fires every subscriber for
// every service a selector accepts (services in registration order, then
// subscribers in subscription order, then selectors in order) and freezes the
// context. A second call returns the same set and ErrAlreadyFinalized without
// firing anything.
func (cc *Context) Finalize() (*Services, error) {
	if cc.finalized != nil {
		return cc.finalized, ErrAlreadyFinalized
	}

	set := &Services{cc: cc, services: append([]Service(nil), cc.services...)}
	for _, s := range set.services {
		for _, sub := range cc.subscribers {
			for _, accept := range sub.selectors {
				if accept(s) {
					sub.handler(cc, s)
				}
			}
		}
	}
	cc.finalized = set

	cc.logger.Debug("context finalized",
		"services", len(set.services),
		"subscribers", len(cc.subscribers),
	)
	return set, nil
}

// =============================================================================
// Services
// =============================================================================

// Services is the immutable set produced by Finalize.
type Services struct {
	cc       *Context
	services []Service
}

// Context returns the context the set was finalized from.
func (s *Services) Context() *Context { return s.cc }

// Len returns the number of services.
func (s *Services) Len() int { return len(s.services) }

// All returns a copy of the services in registration order.
func (s *Services) All() []Service {
	return append([]Service(nil), s.services...)
}

// ForEach visits every service in registration order.
func (s *Services) ForEach(fn func(Service)) {
	for _, svc := range s.services {
		fn(svc)
	}
}

// ForEachPair visits every ordered pair of distinct services.
func (s *Services) ForEachPair(fn func(a, b Service)) {
	for i, a := range s.services {
		for j, b := range s.services {
			if i != j {
				fn(a, b)
			}
		}
	}
}
