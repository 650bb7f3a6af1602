// Package traefik wires services into a Traefik reverse proxy through
// container labels.
//
// Services opt in by implementing Target (usually by embedding Exposure).
// The proxy does not know its targets up front: Configure registers the
// proxy service and subscribes to the compilation context, and every
// enabled target accepted at Finalize receives its labels.
//
// # Functions
//
//   - GenerateLabels: derive the ordered label list for one target (pure)
//   - Configure: register the proxy and subscribe it to the context
//   - DefaultValuesSupplier: host names built from the EP_* placeholders
//
// # Usage
//
//	cc := giac.NewContext(".", giac.Literal("appx"))
//	traefik.Configure(cc, traefik.ProxyOptions{Secure: true, Values: traefik.DefaultValuesSupplier(cc)})
//	giac.Configured(cc, catalog.NewAdminer(cc))
//	services, _ := cc.Finalize() // adminer now carries traefik.* labels
//
// Router and middleware names are derived from the proxied service name and
// are read verbatim by Traefik; they must not change.
package traefik
