package giac

// =============================================================================
// Port Configuration
// =============================================================================

// Port is either an ExposePort or a PublishPort.
type Port interface {
	port()
}

// ExposePort makes a container port reachable on the service networks only.
type ExposePort struct {
	Target Numeric
}

// PublishPort maps a host port onto a container port. Published is Text so it
// can carry a runtime placeholder such as ${DB_PUBL_PORT:-5432}.
type PublishPort struct {
	Published Text
	Target    Numeric
	Protocol  string // "tcp", "udp" or empty
	Mode      string // "host" or "ingress"; requires Protocol
}

func (ExposePort) port()  {}
func (PublishPort) port() {}

// Expose creates an expose-only port.
func Expose(target int) ExposePort {
	return ExposePort{Target: Literal(target)}
}

// Publish maps published to target.
func Publish(published, target int) PublishPort {
	return PublishPort{Published: NumericAsText(Literal(published)), Target: Literal(target)}
}

// PublishSame publishes target on the same host port.
func PublishSame(target int) PublishPort {
	return Publish(target, target)
}

// PublishUDP maps published to target over UDP.
func PublishUDP(published, target int) PublishPort {
	p := Publish(published, target)
	p.Protocol = "udp"
	return p
}

// PublishText maps a textual published port (usually a placeholder) to target.
func PublishText(published Text, target int) PublishPort {
	return PublishPort{Published: published, Target: Literal(target)}
}

// NumericAsText renders a Numeric as decimal Text, deferring when it does.
func NumericAsText(n Numeric) Text {
	return Deferred(func(cc *Context, extra ...any) string {
		return NumericText(cc, n, extra...)
	})
}
