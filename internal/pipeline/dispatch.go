package pipeline

import (
	"time"

	"firestige.xyz/hmsniff/internal/core"
)

// Datagram carries the decoded IPv4 context into a transport handler.
type Datagram struct {
	Interface string
	Timestamp time.Time
	IP        core.IPv4Header
}

// TransportHandler decodes one transport protocol. data is the IPv4 payload.
type TransportHandler interface {
	Handle(dg Datagram, data []byte) (Outcome, error)
}

// TransportHandlerFunc adapts a function to TransportHandler.
type TransportHandlerFunc func(dg Datagram, data []byte) (Outcome, error)

func (f TransportHandlerFunc) Handle(dg Datagram, data []byte) (Outcome, error) {
	return f(dg, data)
}

// Dispatcher is stage 3: it routes by IPv4 protocol number. Protocols
// without a handler are ignored silently.
type Dispatcher struct {
	handlers map[core.IPProtocol]TransportHandler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[core.IPProtocol]TransportHandler)}
}

// Register installs h for proto, replacing any previous handler.
// Registration is not safe concurrently with Dispatch.
func (d *Dispatcher) Register(proto core.IPProtocol, h TransportHandler) {
	d.handlers[proto] = h
}

// Supports reports whether proto has a handler.
func (d *Dispatcher) Supports(proto core.IPProtocol) bool {
	_, ok := d.handlers[proto]
	return ok
}

// Dispatch hands data to the handler registered for dg.IP.Protocol.
func (d *Dispatcher) Dispatch(dg Datagram, data []byte) (Outcome, error) {
	h, ok := d.handlers[dg.IP.Protocol]
	if !ok {
		return OutcomeIgnored, nil
	}
	return h.Handle(dg, data)
}
