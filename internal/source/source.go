// Package source defines capture sources and the registry that opens them
// by name. Implementations live in sub-packages and register in init().
package source

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"

	"firestige.xyz/hmsniff/internal/config"
	"firestige.xyz/hmsniff/internal/core"
)

var (
	// ErrInterfaceNotFound means the configured interface does not exist.
	ErrInterfaceNotFound = errors.New("hmsniff: interface not found")
	// ErrUnknownSource means no source is registered under the name.
	ErrUnknownSource = errors.New("hmsniff: unknown capture source")
	// ErrBadFilter means the BPF expression did not compile.
	ErrBadFilter = errors.New("hmsniff: invalid bpf filter")
	// ErrUnsupportedLink means the source does not deliver Ethernet frames.
	ErrUnsupportedLink = errors.New("hmsniff: unsupported link type")
	// ErrTimeout is returned by ReadPacket when no frame arrived within the
	// poll timeout. It is not a failure.
	ErrTimeout = errors.New("hmsniff: capture read timeout")
)

// Source delivers captured link-layer frames one at a time.
// The returned Data may be reused by the next ReadPacket call.
type Source interface {
	Name() string
	ReadPacket() (core.RawPacket, error)
	Close() error
}

// Stats is implemented by sources that can report kernel counters.
type Stats interface {
	Stats() (received, dropped uint64, err error)
}

// Error is a typed capture failure returned to the supervising caller.
type Error struct {
	Op        string // "open" or "read"
	Source    string
	Interface string
	Err       error
}

func (e *Error) Error() string {
	if e.Interface != "" {
		return fmt.Sprintf("%s %s on %s: %v", e.Source, e.Op, e.Interface, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Source, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether reopening the source may help. Configuration
// problems are not retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	for _, permanent := range []error{ErrInterfaceNotFound, ErrUnknownSource, ErrBadFilter, ErrUnsupportedLink, config.ErrInvalid} {
		if errors.Is(err, permanent) {
			return false
		}
	}
	return true
}

// OpenFunc opens a source from capture configuration.
type OpenFunc func(cfg config.CaptureConfig) (Source, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]OpenFunc)
)

// Register makes a source available under name.
func Register(name string, fn OpenFunc) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = fn
}

// Registered returns the names of all registered sources.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the source named by cfg.Source. Failures are *Error with Op "open".
func Open(cfg config.CaptureConfig) (Source, error) {
	mu.RLock()
	fn, ok := registry[cfg.Source]
	mu.RUnlock()

	if !ok {
		return nil, &Error{Op: "open", Source: cfg.Source, Err: ErrUnknownSource}
	}
	src, err := fn(cfg)
	if err != nil {
		var serr *Error
		if errors.As(err, &serr) {
			return nil, err
		}
		return nil, &Error{Op: "open", Source: cfg.Source, Interface: cfg.Interface, Err: err}
	}
	return src, nil
}

// InterfaceByName resolves a live capture interface.
var InterfaceByName = func(name string) (*net.Interface, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInterfaceNotFound, name)
	}
	return iface, nil
}
