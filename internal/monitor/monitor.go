// Package monitor runs the receive loop: read a frame from the capture
// source, hand it to the pipeline, repeat. A supervisor reopens the source
// after retryable failures.
package monitor

import (
	"context"
	"errors"
	"io"
	"time"

	"firestige.xyz/hmsniff/internal/config"
	"firestige.xyz/hmsniff/internal/core"
	"firestige.xyz/hmsniff/internal/log"
	"firestige.xyz/hmsniff/internal/metrics"
	"firestige.xyz/hmsniff/internal/pipeline"
	"firestige.xyz/hmsniff/internal/source"
)

// Opener opens a fresh capture source. It is called once per (re)start.
type Opener func() (source.Source, error)

// Handler consumes captured frames. *pipeline.Pipeline implements it.
type Handler interface {
	Handle(raw core.RawPacket) (pipeline.Outcome, error)
	Stats() pipeline.Stats
}

// Monitor owns the capture source for the lifetime of Run.
type Monitor struct {
	iface      string
	open       Opener
	handler    Handler
	supervisor config.SupervisorConfig
	logger     log.Logger
}

// SourceOpener returns an Opener backed by the source registry.
func SourceOpener(cfg config.CaptureConfig) Opener {
	return func() (source.Source, error) {
		return source.Open(cfg)
	}
}

// New creates a monitor. iface labels logs and metrics.
func New(iface string, open Opener, handler Handler, supervisor config.SupervisorConfig) *Monitor {
	return &Monitor{
		iface:      iface,
		open:       open,
		handler:    handler,
		supervisor: supervisor,
		logger:     log.GetLogger().WithField("interface", iface),
	}
}

// Run captures until ctx is cancelled or the source is exhausted, and returns
// nil in both cases. A capture failure is retried up to MaxRestarts times
// when source.Retryable allows it; after that the last error is returned.
func (m *Monitor) Run(ctx context.Context) error {
	restarts := 0
	for {
		err := m.runOnce(ctx)
		if err == nil || ctx.Err() != nil {
			return nil
		}

		metrics.CaptureErrorsTotal.WithLabelValues(m.iface, errorOp(err)).Inc()

		if !source.Retryable(err) {
			return err
		}
		if restarts >= m.supervisor.MaxRestarts {
			if m.supervisor.MaxRestarts > 0 {
				m.logger.WithError(err).Errorf("restart budget of %d exhausted", m.supervisor.MaxRestarts)
			}
			return err
		}
		restarts++

		m.logger.WithError(err).WithFields(map[string]interface{}{
			"attempt": restarts,
			"delay":   m.supervisor.RestartDelay.String(),
		}).Warn("capture failed, restarting source")
		metrics.SourceRestartsTotal.WithLabelValues(m.iface).Inc()

		if !sleep(ctx, m.supervisor.RestartDelay) {
			return nil
		}
	}
}

// runOnce opens the source and reads until cancellation, end of input or a
// read failure.
func (m *Monitor) runOnce(ctx context.Context) error {
	src, err := m.open()
	if err != nil {
		return err
	}
	m.logger.WithField("source", src.Name()).Info("capture started")

	defer func() {
		m.logStats(src)
		if err := src.Close(); err != nil {
			m.logger.WithError(err).Warn("failed to close capture source")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		raw, err := src.ReadPacket()
		if err != nil {
			switch {
			case errors.Is(err, source.ErrTimeout):
				continue
			case errors.Is(err, io.EOF):
				m.logger.Info("end of capture input")
				return nil
			}
			var serr *source.Error
			if !errors.As(err, &serr) {
				err = &source.Error{Op: "read", Source: src.Name(), Interface: m.iface, Err: err}
			}
			return err
		}

		if _, err := m.handler.Handle(raw); err != nil {
			m.logger.WithError(err).Warn("failed to write to report sink")
		}
	}
}

func (m *Monitor) logStats(src source.Source) {
	fields := m.handler.Stats().Fields()
	if st, ok := src.(source.Stats); ok {
		if received, dropped, err := st.Stats(); err == nil {
			fields["kernel_received"] = received
			fields["kernel_dropped"] = dropped
		}
	}
	m.logger.WithFields(fields).Info("capture stopped")
}

func errorOp(err error) string {
	var serr *source.Error
	if errors.As(err, &serr) && serr.Op != "" {
		return serr.Op
	}
	return "read"
}

// sleep waits d or until ctx is done. It reports whether the full delay passed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
