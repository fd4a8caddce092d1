// Package config handles configuration loading using viper.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"time"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("hmsniff: invalid configuration")

// Capture source names.
const (
	SourceAFPacket = "afpacket"
	SourcePcap     = "pcap"
	SourceFile     = "file"
)

// Config is the root configuration. Maps to the `hmsniff:` key in YAML.
type Config struct {
	Capture    CaptureConfig    `mapstructure:"capture" yaml:"capture"`
	Filter     FilterConfig     `mapstructure:"filter" yaml:"filter"`
	Decoder    DecoderConfig    `mapstructure:"decoder" yaml:"decoder"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output"`
	Supervisor SupervisorConfig `mapstructure:"supervisor" yaml:"supervisor"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

// ─── Capture ───

// CaptureConfig selects and tunes the capture source.
type CaptureConfig struct {
	Source       string        `mapstructure:"source" yaml:"source"`       // afpacket | pcap | file
	Interface    string        `mapstructure:"interface" yaml:"interface"` // live sources only
	File         string        `mapstructure:"file" yaml:"file"`           // file source only
	SnapLen      int           `mapstructure:"snap_len" yaml:"snap_len"`
	BufferSizeMB int           `mapstructure:"buffer_size_mb" yaml:"buffer_size_mb"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
	Promiscuous  bool          `mapstructure:"promiscuous" yaml:"promiscuous"`
	BPFFilter    string        `mapstructure:"bpf_filter" yaml:"bpf_filter"`
}

// ─── Pipeline ───

// FilterConfig holds the multicast group whose datagrams are reported.
type FilterConfig struct {
	Group netip.Addr `mapstructure:"group" yaml:"group"`
}

// DecoderConfig tunes the frame decoder.
type DecoderConfig struct {
	VLAN bool `mapstructure:"vlan" yaml:"vlan"` // unwrap 802.1Q / QinQ tags
}

// OutputConfig selects the report line format.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"` // text | json
}

// SupervisorConfig controls restarts after capture failures.
type SupervisorConfig struct {
	MaxRestarts  int           `mapstructure:"max_restarts" yaml:"max_restarts"`
	RestartDelay time.Duration `mapstructure:"restart_delay" yaml:"restart_delay"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string           `mapstructure:"level" yaml:"level"`   // debug / info / warn / error
	Format string           `mapstructure:"format" yaml:"format"` // json / text
	File   FileOutputConfig `mapstructure:"file" yaml:"file"`
}

// FileOutputConfig configures rotated file log output.
type FileOutputConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// Validate checks the configuration after defaults have been applied.
func (cfg *Config) Validate() error {
	// ── Capture ──
	switch cfg.Capture.Source {
	case SourceAFPacket, SourcePcap:
		if cfg.Capture.Interface == "" {
			return fmt.Errorf("%w: capture.interface is required for source %q", ErrInvalid, cfg.Capture.Source)
		}
	case SourceFile:
		if cfg.Capture.File == "" {
			return fmt.Errorf("%w: capture.file is required for source %q", ErrInvalid, SourceFile)
		}
	default:
		return fmt.Errorf("%w: unsupported capture.source %q (must be afpacket/pcap/file)", ErrInvalid, cfg.Capture.Source)
	}
	if cfg.Capture.SnapLen <= 0 {
		return fmt.Errorf("%w: capture.snap_len must be positive, got %d", ErrInvalid, cfg.Capture.SnapLen)
	}
	if cfg.Capture.PollTimeout <= 0 {
		return fmt.Errorf("%w: capture.poll_timeout must be positive, got %s", ErrInvalid, cfg.Capture.PollTimeout)
	}
	if cfg.Capture.BufferSizeMB <= 0 {
		return fmt.Errorf("%w: capture.buffer_size_mb must be positive, got %d", ErrInvalid, cfg.Capture.BufferSizeMB)
	}

	// ── Filter ──
	group := cfg.Filter.Group
	if !group.IsValid() || !group.Is4() || !group.IsMulticast() {
		return fmt.Errorf("%w: filter.group must be an IPv4 multicast address, got %q", ErrInvalid, group)
	}

	// ── Output ──
	if cfg.Output.Format != "text" && cfg.Output.Format != "json" {
		return fmt.Errorf("%w: invalid output.format %q (must be text/json)", ErrInvalid, cfg.Output.Format)
	}

	// ── Supervisor ──
	if cfg.Supervisor.MaxRestarts < 0 {
		return fmt.Errorf("%w: supervisor.max_restarts must not be negative", ErrInvalid)
	}

	// ── Log ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level %q (must be debug/info/warn/error)", ErrInvalid, cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("%w: invalid log format %q (must be json/text)", ErrInvalid, cfg.Log.Format)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("%w: log.file.path is required when log.file.enabled=true", ErrInvalid)
	}

	return nil
}
