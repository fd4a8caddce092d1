package config

import (
	"fmt"
	"net/netip"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// rootKey is the YAML wrapper key; env vars use the HMSNIFF_ prefix through
// the key replacer (e.g. "hmsniff.capture.interface" -> HMSNIFF_CAPTURE_INTERFACE).
const rootKey = "hmsniff"

// FlagKeys maps CLI flag names to the config keys they override.
var FlagKeys = map[string]string{
	"interface": "capture.interface",
	"source":    "capture.source",
	"file":      "capture.file",
	"bpf":       "capture.bpf_filter",
	"group":     "filter.group",
	"vlan":      "decoder.vlan",
	"format":    "output.format",
	"log-level": "log.level",
	"metrics":   "metrics.enabled",
}

type configRoot struct {
	HMSniff Config `mapstructure:"hmsniff"`
}

// Load builds the configuration from defaults, an optional YAML file, the
// environment and any changed flags in fs, in increasing precedence.
// An empty path skips the file.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range FlagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(rootKey+"."+key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var root configRoot
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		stringToAddrHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&root, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.HMSniff

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration.
func setDefaults(v *viper.Viper) {
	d := func(key string, value any) { v.SetDefault(rootKey+"."+key, value) }

	// Capture defaults
	d("capture.source", SourceAFPacket)
	d("capture.interface", "eth0")
	d("capture.file", "")
	d("capture.snap_len", 65535)
	d("capture.buffer_size_mb", 8)
	d("capture.poll_timeout", "100ms")
	d("capture.promiscuous", true)
	d("capture.bpf_filter", "")

	// SMA Home Manager 2.0 / Energy Meter multicast group
	d("filter.group", "239.12.255.254")
	d("decoder.vlan", false)
	d("output.format", "text")

	d("supervisor.max_restarts", 0)
	d("supervisor.restart_delay", "1s")

	// Metrics defaults
	d("metrics.enabled", false)
	d("metrics.listen", ":9091")
	d("metrics.path", "/metrics")

	// Log defaults
	d("log.level", "info")
	d("log.format", "text")
	d("log.file.enabled", false)
	d("log.file.path", "/var/log/hmsniff/hmsniff.log")
	d("log.file.max_size_mb", 100)
	d("log.file.max_backups", 5)
	d("log.file.max_age_days", 30)
	d("log.file.compress", true)
}

var addrType = reflect.TypeOf(netip.Addr{})

// stringToAddrHookFunc decodes address strings into netip.Addr.
func stringToAddrHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != addrType {
			return data, nil
		}
		s := strings.TrimSpace(data.(string))
		if s == "" {
			return netip.Addr{}, nil
		}
		// unparsable input decodes to the zero Addr and fails Validate
		addr, _ := netip.ParseAddr(s)
		return addr, nil
	}
}
