// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"firestige.xyz/hmsniff/internal/config"
)

const version = "0.1.0"

var (
	// Global flags
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hmsniff",
	Short: "hmsniff - SMA Home Manager multicast telemetry sniffer",
	Long: `hmsniff captures Ethernet frames on a network interface, decodes them
through Ethernet, IPv4 and UDP, and reports every datagram sent to the
configured multicast group (by default 239.12.255.254, the SMA Home Manager 2.0
and Energy Meter group).

Reports are written to stdout, diagnostics to stderr.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults apply when empty)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(interfacesCmd)
}

// addOverrideFlags registers the flags listed in config.FlagKeys. Only flags
// set on the command line override file and environment values.
func addOverrideFlags(fs *pflag.FlagSet) {
	fs.StringP("interface", "i", "", "capture interface")
	fs.String("source", "", "capture source: afpacket, pcap or file")
	fs.StringP("file", "r", "", "pcap file to replay (source=file)")
	fs.String("bpf", "", "BPF filter expression applied in the kernel")
	fs.StringP("group", "g", "", "multicast group to report")
	fs.Bool("vlan", false, "unwrap 802.1Q/QinQ tags")
	fs.String("format", "", "report format: text or json")
	fs.String("log-level", "", "log level: debug, info, warn or error")
	fs.Bool("metrics", false, "serve Prometheus metrics")

	for name := range config.FlagKeys {
		if fs.Lookup(name) == nil {
			panic("cmd: no flag for config key override " + name)
		}
	}
}
