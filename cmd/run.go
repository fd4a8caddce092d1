package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/hmsniff/internal/config"
	"firestige.xyz/hmsniff/internal/log"
	"firestige.xyz/hmsniff/internal/metrics"
	"firestige.xyz/hmsniff/internal/monitor"
	"firestige.xyz/hmsniff/internal/pipeline"
	"firestige.xyz/hmsniff/internal/sink/console"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Capture and report multicast datagrams",
	Long: `
Capture frames and print one line per UDP datagram sent to the multicast group.
Runs until SIGINT/SIGTERM, or until the end of the file for source=file.

Examples:
  hmsniff run                                  # afpacket on eth0, group 239.12.255.254
  hmsniff run -i enp3s0 --format json          # JSON lines on enp3s0
  hmsniff run -c /etc/hmsniff/hmsniff.yml      # settings from a config file
  hmsniff run --source file -r meter.pcap      # replay a capture
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runMonitor(ctx, cfg, cmd.OutOrStdout())
	},
}

func init() {
	addOverrideFlags(runCmd.Flags())
}

// runMonitor wires logging, the report sink, the pipeline and the optional
// metrics server, then captures until ctx is done or the source ends.
func runMonitor(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger := log.GetLogger()

	sink, err := console.NewSink(out, cfg.Output.Format)
	if err != nil {
		return err
	}

	settings := pipeline.Settings{
		Interface:  cfg.Capture.Interface,
		Group:      cfg.Filter.Group,
		UnwrapVLAN: cfg.Decoder.VLAN,
	}
	p := pipeline.New(settings, sink)

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := srv.Stop(context.Background()); err != nil {
				logger.WithError(err).Warn("failed to stop metrics server")
			}
		}()
	}

	logger.WithFields(map[string]interface{}{
		"version":   version,
		"source":    cfg.Capture.Source,
		"interface": settings.Interface,
		"group":     settings.Group.String(),
		"vlan":      settings.UnwrapVLAN,
	}).Info("starting hmsniff")

	m := monitor.New(settings.Interface, monitor.SourceOpener(cfg.Capture), p, cfg.Supervisor)
	err = m.Run(ctx)

	reported, malformed := sink.Counts()
	logger.WithFields(map[string]interface{}{
		"reported":  reported,
		"malformed": malformed,
	}).Info("hmsniff stopped")

	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	return nil
}
