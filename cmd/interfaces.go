package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	pcapsource "firestige.xyz/hmsniff/internal/source/pcap"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List interfaces available for capture",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := pcapsource.Devices()
		if err != nil {
			return err
		}
		return printDevices(cmd.OutOrStdout(), devices)
	},
}

func printDevices(w io.Writer, devices []pcapsource.Device) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESSES\tDESCRIPTION")
	for _, d := range devices {
		addrs := strings.Join(d.Addresses, ",")
		if addrs == "" {
			addrs = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, addrs, d.Description)
	}
	return tw.Flush()
}
