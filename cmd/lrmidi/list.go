package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bandapps/libremidi/sdk/contracts"
	"github.com/bandapps/libremidi/sdk/identity"
)

func newListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List MIDI ports with their stable IDs",
		RunE: func(cmd *cobra.Command, args []string) error {
			obs, err := flags.newObserver()
			if err != nil {
				return err
			}
			defer obs.Dispose()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DIR\tIDX\tSTABLE ID\tTRANSPORT\tNAME")
			for _, p := range obs.InputPorts() {
				printPort(w, "in", p)
			}
			for _, p := range obs.OutputPorts() {
				printPort(w, "out", p)
			}
			return w.Flush()
		},
	}
}

func printPort(w *tabwriter.Writer, dir string, p contracts.Port) {
	fmt.Fprintf(w, "%s\t%d\t%016x\t%s\t%s\n",
		dir, p.Index, identity.EffectiveID(p), p.Transport.Classify(), p.DisplayName)
}
