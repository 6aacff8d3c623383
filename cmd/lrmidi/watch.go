package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bandapps/libremidi/sdk/contracts"
)

func newWatchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print hotplug events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			obs, err := flags.newObserver(contracts.WithHotplug(func(event contracts.HotplugEvent) {
				fmt.Fprintln(cmd.OutOrStdout(), event)
			}))
			if err != nil {
				return err
			}
			defer obs.Dispose()

			fmt.Fprintln(cmd.OutOrStdout(), "watching for device changes, press ^C to stop")
			<-ctx.Done()
			return nil
		},
	}
}
