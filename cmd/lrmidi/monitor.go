package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"
	"golang.org/x/sync/errgroup"

	"github.com/bandapps/libremidi/sdk/contracts"
)

func newMonitorCmd(flags *rootFlags) *cobra.Command {
	var (
		portIndex int
		noSysEx   bool
		timing    bool
		sensing   bool
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Print incoming messages from an input port",
		RunE: func(cmd *cobra.Command, args []string) error {
			obs, err := flags.newObserver()
			if err != nil {
				return err
			}
			defer obs.Dispose()

			inputs := obs.InputPorts()
			if len(inputs) == 0 {
				return fmt.Errorf("no input ports available")
			}
			if !cmd.Flags().Changed("port") {
				portIndex, err = pickPort(inputs)
				if err != nil {
					return err
				}
			}
			if portIndex < 0 || portIndex >= len(inputs) {
				return fmt.Errorf("input index %d out of range (%d ports)", portIndex, len(inputs))
			}
			port := inputs[portIndex]

			filters := contracts.InputFilters{
				ReceiveSysEx:   !noSysEx,
				ReceiveTiming:  timing,
				ReceiveSensing: sensing,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			in, err := obs.OpenInput(port, func(data []byte, timestampMicros int64) {
				fmt.Fprintf(cmd.OutOrStdout(), "%12d  %s\n",
					timestampMicros, midi.Message(data))
			}, filters)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "monitoring %q, press ^C to stop\n", port.DisplayName)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				<-ctx.Done()
				return in.Close()
			})
			return g.Wait()
		},
	}
	cmd.Flags().IntVarP(&portIndex, "port", "p", 0, "input port index")
	cmd.Flags().BoolVar(&noSysEx, "no-sysex", false, "drop SysEx messages")
	cmd.Flags().BoolVar(&timing, "timing", false, "receive timing clock")
	cmd.Flags().BoolVar(&sensing, "sensing", false, "receive active sensing")
	return cmd
}

func pickPort(ports []contracts.Port) (int, error) {
	options := make([]huh.Option[int], len(ports))
	for i, p := range ports {
		options[i] = huh.NewOption(fmt.Sprintf("%d: %s", i, p.DisplayName), i)
	}

	var index int
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[int]().
			Title("Input port").
			Options(options...).
			Value(&index),
	))
	if err := form.Run(); err != nil {
		return 0, err
	}
	return index, nil
}
