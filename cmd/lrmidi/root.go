package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bandapps/libremidi/internal/logger"
	"github.com/bandapps/libremidi/internal/midi/midiloopback"
	"github.com/bandapps/libremidi/sdk/contracts"
	"github.com/bandapps/libremidi/sdk/midi"
)

type rootFlags struct {
	transport string
	verbose   bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "lrmidi",
		Short:         "Inspect and exercise MIDI ports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.transport, "transport", "native",
		"transport backend: native or loopback")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false,
		"enable debug logging")

	cmd.AddCommand(
		newListCmd(flags),
		newMonitorCmd(flags),
		newSendCmd(flags),
		newWatchCmd(flags),
	)
	return cmd
}

// newObserver builds an Observer for the selected transport. The loopback
// transport gets a seeded pair of ports so the command has something to talk
// to.
func (f *rootFlags) newObserver(extra ...contracts.Option) (contracts.Observer, error) {
	opts := make([]contracts.Option, 0, len(extra)+2)
	if f.verbose {
		opts = append(opts, contracts.WithLogLevel(contracts.DebugLevel))
	} else {
		opts = append(opts, contracts.WithLogger(logger.NewNopLogger()))
	}

	switch f.transport {
	case "native":
	case "loopback":
		adapter := midiloopback.NewAdapter(logger.NewNopLogger(), 0)
		for _, spec := range []midiloopback.PortSpec{
			{Name: "Loopback A", Manufacturer: "lrmidi", Product: "Loopback"},
			{Name: "Loopback B", Manufacturer: "lrmidi", Product: "Loopback"},
		} {
			if err := adapter.AddPort(spec); err != nil {
				return nil, err
			}
		}
		opts = append(opts, contracts.WithTransport(adapter))
	default:
		return nil, fmt.Errorf("unknown transport %q (want native or loopback)", f.transport)
	}

	opts = append(opts, extra...)
	return midi.NewObserver(opts...)
}
