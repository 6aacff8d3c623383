package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bandapps/libremidi/internal/sysex"
)

func newSendCmd(flags *rootFlags) *cobra.Command {
	var (
		portIndex int
		asSysEx   bool
	)

	cmd := &cobra.Command{
		Use:   "send BYTE...",
		Short: "Send one MIDI message to an output port",
		Long: `Send one MIDI message to an output port.

Bytes are hexadecimal, e.g. "lrmidi send -p 0 90 40 64". With --sysex the
payload is framed with the SysEx start and end bytes unless already framed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseHexBytes(args)
			if err != nil {
				return err
			}
			if asSysEx {
				data = sysex.Frame(data, sysex.IsFramed(data))
			}

			obs, err := flags.newObserver()
			if err != nil {
				return err
			}
			defer obs.Dispose()

			outputs := obs.OutputPorts()
			if portIndex < 0 || portIndex >= len(outputs) {
				return fmt.Errorf("output index %d out of range (%d ports)", portIndex, len(outputs))
			}

			out, err := obs.OpenOutput(outputs[portIndex])
			if err != nil {
				return err
			}
			defer out.Close()

			if err := out.Send(data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent % X to %q\n", data, outputs[portIndex].DisplayName)
			return nil
		},
	}
	cmd.Flags().IntVarP(&portIndex, "port", "p", 0, "output port index")
	cmd.Flags().BoolVar(&asSysEx, "sysex", false, "frame the payload as a SysEx message")
	return cmd
}

func parseHexBytes(args []string) ([]byte, error) {
	data := make([]byte, 0, len(args))
	for _, arg := range args {
		s := strings.TrimPrefix(strings.ToLower(arg), "0x")
		v, err := strconv.ParseUint(s, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid byte %q: %w", arg, err)
		}
		data = append(data, byte(v))
	}
	return data, nil
}
