package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/bandapps/libremidi/internal/logger"
	"github.com/bandapps/libremidi/sdk/contracts"
	"github.com/bandapps/libremidi/sdk/midi"
)

func main() {
	log := logger.NewZapLogger()

	observer, err := midi.NewObserver(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithClientName("simple-use"),
		contracts.WithHotplug(func(event contracts.HotplugEvent) {
			log.Info("Hotplug event", contracts.String("event", event.String()))
		}),
	)
	if err != nil {
		log.Error("Failed to create observer", contracts.Err(err))
		return
	}
	defer observer.Dispose()

	inputs := observer.InputPorts()
	if len(inputs) == 0 {
		log.Error("No MIDI input ports found")
		return
	}
	for _, p := range inputs {
		fmt.Printf("input %d: %s (%s)\n", p.Index, p.DisplayName, p.Transport.Classify())
	}

	input, err := observer.OpenInput(inputs[0], func(data []byte, timestampMicros int64) {
		log.Info("MIDI message",
			contracts.Int64("timestamp", timestampMicros),
			contracts.String("bytes", fmt.Sprintf("% X", data)))
	}, contracts.DefaultInputFilters())
	if err != nil {
		log.Error("Failed to open input", contracts.Err(err))
		return
	}
	defer input.Close()

	fmt.Println("Receiving MIDI messages... Press Ctrl+C to exit.")
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop
}
