package midi

import (
	"fmt"

	"github.com/bandapps/libremidi/internal/dispatch"
	"github.com/bandapps/libremidi/internal/logger"
	"github.com/bandapps/libremidi/sdk/contracts"
)

// applyDefaultOptions sets default values for ObserverOptions if not
// explicitly provided.
func applyDefaultOptions(opts ...contracts.Option) (contracts.ObserverOptions, error) {
	options := &contracts.ObserverOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.ClientName == "" {
		options.ClientName = "libremidi"
	}
	if options.QueueCapacity <= 0 {
		options.QueueCapacity = dispatch.DefaultCapacity
	}
	if options.Hotplug && options.OnHotplug == nil {
		return contracts.ObserverOptions{}, fmt.Errorf(
			"%w: hotplug enabled without an event sink", contracts.ErrInvalidArgument)
	}

	options.Logger.SetLevel(options.LogLevel)
	return *options, nil
}
