package contracts

// ObserverOptions defines the configuration of an Observer.
type ObserverOptions struct {
	Logger     Logger   // Logger for events and errors.
	LogLevel   LogLevel // Severity threshold applied to the logger.
	ClientName string   // Name registered with the native MIDI subsystem.

	// Hotplug enables device-change notification. OnHotplug receives one
	// event per appeared or vanished port. On platforms where the native
	// notification channel is process-global, at most one hotplug-enabled
	// Observer may exist per process; constructing a second one fails with
	// ErrInitFailed.
	Hotplug   bool
	OnHotplug HotplugFunc

	// Transport overrides platform selection with an explicit adapter,
	// e.g. the in-process loopback transport.
	Transport TransportAdapter

	// QueueCapacity bounds the per-input hand-off queue between the driver
	// callback thread and the consumer callback. When the queue is full new
	// messages are dropped, never blocking the driver thread.
	QueueCapacity int
}

// Option is a function that modifies ObserverOptions.
type Option func(*ObserverOptions)

// WithLogger sets the logger for the Observer.
func WithLogger(l Logger) Option {
	return func(opts *ObserverOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging severity threshold.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ObserverOptions) {
		opts.LogLevel = level
	}
}

// WithClientName sets the name the Observer registers with the native MIDI
// subsystem.
func WithClientName(name string) Option {
	return func(opts *ObserverOptions) {
		opts.ClientName = name
	}
}

// WithHotplug enables hotplug notification and installs fn as the consumer
// event sink. At most one hotplug-enabled Observer may exist per process;
// a second construction fails with ErrInitFailed rather than silently
// superseding the first registration.
func WithHotplug(fn HotplugFunc) Option {
	return func(opts *ObserverOptions) {
		opts.Hotplug = true
		opts.OnHotplug = fn
	}
}

// WithTransport bypasses platform adapter selection with an explicit
// transport, such as the in-process loopback transport.
func WithTransport(t TransportAdapter) Option {
	return func(opts *ObserverOptions) {
		opts.Transport = t
	}
}

// WithQueueCapacity sets the per-input hand-off queue size.
func WithQueueCapacity(n int) Option {
	return func(opts *ObserverOptions) {
		opts.QueueCapacity = n
	}
}
