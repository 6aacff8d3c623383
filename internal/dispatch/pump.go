// Package dispatch moves MIDI messages from driver-owned callback threads to
// consumer code without blocking the driver.
package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/bandapps/libremidi/sdk/contracts"
)

// DefaultCapacity is the hand-off queue size used when the consumer does not
// configure one.
const DefaultCapacity = 256

type message struct {
	data []byte
	ts   int64
}

// Pump is a bounded hand-off queue between a native receive thread and one
// consumer callback. Submit copies the bytes and never blocks: when the
// queue is full the message is dropped and counted. One goroutine drains the
// queue and invokes the consumer callback in submission order.
type Pump struct {
	onMessage contracts.MessageFunc
	logger    contracts.Logger

	mu      sync.RWMutex
	ch      chan message
	done    chan struct{}
	closed  atomic.Bool
	dropped atomic.Uint64
}

// NewPump starts a pump delivering to onMessage. A capacity <= 0 selects
// DefaultCapacity.
func NewPump(onMessage contracts.MessageFunc, capacity int, logger contracts.Logger) *Pump {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &Pump{
		onMessage: onMessage,
		logger:    logger,
		ch:        make(chan message, capacity),
		done:      make(chan struct{}),
	}
	go p.run()
	return p
}

// Submit hands one message to the pump. Safe to call from any thread; the
// input slice is copied and may be reused by the caller immediately. Submit
// after Close is ignored.
func (p *Pump) Submit(data []byte, timestampMicros int64) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed.Load() {
		return
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	select {
	case p.ch <- message{data: buf, ts: timestampMicros}:
	default:
		if p.dropped.Add(1) == 1 {
			p.logger.Warn("input queue full; dropping messages",
				contracts.Int("capacity", cap(p.ch)))
		}
	}
}

// Dropped returns the number of messages discarded because the queue was
// full.
func (p *Pump) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *Pump) run() {
	defer close(p.done)
	for m := range p.ch {
		if p.closed.Load() {
			continue
		}
		p.onMessage(m.data, m.ts)
	}
}

// Close stops delivery. Once Close returns, the consumer callback is never
// invoked again; messages still queued are discarded. Idempotent.
func (p *Pump) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.mu.Lock()
	close(p.ch)
	p.mu.Unlock()
	<-p.done
}
