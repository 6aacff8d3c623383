//go:build linux && !android && cgo

package midialsa

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bandapps/libremidi/sdk/contracts"
)

const (
	watchPollInterval = 250 * time.Millisecond
	settleDelay       = 100 * time.Millisecond
)

// sndWatcher watches /dev/snd with inotify and signals the observer when the
// RawMidi device set actually changed. Device node churn also covers PCM and
// control devices, so every wakeup is screened against a MIDI fingerprint.
type sndWatcher struct {
	adapter *Adapter
	fn      func()
	logger  contracts.Logger
	fd      int
	stopCh  chan struct{}
	done    chan struct{}

	mu          sync.Mutex
	fingerprint string
}

func newSndWatcher(a *Adapter, fn func(), logger contracts.Logger) (*sndWatcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify_init1: %w", err)
	}
	if _, err := unix.InotifyAddWatch(fd, "/dev/snd", unix.IN_CREATE|unix.IN_DELETE); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("inotify_add_watch /dev/snd: %w", err)
	}

	w := &sndWatcher{
		adapter:     a,
		fn:          fn,
		logger:      logger,
		fd:          fd,
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
		fingerprint: rawmidiFingerprint(a),
	}
	go w.watch()
	return w, nil
}

func (w *sndWatcher) watch() {
	defer close(w.done)
	var buf [4096]byte
	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		n, err := unix.Read(w.fd, buf[:])
		if err != nil && err != unix.EAGAIN {
			w.logger.Warn("inotify read failed", contracts.Err(err))
			return
		}
		if n <= 0 {
			time.Sleep(watchPollInterval)
			continue
		}

		// Let the driver finish creating or removing its device nodes, and
		// coalesce the burst of events a single plug produces.
		time.Sleep(settleDelay)
		for {
			n, _ := unix.Read(w.fd, buf[:])
			if n <= 0 {
				break
			}
		}
		w.screen()
	}
}

func (w *sndWatcher) screen() {
	current := rawmidiFingerprint(w.adapter)

	w.mu.Lock()
	changed := current != w.fingerprint
	w.fingerprint = current
	w.mu.Unlock()

	if changed {
		w.fn()
	}
}

func (w *sndWatcher) stop() {
	close(w.stopCh)
	<-w.done
	unix.Close(w.fd)
}

func rawmidiFingerprint(a *Adapter) string {
	inputs, outputs, err := a.Enumerate()
	if err != nil {
		return ""
	}
	var fp string
	for _, p := range inputs {
		fp += "i:" + p.IdentityKey() + "\n"
	}
	for _, p := range outputs {
		fp += "o:" + p.IdentityKey() + "\n"
	}
	return fp
}
