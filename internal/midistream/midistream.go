// Package midistream reassembles MIDI messages from a raw byte stream, as
// delivered by the ALSA RawMidi interface and the Android AMidi port API.
package midistream

// Parser tracks running status and accumulates SysEx across reads;
// real-time status bytes may interleave anywhere, including inside a SysEx
// transfer, and are emitted immediately.
type Parser struct {
	emit    func(msg []byte)
	pending []byte
	want    int
	inSysEx bool
	sysex   []byte
}

// New returns a Parser that calls emit with each complete message. The
// slice passed to emit is only valid for the duration of the call.
func New(emit func(msg []byte)) *Parser {
	return &Parser{emit: emit}
}

// messageLen returns the total length of the message starting with status,
// or 0 for SysEx (open-ended).
func messageLen(status byte) int {
	if status >= 0xF0 {
		switch status {
		case 0xF0:
			return 0
		case 0xF1, 0xF3:
			return 2
		case 0xF2:
			return 3
		default:
			return 1
		}
	}
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 2
	default:
		return 3
	}
}

// Feed consumes one chunk of the raw stream.
func (p *Parser) Feed(chunk []byte) {
	for _, b := range chunk {
		p.feedByte(b)
	}
}

func (p *Parser) feedByte(b byte) {
	// Real-time messages are single bytes and never disturb parser state.
	if b >= 0xF8 {
		p.emit([]byte{b})
		return
	}

	if p.inSysEx {
		if b == 0xF7 {
			p.sysex = append(p.sysex, b)
			p.emit(p.sysex)
			p.sysex = nil
			p.inSysEx = false
			return
		}
		if b >= 0x80 {
			// A new status aborts the unterminated transfer.
			p.sysex = nil
			p.inSysEx = false
		} else {
			p.sysex = append(p.sysex, b)
			return
		}
	}

	if b >= 0x80 {
		if b == 0xF0 {
			p.inSysEx = true
			p.sysex = append(p.sysex[:0], b)
			p.pending = p.pending[:0]
			return
		}
		p.pending = append(p.pending[:0], b)
		p.want = messageLen(b)
		if p.want == 1 {
			p.emit([]byte{b})
			p.pending = p.pending[:0]
		}
		return
	}

	// Data byte. With no status to attach to (and no running status), it is
	// dropped.
	if len(p.pending) == 0 {
		return
	}
	p.pending = append(p.pending, b)
	if len(p.pending) == p.want {
		p.emit(p.pending)
		// Keep the status byte for running status.
		status := p.pending[0]
		if status < 0xF0 {
			p.pending = p.pending[:1]
		} else {
			p.pending = p.pending[:0]
		}
	}
}
