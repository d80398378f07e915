package reliant

import "github.com/op/go-logging"

var log = logging.MustGetLogger("reliant")

// Counters mirrors the teacher's fixed counter array (rely.go's
// CounterNumPacketsSent and friends): plain observability, not congestion
// control, so it is not excluded by spec.md's Non-goals.
type Counters struct {
	PacketsSent          uint64
	PacketsReceived      uint64
	AcksSent             uint64
	DuplicatesSuppressed uint64
	DecodeFailures       uint64
	Retransmissions      uint64
	AttemptsExhausted    uint64
}

// outstandingPacket is an unacknowledged non-ACK packet still eligible for
// retransmission: spec.md §3's "outstanding packet record".
type outstandingPacket struct {
	sequence uint32
	encoded  []byte
	attempts int
	timer    Canceler
}

// engine is the reliability layer from spec.md §4.2: sequencing,
// acknowledgement, bounded per-packet retransmission, and duplicate
// suppression over a bounded receive window. It is grounded directly on the
// teacher's Endpoint (SendPacket/ReceivePacket), stripped of RTT/bandwidth
// estimation (explicitly out of scope here — no congestion control) and
// generalized from uint16 to uint32 sequences.
type engine struct {
	config  *Config
	carrier Carrier
	clock   Clock

	nextSequence uint32
	outstanding  map[uint32]*outstandingPacket
	received     *receivedWindow

	Counters Counters
}

func newEngine(config *Config, carrier Carrier) *engine {
	return &engine{
		config:      config,
		carrier:     carrier,
		clock:       config.clock(),
		outstanding: map[uint32]*outstandingPacket{},
		received:    newReceivedWindow(config.ReceivedWindowCapacity),

		// Sequence 0 is carried by every SYN; starting here at 1 keeps the
		// first DATA or FIN from being taken for a duplicate of it.
		nextSequence: 1,
	}
}

// SendPacket allocates the next sequence, encodes, transmits once, and
// (unless flags is ACK) arms a bounded retransmission timer.
func (e *engine) SendPacket(payload []byte, flags uint8) uint32 {
	sequence := e.nextSequence
	e.nextSequence++

	encoded := EncodePacket(sequence, flags, payload)
	e.carrier.Send(encoded, nil)
	e.Counters.PacketsSent++

	if flags == FlagAck {
		return sequence
	}

	record := &outstandingPacket{sequence: sequence, encoded: encoded}
	e.outstanding[sequence] = record
	e.armRetransmit(record)
	return sequence
}

func (e *engine) armRetransmit(record *outstandingPacket) {
	record.timer = e.clock.AfterFunc(e.config.RetransmissionTimeout, func() {
		e.onRetransmitFire(record.sequence)
	})
}

func (e *engine) onRetransmitFire(sequence uint32) {
	record, ok := e.outstanding[sequence]
	if !ok {
		return
	}
	if record.attempts >= e.config.MaxRetransmissionAttempts {
		log.Debugf("[%s] packet %d exhausted its retransmission budget, dropping", e.config.Name, sequence)
		delete(e.outstanding, sequence)
		e.Counters.AttemptsExhausted++
		return
	}
	record.attempts++
	log.Debugf("[%s] retransmitting packet %d (attempt %d)", e.config.Name, sequence, record.attempts)
	e.carrier.Send(record.encoded, nil)
	e.Counters.Retransmissions++
	e.armRetransmit(record)
}

// InboundPacket is what handle_inbound reports upstream for a decoded,
// non-ACK packet, per spec.md §4.2.
type InboundPacket struct {
	Sequence    uint32
	Flags       uint8
	Payload     []byte
	IsDuplicate bool
}

// HandleInbound decodes data; a failed decode is silently dropped (no ACK,
// no error). A decoded ACK cancels its matching outstanding entry and is
// never delivered upstream. Anything else is deduplicated against the
// receive window, unconditionally ACKed, and returned for the state machine
// to dispatch on.
func (e *engine) HandleInbound(data []byte) *InboundPacket {
	header, payload, ok := DecodePacket(data)
	if !ok {
		log.Debugf("[%s] dropping undecodable packet", e.config.Name)
		e.Counters.DecodeFailures++
		return nil
	}

	if header.Flags == FlagAck {
		if record, found := e.outstanding[header.Sequence]; found {
			record.timer.Stop()
			delete(e.outstanding, header.Sequence)
		}
		return nil
	}

	e.Counters.PacketsReceived++
	isDuplicate := e.received.Contains(header.Sequence)
	if isDuplicate {
		e.Counters.DuplicatesSuppressed++
		log.Debugf("[%s] duplicate packet %d", e.config.Name, header.Sequence)
	} else {
		e.received.Insert(header.Sequence)
	}

	e.carrier.Send(ackPacket(header.Sequence), nil)
	e.Counters.AcksSent++

	return &InboundPacket{
		Sequence:    header.Sequence,
		Flags:       header.Flags,
		Payload:     payload,
		IsDuplicate: isDuplicate,
	}
}

// BufferedAmount returns the total encoded size of every outstanding entry.
func (e *engine) BufferedAmount() int {
	total := 0
	for _, r := range e.outstanding {
		total += len(r.encoded)
	}
	return total
}

// Close cancels every outstanding retransmission timer, resolving spec.md
// §9's open question about outstanding-timer cleanup on close.
func (e *engine) Close() {
	for sequence, r := range e.outstanding {
		r.timer.Stop()
		delete(e.outstanding, sequence)
	}
}
