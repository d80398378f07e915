package reliant

// fragmentHeaderSize is message_id(4) + index_and_last(1).
const fragmentHeaderSize = 5

// maxFragments is the hard cap imposed by the index byte's low 7 bits.
const maxFragments = 128

// fragmenter splits outgoing messages exceeding the per-packet payload
// budget into indexed fragments carrying a 5-byte header, per spec.md §4.4.
// Grounded on the teacher's fragmentation path in rely.go's SendPacket, with
// the teacher's embedded-ack-bits packet header dropped in favor of the
// spec's flat message_id/index header.
type fragmenter struct {
	maxPayload    int
	nextMessageID uint32
}

func newFragmenter(maxPayload int) *fragmenter {
	return &fragmenter{maxPayload: maxPayload, nextMessageID: 1}
}

// Split returns the payloads to send as individual DATA packets. A message
// under fragmentHeaderSize bytes goes out unmodified, matching the
// reassembler's own "fewer than 5 bytes, no header assumed" rule on the
// inbound side (spec.md §4.4) — below that threshold there's no room for a
// header to collide with anyway. At or above it, the message always gets at
// least one fragment header, even when it fits in a single packet: a
// single-packet send that happened to go out bare would be indistinguishable
// on the wire from a fragment header with unlucky payload bytes, since the
// reassembler's dispatch is keyed purely on length. Framing every >=5-byte
// payload as fragment 0 of 1 (rather than the "submit unchanged" literally
// suggested by a single-packet send) keeps the two sides' threshold checks
// in agreement instead of occasionally colliding.
func (f *fragmenter) Split(message []byte) ([][]byte, error) {
	if len(message) < fragmentHeaderSize {
		return [][]byte{message}, nil
	}

	total := (len(message) + f.maxPayload - 1) / f.maxPayload
	if total > maxFragments {
		return nil, ErrMessageTooLarge
	}

	messageID := f.nextMessageID
	f.nextMessageID++

	fragments := make([][]byte, total)
	for i := 0; i < total; i++ {
		start := i * f.maxPayload
		end := start + f.maxPayload
		if end > len(message) {
			end = len(message)
		}
		fragments[i] = encodeFragment(messageID, i, i == total-1, message[start:end])
	}
	return fragments, nil
}

func encodeFragment(messageID uint32, index int, isLast bool, data []byte) []byte {
	b := newBuffer(fragmentHeaderSize + len(data))
	b.writeUint32(messageID)
	indexAndLast := uint8(index) & 0x7F
	if isLast {
		indexAndLast |= 0x80
	}
	b.writeUint8(indexAndLast)
	b.writeBytes(data)
	return b.bytes()
}

// reassemblyBuffer tracks fragments received so far for one message id.
type reassemblyBuffer struct {
	total      int // -1 until the last-fragment bit is observed
	fragments  map[int][]byte
	lastActive timeStamp
}

// timeStamp is an opaque handle to "when a buffer was last touched",
// compared only for staleness against the configured reassembly timeout.
// Kept as its own type rather than time.Time so reassembler stays agnostic
// about which Clock produced it.
type timeStamp = int64

// reassembler buffers incoming fragments until a message is complete, per
// spec.md §4.4's inbound parsing rules. A DATA payload under 5 bytes is
// never treated as fragmented.
type reassembler struct {
	buffers map[uint32]*reassemblyBuffer
}

func newReassembler() *reassembler {
	return &reassembler{buffers: map[uint32]*reassemblyBuffer{}}
}

// Feed processes one inbound DATA payload. It returns a complete message
// and ok=true once every fragment 0..total-1 of its message id has arrived;
// single-fragment (unframed) payloads complete immediately.
func (r *reassembler) Feed(payload []byte, now timeStamp) (message []byte, ok bool) {
	if len(payload) < fragmentHeaderSize {
		return payload, true
	}

	b := newBufferFromRef(payload)
	messageID, _ := b.getUint32()
	indexAndLast, _ := b.getUint8()
	index := int(indexAndLast & 0x7F)
	isLast := indexAndLast&0x80 != 0
	data := payload[fragmentHeaderSize:]

	buf, exists := r.buffers[messageID]
	if !exists {
		buf = &reassemblyBuffer{total: -1, fragments: map[int][]byte{}}
		r.buffers[messageID] = buf
	}
	buf.lastActive = now

	if isLast {
		buf.total = index + 1
	}
	// Duplicate-indexed fragments overwrite; harmless, since the
	// reliability layer has already suppressed packet-level duplicates.
	buf.fragments[index] = data

	if buf.total < 0 || len(buf.fragments) != buf.total {
		return nil, false
	}

	complete := make([]byte, 0, buf.total*len(data))
	for i := 0; i < buf.total; i++ {
		complete = append(complete, buf.fragments[i]...)
	}
	delete(r.buffers, messageID)
	return complete, true
}

// EvictStale drops any buffer that has seen no new fragment since before
// the cutoff. Spec.md §9 leaves abandoned-fragment eviction as an open
// question answered here by SPEC_FULL.md's FragmentReassemblyTimeout: a
// zero timeout means this is simply never called, matching the documented
// source behavior of buffering forever.
func (r *reassembler) EvictStale(cutoff timeStamp) {
	for id, buf := range r.buffers {
		if buf.lastActive < cutoff {
			log.Debugf("abandoning incomplete message %d (%d/%d fragments)", id, len(buf.fragments), buf.total)
			delete(r.buffers, id)
		}
	}
}
