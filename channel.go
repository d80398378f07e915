package reliant

import "sync"

// State is the connection lifecycle defined in spec.md §4.3.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Close codes, per spec.md §6.
const (
	CloseNormal   = 1000
	CloseAbnormal = 1006
)

// CloseEvent is delivered to OnClose exactly once, on the terminal
// transition to CLOSED.
type CloseEvent struct {
	Code     int
	Reason   string
	WasClean bool
}

// BinaryMode mirrors spec.md's binary_mode setting. Go has no separate
// Blob/ArrayBuffer distinction, so both values deliver OnMessage the same
// []byte; the field is kept for API parity with the browser-socket idiom
// spec.md §9 names as its inspiration, and so a caller porting code from
// that idiom has somewhere to put the setting.
type BinaryMode string

const (
	BinaryModeBytes BinaryMode = "bytes"
	BinaryModeBlob  BinaryMode = "blob"
)

// Channel is the caller-facing façade from spec.md §4.5: it owns one
// reliability engine and one connection state, delegates to the
// fragmenter/reassembler, and drives everything through a single mutex so
// carrier callbacks, Clock timer callbacks, and caller calls never
// interleave — the Go rendition of spec.md §5's single-threaded cooperative
// model.
type Channel struct {
	mu sync.Mutex

	config      *Config
	carrier     Carrier
	clock       Clock
	engine      *engine
	fragmenter  *fragmenter
	reassembler *reassembler

	state      State
	BinaryMode BinaryMode

	OnOpen    func()
	OnMessage func(data []byte)
	OnError   func(err error)
	OnClose   func(CloseEvent)

	connectionTimer    Canceler
	closingTimer       Canceler
	reassemblyTicker   Canceler
	pendingCloseCode   int
	pendingCloseReason string
}

// NewChannel constructs a channel CONNECTING over carrier: it subscribes to
// the carrier, transmits the initial SYN, and arms the connection timer.
func NewChannel(config *Config, carrier Carrier) *Channel {
	if config == nil {
		config = NewDefaultConfig()
	}
	c := &Channel{
		config:      config,
		carrier:     carrier,
		clock:       config.clock(),
		engine:      newEngine(config, carrier),
		fragmenter:  newFragmenter(config.MaxPacketPayloadSize),
		reassembler: newReassembler(),
		state:       StateConnecting,
		BinaryMode:  BinaryModeBytes,
	}

	carrier.OnReceive(c.handleReceive)
	carrier.OnError(c.handleCarrierError)

	log.Debugf("[%s] sending SYN", c.config.Name)
	c.carrier.Send(synPacket(), nil)
	c.connectionTimer = c.clock.AfterFunc(config.ConnectionTimeout, c.onConnectionTimeout)
	c.scheduleReassemblyEviction()

	return c
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BufferedAmount returns the total encoded size of packets sent but not yet
// acknowledged.
func (c *Channel) BufferedAmount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.BufferedAmount()
}

// Counters exposes the engine's packet counters, for diagnostics.
func (c *Channel) Counters() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Counters
}

// Send transmits a text or byte message. Text is UTF-8 encoded (trivially,
// since Go strings already are); anything else fails with ErrUnsupported.
// Send fails with ErrClosed once CLOSED, and with ErrNotOpen while
// CONNECTING or CLOSING.
func (c *Channel) Send(value interface{}) error {
	var payload []byte
	switch v := value.(type) {
	case string:
		payload = []byte(v)
	case []byte:
		payload = v
	default:
		return ErrUnsupported
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return ErrClosed
	}
	if c.state != StateOpen {
		return ErrNotOpen
	}

	fragments, err := c.fragmenter.Split(payload)
	if err != nil {
		return err
	}
	for _, f := range fragments {
		c.engine.SendPacket(f, FlagData)
	}
	return nil
}

// Close drives the graceful CLOSING transition from spec.md §4.3. It is a
// no-op if already CLOSING or CLOSED. code 0 means the default (1000);
// reason "" means no reason.
func (c *Channel) Close(code int, reason string) {
	c.mu.Lock()

	if c.state == StateClosing || c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	if code == 0 {
		code = CloseNormal
	}

	c.pendingCloseCode = code
	c.pendingCloseReason = reason
	c.state = StateClosing

	if c.connectionTimer != nil {
		c.connectionTimer.Stop()
		c.connectionTimer = nil
	}

	// FIN is sent twice: once raw and unsequenced (with the next sequence
	// the engine would assign), once through the engine so it is retried
	// and ACKed like any other reliable packet. Receipt of either path
	// advances the peer's state (spec.md §4.3/§9).
	rawSequence := c.engine.nextSequence
	log.Debugf("[%s] sending FIN", c.config.Name)
	c.carrier.Send(finPacket(rawSequence), nil)
	c.engine.SendPacket(nil, FlagFin)

	c.closingTimer = c.clock.AfterFunc(c.config.ConnectionTimeout, c.onClosingTimeout)

	c.mu.Unlock()
}

func (c *Channel) handleReceive(data []byte) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	ib := c.engine.HandleInbound(data)
	if ib == nil || ib.IsDuplicate {
		c.mu.Unlock()
		return
	}
	callbacks := c.dispatchLocked(ib)
	c.mu.Unlock()
	invoke(callbacks)
}

func (c *Channel) handleCarrierError(err error) {
	c.mu.Lock()
	onError := c.OnError
	c.mu.Unlock()
	if onError != nil {
		onError(err)
	}
}

// dispatchLocked reacts to a freshly-accepted (non-duplicate) control or
// data packet and returns the user callbacks to invoke once unlocked.
// Called with c.mu held.
func (c *Channel) dispatchLocked(ib *InboundPacket) []func() {
	switch {
	case ib.Flags&FlagSyn != 0:
		return c.onSynReceivedLocked()
	case ib.Flags&FlagFin != 0:
		return c.onFinReceivedLocked()
	default:
		return c.onDataReceivedLocked(ib.Payload)
	}
}

func (c *Channel) onSynReceivedLocked() []func() {
	if c.state != StateConnecting {
		return nil
	}
	if c.connectionTimer != nil {
		c.connectionTimer.Stop()
		c.connectionTimer = nil
	}
	c.state = StateOpen
	log.Debugf("[%s] handshake complete, replying SYN", c.config.Name)
	c.carrier.Send(synPacket(), nil)

	onOpen := c.OnOpen
	return []func(){func() {
		if onOpen != nil {
			onOpen()
		}
	}}
}

// onFinReceivedLocked handles both halves of the close handshake. A peer
// still OPEN has not called Close itself: it echoes its own FIN back (so the
// initiator also observes a clean close) and finishes immediately. A peer
// already CLOSING is the original initiator seeing its FIN acknowledged by
// the other side's reply FIN, and just finishes.
func (c *Channel) onFinReceivedLocked() []func() {
	switch c.state {
	case StateOpen:
		rawSequence := c.engine.nextSequence
		log.Debugf("[%s] echoing FIN", c.config.Name)
		c.carrier.Send(finPacket(rawSequence), nil)
		c.engine.SendPacket(nil, FlagFin)
	case StateClosing:
		if c.closingTimer != nil {
			c.closingTimer.Stop()
			c.closingTimer = nil
		}
	default:
		return nil
	}

	c.transitionToClosedLocked()

	onClose := c.OnClose
	ev := CloseEvent{Code: CloseNormal, Reason: "", WasClean: true}
	return []func(){func() {
		if onClose != nil {
			onClose(ev)
		}
	}}
}

func (c *Channel) onDataReceivedLocked(payload []byte) []func() {
	message, ok := c.reassembler.Feed(payload, c.nowStamp())
	if !ok {
		return nil
	}
	onMessage := c.OnMessage
	delivered := message
	return []func(){func() {
		if onMessage != nil {
			onMessage(delivered)
		}
	}}
}

func (c *Channel) onConnectionTimeout() {
	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	log.Debugf("[%s] connection timed out before handshake completed", c.config.Name)
	c.transitionToClosedLocked()
	onClose := c.OnClose
	c.mu.Unlock()

	if onClose != nil {
		onClose(CloseEvent{Code: CloseAbnormal, Reason: "Connection timeout", WasClean: false})
	}
}

func (c *Channel) onClosingTimeout() {
	c.mu.Lock()
	if c.state != StateClosing {
		c.mu.Unlock()
		return
	}
	code, reason := c.pendingCloseCode, c.pendingCloseReason
	if code == 0 {
		code = CloseNormal
	}
	log.Debugf("[%s] closing timed out waiting for FIN", c.config.Name)
	c.transitionToClosedLocked()
	onClose := c.OnClose
	c.mu.Unlock()

	if onClose != nil {
		onClose(CloseEvent{Code: code, Reason: reason, WasClean: false})
	}
}

// transitionToClosedLocked moves to CLOSED and tears down every timer the
// channel owns, resolving spec.md §9's open question about outstanding
// retransmission timers outliving the connection. Called with c.mu held.
func (c *Channel) transitionToClosedLocked() {
	c.state = StateClosed
	c.engine.Close()
	if c.connectionTimer != nil {
		c.connectionTimer.Stop()
		c.connectionTimer = nil
	}
	if c.closingTimer != nil {
		c.closingTimer.Stop()
		c.closingTimer = nil
	}
	if c.reassemblyTicker != nil {
		c.reassemblyTicker.Stop()
		c.reassemblyTicker = nil
	}
}

func (c *Channel) nowStamp() timeStamp {
	return c.clock.Now().UnixNano()
}

// scheduleReassemblyEviction arms the next abandoned-fragment sweep if
// Config.FragmentReassemblyTimeout is configured; otherwise it is a no-op,
// matching the documented source behavior of buffering forever.
func (c *Channel) scheduleReassemblyEviction() {
	if c.config.FragmentReassemblyTimeout <= 0 {
		return
	}
	c.reassemblyTicker = c.clock.AfterFunc(c.config.FragmentReassemblyTimeout, c.onReassemblyTick)
}

func (c *Channel) onReassemblyTick() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	cutoff := c.nowStamp() - int64(c.config.FragmentReassemblyTimeout)
	c.reassembler.EvictStale(cutoff)
	c.mu.Unlock()
	c.scheduleReassemblyEviction()
}

func invoke(callbacks []func()) {
	for _, f := range callbacks {
		f()
	}
}
