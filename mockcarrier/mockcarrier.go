// Package mockcarrier implements the reliant.Carrier contract over an
// in-memory, configurably lossy/corrupting/reordering link. It is spec.md
// §2's required test collaborator, grounded on the teacher's own
// testTransmitPacketFunction/testContext pattern (rely_test.go, soak.go)
// generalized from a hardcoded 5%-drop soak harness into a reusable,
// independently importable carrier.
package mockcarrier

import (
	"math/rand"
	"time"

	"github.com/jakecoffman/reliant"
)

// Config tunes the carrier's unreliability. Zero value is a perfect link.
type Config struct {
	// PacketLoss is the probability, in [0,1], that a sent buffer is dropped.
	PacketLoss float64
	// CorruptionRate is the probability, in [0,1], that a surviving buffer
	// has one random byte flipped before delivery.
	CorruptionRate float64
	// Delay is the base simulated one-way latency.
	Delay time.Duration
	// Jitter adds up to ± this much randomly to Delay.
	Jitter time.Duration
	// Reorder, when true, varies each delivery's effective delay enough
	// that consecutive sends may arrive out of order.
	Reorder bool
	// Rand is the source of randomness; nil gives the carrier its own source
	// seeded with 1.
	Rand *rand.Rand
}

// MockCarrier is one endpoint of a simulated link. Used standalone, calling
// Deliver injects bytes directly into its own registered receive handler —
// the primitive spec.md's scenarios use to inject handcrafted packets
// ("inject a SYN packet into A's on_receive"). Used via Connect, two
// MockCarriers exchange Send traffic subject to Config.
type MockCarrier struct {
	config Config
	clock  reliant.Clock
	peer   *MockCarrier

	onReceive func([]byte)
	onError   func(error)

	sentCount int
}

// New creates a carrier with the given unreliability profile. clock drives
// simulated delay; pass a *reliant.ManualClock in tests to advance delivery
// deterministically, or nil for the real clock.
func New(config Config, clock reliant.Clock) *MockCarrier {
	if config.Rand == nil {
		config.Rand = rand.New(rand.NewSource(1))
	}
	if clock == nil {
		clock = reliant.RealClock()
	}
	return &MockCarrier{config: config, clock: clock}
}

// Connect wires a and b so that whatever one sends is, subject to its own
// Config, delivered to the other's registered receive handler.
func Connect(a, b *MockCarrier) {
	a.peer = b
	b.peer = a
}

// SentCount reports how many buffers Send has been asked to transmit,
// including ones subsequently dropped — useful for asserting retry budgets
// (spec.md §8 scenario S7).
func (m *MockCarrier) SentCount() int {
	return m.sentCount
}

// Send implements reliant.Carrier. onComplete, if any, fires synchronously:
// the simulated carrier treats handoff as immediate even though delivery to
// the peer may be scheduled for later.
func (m *MockCarrier) Send(data []byte, onComplete func()) {
	m.sentCount++

	if m.peer == nil {
		if onComplete != nil {
			onComplete()
		}
		return
	}

	if m.config.PacketLoss > 0 && m.config.Rand.Float64() < m.config.PacketLoss {
		if onComplete != nil {
			onComplete()
		}
		return
	}

	delivered := append([]byte(nil), data...)
	if m.config.CorruptionRate > 0 && m.config.Rand.Float64() < m.config.CorruptionRate {
		delivered[m.config.Rand.Intn(len(delivered))] ^= 1 << uint(m.config.Rand.Intn(8))
	}

	delay := m.config.Delay
	if m.config.Jitter > 0 {
		delay += time.Duration(m.config.Rand.Int63n(int64(m.config.Jitter)*2)) - m.config.Jitter
	}
	if m.config.Reorder && delay > 0 {
		delay = time.Duration(m.config.Rand.Int63n(int64(delay) + 1))
	}
	if delay < 0 {
		delay = 0
	}

	// Delivery always goes through the clock, even at zero simulated delay:
	// a Carrier must never call back into OnReceive from within Send's own
	// call stack, or a reply that loops straight back (B ACKing A while A's
	// handleReceive is still on the stack, still holding its own mutex)
	// would deadlock. Scheduling at d=0 still fires on the very next
	// Advance, it just can't fire inline.
	peer := m.peer
	m.clock.AfterFunc(delay, func() { peer.receive(delivered) })

	if onComplete != nil {
		onComplete()
	}
}

func (m *MockCarrier) receive(data []byte) {
	if m.onReceive != nil {
		m.onReceive(data)
	}
}

// Deliver injects data directly into this carrier's own registered receive
// handler, bypassing loss/corruption/delay — for handcrafted test packets.
func (m *MockCarrier) Deliver(data []byte) {
	m.receive(data)
}

// OnReceive implements reliant.Carrier.
func (m *MockCarrier) OnReceive(handler func(data []byte)) {
	m.onReceive = handler
}

// OnError implements reliant.Carrier.
func (m *MockCarrier) OnError(handler func(err error)) {
	m.onError = handler
}

// RaiseError simulates the carrier itself reporting a transport error.
func (m *MockCarrier) RaiseError(err error) {
	if m.onError != nil {
		m.onError(err)
	}
}
