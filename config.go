package reliant

import "time"

// Config holds immutable-after-construction channel configuration.
type Config struct {
	// Name tags this channel's log lines, in the teacher's "[name] message" style.
	Name string

	// MaxPacketPayloadSize is the per-packet payload budget before the
	// fragmenter splits a message into multiple DATA packets.
	MaxPacketPayloadSize int
	// RetransmissionTimeout is the fixed per-packet retransmit interval.
	RetransmissionTimeout time.Duration
	// MaxRetransmissionAttempts bounds retransmits beyond the initial send.
	MaxRetransmissionAttempts int
	// ConnectionTimeout is the CONNECTING and CLOSING grace period.
	ConnectionTimeout time.Duration

	// ReceivedWindowCapacity bounds the duplicate-suppression window. Must
	// stay far below 2^32; the default of 1024 is comfortably so.
	ReceivedWindowCapacity int

	// FragmentReassemblyTimeout, if nonzero, drops a partially reassembled
	// message that has seen no new fragment for this long. Zero (the
	// default) disables eviction, matching the source's own behavior of
	// buffering forever.
	FragmentReassemblyTimeout time.Duration

	// Clock lets callers substitute a deterministic clock for tests. Nil
	// means the real wall clock.
	Clock Clock
}

// NewDefaultConfig returns the configuration spec.md names as defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Name:                      "channel",
		MaxPacketPayloadSize:      1489,
		RetransmissionTimeout:     1000 * time.Millisecond,
		MaxRetransmissionAttempts: 5,
		ConnectionTimeout:         5000 * time.Millisecond,
		ReceivedWindowCapacity:    1024,
	}
}

func (c *Config) clock() Clock {
	if c.Clock == nil {
		return realClock{}
	}
	return c.Clock
}
