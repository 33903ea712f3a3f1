package core

// Frame is a raw encoded payload.
type Frame []byte

type ConnID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	ID() ConnID
	// TrySend queues f without blocking; a full queue is reported as an error.
	TrySend(f Frame) error
	Close()
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []SignalConnection
}
