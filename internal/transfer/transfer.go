package transfer

import (
	"context"
	"log"
	"sync"
)

// Gateway abstracts crediting an external account: order refunds and the
// merchant withdrawal. Transfers are fire-and-forget from the ledger's
// point of view: a failed transfer does not roll back the committed state
// change and the engine does not retry it.
type Gateway interface {
	Credit(ctx context.Context, account string, amountCents int64, reason string) error
}

// LogGateway records transfers to the process log. It stands in for a
// real value-transfer network, which is outside this system's scope.
type LogGateway struct{}

func (LogGateway) Credit(_ context.Context, account string, amountCents int64, reason string) error {
	log.Printf("[transfer] credit account=%s amount_cents=%d reason=%s", account, amountCents, reason)
	return nil
}

// Recorded is one captured transfer, for assertions in tests.
type Recorded struct {
	Account     string
	AmountCents int64
	Reason      string
}

// Recorder captures transfers in memory.
type Recorder struct {
	mu       sync.Mutex
	Err      error // returned from Credit when set
	captured []Recorded
}

func (r *Recorder) Credit(_ context.Context, account string, amountCents int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	r.captured = append(r.captured, Recorded{Account: account, AmountCents: amountCents, Reason: reason})
	return nil
}

func (r *Recorder) Transfers() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Recorded, len(r.captured))
	copy(result, r.captured)
	return result
}
