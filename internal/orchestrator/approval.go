package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/avaluev/conductor/pkg/models"
)

// ApprovalRequest asks an external decider to approve or reject a
// synthesized result before it is finalized.
type ApprovalRequest struct {
	// ID correlates the request with its decision.
	ID string
	// Category is the risk category that triggered the request.
	Category models.RiskCategory
	// Action is the proposed result text under review.
	Action string
	// Rationale summarizes why the category matched.
	Rationale string
}

// ApprovalBroker mediates between the orchestrator and whoever answers
// approval requests (the CLI, an API consumer). Await blocks the run;
// SubmitDecision resolves it from another goroutine.
type ApprovalBroker struct {
	mu      sync.Mutex
	pending map[string]chan models.ApprovalDecision

	requestCh chan ApprovalRequest

	// autoApprove short-circuits every request with an approval decided
	// by "auto". Used in non-interactive runs.
	autoApprove bool
}

// NewApprovalBroker creates a broker. With autoApprove set, Await never
// blocks.
func NewApprovalBroker(autoApprove bool) *ApprovalBroker {
	return &ApprovalBroker{
		pending:     make(map[string]chan models.ApprovalDecision),
		requestCh:   make(chan ApprovalRequest, 8),
		autoApprove: autoApprove,
	}
}

// Requests returns the channel the deciding side listens on.
func (b *ApprovalBroker) Requests() <-chan ApprovalRequest {
	return b.requestCh
}

// Await publishes the request and blocks until a decision arrives or the
// context is cancelled.
func (b *ApprovalBroker) Await(ctx context.Context, req ApprovalRequest) (models.ApprovalDecision, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if b.autoApprove {
		return models.ApprovalDecision{
			Category:  req.Category,
			Approved:  true,
			DecidedBy: "auto",
		}, nil
	}

	ch := make(chan models.ApprovalDecision, 1)
	b.mu.Lock()
	b.pending[req.ID] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, req.ID)
		b.mu.Unlock()
	}()

	select {
	case b.requestCh <- req:
	case <-ctx.Done():
		return models.ApprovalDecision{}, ctx.Err()
	}

	select {
	case dec := <-ch:
		return dec, nil
	case <-ctx.Done():
		return models.ApprovalDecision{}, ctx.Err()
	}
}

// SubmitDecision resolves a pending request. Returns false when no request
// with that id is waiting.
func (b *ApprovalBroker) SubmitDecision(id string, dec models.ApprovalDecision) bool {
	b.mu.Lock()
	ch, ok := b.pending[id]
	b.mu.Unlock()
	if !ok {
		return false
	}
	ch <- dec
	return true
}
