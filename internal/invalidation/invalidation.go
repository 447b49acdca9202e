// Package invalidation carries the "ledger changed" signal that services emit
// after a successful commit. Delivery is best effort and never blocks the caller.
package invalidation

type Scope string

const (
	ScopeInstallments  Scope = "installments"
	ScopeAnticipations Scope = "anticipations"
	ScopeInvoices      Scope = "invoices"
	ScopeEntries       Scope = "entries"
)

type Event struct {
	Scopes     []Scope `json:"scopes"`
	Period     string  `json:"period,omitempty"`
	ResourceID string  `json:"resource_id,omitempty"`
}

type Invalidator interface {
	Invalidate(ownerID string, event Event)
}

// Multi fans an event out to every non-nil invalidator in order.
type Multi []Invalidator

func (m Multi) Invalidate(ownerID string, event Event) {
	for _, inv := range m {
		if inv == nil {
			continue
		}
		inv.Invalidate(ownerID, event)
	}
}
