// Package alerting delivers operator alerts for consistency failures, i.e.
// states where the remote network and the local store disagree and manual
// reconciliation is needed. Delivery is fire-and-forget: a failure to alert
// never fails the provisioning operation that raised it.
package alerting

import "context"

// Event carries enough context to manually reconcile an inconsistency
type Event struct {
	Integration string
	UserID      int64
	Identifier  string
	Detail      string
}

// Alerter is the observability sink consumed by the integrations
type Alerter interface {
	ConsistencyFailure(ctx context.Context, event Event)
}

// Nop discards all alerts. Used when no sink is configured.
type Nop struct{}

// ConsistencyFailure implements Alerter
func (Nop) ConsistencyFailure(context.Context, Event) {}
