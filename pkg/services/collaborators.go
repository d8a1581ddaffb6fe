package services

import (
	"context"

	"netbill/pkg/models"
)

// SubscriptionSource is the router-side view of subscribers and plans.
type SubscriptionSource interface {
	// ListSubscribers returns active PPPoE subscribers with their current plan.
	ListSubscribers(ctx context.Context) ([]models.Subscriber, error)

	// ListPlans returns every plan; plans without a billable price carry a zero Price.
	ListPlans(ctx context.Context) ([]models.Plan, error)

	// Suspend moves the subscriber onto the suspension plan.
	Suspend(ctx context.Context, subscriberID string) error

	// TerminateActiveSession disconnects any live session of the subscriber.
	// A subscriber with no live session is not an error.
	TerminateActiveSession(ctx context.Context, subscriberID string) error
}

// CustomerDirectory maps subscriber ids to customer records.
// Each call returns a fresh snapshot so that external edits are visible.
type CustomerDirectory interface {
	Customers(ctx context.Context) (map[string]models.CustomerRecord, error)
}

// PartnerDirectory maps partner ids to partner records.
type PartnerDirectory interface {
	Partners(ctx context.Context) (map[string]models.PartnerRecord, error)
}
