package models

import "github.com/shopspring/decimal"

// CustomerRecord holds contact details and partner assignment for a subscriber.
type CustomerRecord struct {
	SubscriberID   string `json:"subscriberId" validate:"required"`
	Name           string `json:"name"`
	Address        string `json:"address"`
	Phone          string `json:"phone" validate:"omitempty,max=32"`
	CustomerNumber int    `json:"customerNumber" validate:"gte=0"`
	AgentID        string `json:"agentId,omitempty"`
	TechnicianID   string `json:"technicianId,omitempty"`
}

// PartnerRecord is a person who may earn commission as agent, technician, or both.
type PartnerRecord struct {
	PartnerID      string          `json:"partnerId" validate:"required"`
	Username       string          `json:"username" validate:"required"`
	IsAgent        bool            `json:"isAgent"`
	AgentRate      decimal.Decimal `json:"agentRate"`
	IsTechnician   bool            `json:"isTechnician"`
	TechnicianRate decimal.Decimal `json:"technicianRate"`
}

// Subscriber is a PPPoE account as reported by the router.
type Subscriber struct {
	SubscriberID string `json:"subscriberId"`
	PlanName     string `json:"planName"`
}

// Plan is a router profile. Price is zero when the profile carries no billable price.
type Plan struct {
	PlanName string          `json:"planName"`
	Price    decimal.Decimal `json:"price"`
}
