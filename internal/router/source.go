package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"netbill/internal/logger"
	"netbill/pkg/models"
)

// Source is the subscription source backed by PPP secrets and profiles.
type Source struct {
	registry       *Registry
	routerID       string
	suspendProfile string
	log            zerolog.Logger
}

// NewSource returns a Source that talks to the router registered as routerID.
func NewSource(registry *Registry, routerID, suspendProfile string) *Source {
	return &Source{
		registry:       registry,
		routerID:       routerID,
		suspendProfile: suspendProfile,
		log:            logger.WithComponent("router-source"),
	}
}

// ListSubscribers returns every enabled PPP secret.
func (s *Source) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	rows, err := s.run(ctx, "/ppp/secret/print", "=.proplist=name,profile,disabled")
	if err != nil {
		return nil, fmt.Errorf("ListSubscribers: %w", err)
	}

	subs := make([]models.Subscriber, 0, len(rows))
	for _, row := range rows {
		if row["name"] == "" || row["disabled"] == "true" {
			continue
		}
		subs = append(subs, models.Subscriber{
			SubscriberID: row["name"],
			PlanName:     row["profile"],
		})
	}
	return subs, nil
}

// ListPlans returns every PPP profile with the price parsed from its comment.
func (s *Source) ListPlans(ctx context.Context) ([]models.Plan, error) {
	rows, err := s.run(ctx, "/ppp/profile/print", "=.proplist=name,comment")
	if err != nil {
		return nil, fmt.Errorf("ListPlans: %w", err)
	}

	plans := make([]models.Plan, 0, len(rows))
	for _, row := range rows {
		if row["name"] == "" {
			continue
		}
		plans = append(plans, models.Plan{
			PlanName: row["name"],
			Price:    ParsePrice(row["comment"]),
		})
	}
	return plans, nil
}

// Suspend switches the subscriber's secret to the suspension profile.
func (s *Source) Suspend(ctx context.Context, subscriberID string) error {
	rows, err := s.run(ctx, "/ppp/secret/print", "?name="+subscriberID, "=.proplist=.id,profile")
	if err != nil {
		return fmt.Errorf("Suspend %s: %w", subscriberID, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("Suspend %s: %w", subscriberID, ErrSubscriberNotFound)
	}

	for _, row := range rows {
		if row["profile"] == s.suspendProfile {
			continue
		}
		if _, err := s.run(ctx, "/ppp/secret/set", "=.id="+row[".id"], "=profile="+s.suspendProfile); err != nil {
			return fmt.Errorf("Suspend %s: %w", subscriberID, err)
		}
	}

	s.log.Info().Str("subscriber", subscriberID).Str("profile", s.suspendProfile).Msg("Subscriber moved to suspension profile")
	return nil
}

// TerminateActiveSession removes any active PPP session of the subscriber.
func (s *Source) TerminateActiveSession(ctx context.Context, subscriberID string) error {
	rows, err := s.run(ctx, "/ppp/active/print", "?name="+subscriberID, "=.proplist=.id")
	if err != nil {
		return fmt.Errorf("TerminateActiveSession %s: %w", subscriberID, err)
	}

	for _, row := range rows {
		if _, err := s.run(ctx, "/ppp/active/remove", "=.id="+row[".id"]); err != nil {
			return fmt.Errorf("TerminateActiveSession %s: %w", subscriberID, err)
		}
	}
	if len(rows) > 0 {
		s.log.Info().Str("subscriber", subscriberID).Int("sessions", len(rows)).Msg("Active session terminated")
	}
	return nil
}

func (s *Source) run(ctx context.Context, args ...string) ([]map[string]string, error) {
	conn, err := s.registry.GetOrConnect(ctx, s.routerID)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Run(ctx, args...)
	if err != nil {
		if !errors.Is(err, ErrCommandFailed) {
			s.registry.Invalidate(s.routerID)
		}
		return nil, err
	}
	return rows, nil
}
