package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/playperu/tabletop/internal/store"
	"github.com/playperu/tabletop/internal/tabletop"
)

// Notifications stores push subscriptions. Nothing is sent: a delivery is
// a log line per subscription the recipient's settings allow.
type Notifications struct {
	base
	subs   store.Collection[tabletop.PushSubscription]
	users  tabletop.UserService
	logger *slog.Logger
}

func NewNotifications(subs store.Collection[tabletop.PushSubscription], users tabletop.UserService, logger *slog.Logger, opts ...Option) *Notifications {
	return &Notifications{base: newBase(opts), subs: subs, users: users, logger: logger}
}

// Subscribe stores one subscription per user and endpoint. Subscribing an
// endpoint again replaces its keys and keeps the original id.
func (s *Notifications) Subscribe(ctx context.Context, userID, endpoint string, keys tabletop.PushKeys) (tabletop.PushSubscription, error) {
	if err := requireActor(userID); err != nil {
		return tabletop.PushSubscription{}, err
	}
	sub := tabletop.PushSubscription{
		ID:        subscriptionID(userID, endpoint),
		UserID:    userID,
		Endpoint:  endpoint,
		Keys:      keys,
		CreatedAt: s.timestamp(),
	}
	err := s.subs.Create(ctx, sub.ID, sub)
	if errors.Is(err, store.ErrExists) {
		sub, err = s.subs.Update(ctx, sub.ID, func(p *tabletop.PushSubscription) error {
			p.Keys = keys
			return nil
		})
	}
	if err != nil {
		return sub, fmt.Errorf("storing subscription: %w", err)
	}
	return sub, nil
}

func subscriptionID(userID, endpoint string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(userID+"\n"+endpoint)).String()
}

func (s *Notifications) Subscriptions(ctx context.Context, userID string) ([]tabletop.PushSubscription, error) {
	list, err := s.subs.List(ctx, func(p tabletop.PushSubscription) bool { return p.UserID == userID })
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	return list, nil
}

func (s *Notifications) Unsubscribe(ctx context.Context, id, userID string) error {
	sub, err := s.subs.Get(ctx, id)
	if err != nil {
		return lookupErr(err, "subscription", id)
	}
	if sub.UserID != userID {
		return forbidden("subscription %s belongs to another user", id)
	}
	if err := s.subs.Delete(ctx, id); err != nil {
		return lookupErr(err, "subscription", id)
	}
	return nil
}

// Notify returns the number of subscriptions the notification went to.
func (s *Notifications) Notify(ctx context.Context, userID string, n tabletop.Notification) (int, error) {
	settings := tabletop.DefaultSettings()
	u, err := s.users.Get(ctx, userID)
	switch {
	case err == nil:
		settings = u.Settings
	case !errors.Is(err, tabletop.ErrNotFound):
		return 0, err
	}
	if !allows(settings, n.Kind) {
		return 0, nil
	}

	subs, err := s.Subscriptions(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, sub := range subs {
		s.logger.Info("push notification",
			"user", userID,
			"subscription", sub.ID,
			"endpoint", sub.Endpoint,
			"kind", n.Kind,
			"title", n.Title,
			"ref", n.Ref,
		)
	}
	return len(subs), nil
}

func allows(s tabletop.Settings, kind tabletop.NotificationKind) bool {
	switch kind {
	case tabletop.NotifyMove:
		return s.NotifyMoves
	case tabletop.NotifyChallenge:
		return s.NotifyChallenges
	case tabletop.NotifyTournament:
		return s.NotifyTournaments
	default:
		return false
	}
}
