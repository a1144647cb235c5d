// Package registry holds the service implementations chosen at start-up.
// It is built once in main, resolved into a Services value and attached to
// every request; nothing is looked up by name while serving.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/playperu/tabletop/internal/tabletop"
)

// Service names.
const (
	Catalog       = "catalog"
	Users         = "users"
	Games         = "games"
	Challenges    = "challenges"
	Tournaments   = "tournaments"
	Events        = "events"
	Explorations  = "explorations"
	Notifications = "notifications"
	Bot           = "bot"
	Federation    = "federation"
)

// Required lists every name Resolve needs.
var Required = []string{
	Catalog, Users, Games, Challenges, Tournaments,
	Events, Explorations, Notifications, Bot, Federation,
}

var ErrNotRegistered = errors.New("service not registered")

// MissingError names every required service absent at resolve time.
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing services: %s (required: %s)",
		strings.Join(e.Names, ", "), strings.Join(Required, ", "))
}

func (e *MissingError) Unwrap() error { return ErrNotRegistered }

type Registry struct {
	mu    sync.RWMutex
	impls map[string]any
}

func New() *Registry {
	return &Registry{impls: make(map[string]any)}
}

// Register stores impl under name, replacing any earlier registration.
func (r *Registry) Register(name string, impl any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.impls[name] = impl
}

func (r *Registry) Get(name string) (any, error) {
	r.mu.RLock()
	impl, ok := r.impls[name]
	r.mu.RUnlock()
	if !ok || impl == nil {
		return nil, fmt.Errorf("%q: %w", name, ErrNotRegistered)
	}
	return impl, nil
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.impls))
	for name := range r.impls {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup returns the implementation registered under name as a T.
func Lookup[T any](r *Registry, name string) (T, error) {
	var zero T
	impl, err := r.Get(name)
	if err != nil {
		return zero, err
	}
	v, ok := impl.(T)
	if !ok {
		return zero, fmt.Errorf("service %q: %T does not provide the expected interface", name, impl)
	}
	return v, nil
}

// Services is the resolved set handed to request handlers.
type Services struct {
	Catalog       tabletop.CatalogService
	Users         tabletop.UserService
	Games         tabletop.GameService
	Challenges    tabletop.ChallengeService
	Tournaments   tabletop.TournamentService
	Events        tabletop.EventService
	Explorations  tabletop.ExplorationService
	Notifications tabletop.NotificationService
	Bot           tabletop.BotService
	Federation    tabletop.FederationService
}

// Resolve fails with a *MissingError listing every absent service, or with
// a type error for the first implementation of the wrong kind.
func (r *Registry) Resolve() (*Services, error) {
	var missing []string
	for _, name := range Required {
		if _, err := r.Get(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingError{Names: missing}
	}

	var s Services
	var err error
	if s.Catalog, err = Lookup[tabletop.CatalogService](r, Catalog); err != nil {
		return nil, err
	}
	if s.Users, err = Lookup[tabletop.UserService](r, Users); err != nil {
		return nil, err
	}
	if s.Games, err = Lookup[tabletop.GameService](r, Games); err != nil {
		return nil, err
	}
	if s.Challenges, err = Lookup[tabletop.ChallengeService](r, Challenges); err != nil {
		return nil, err
	}
	if s.Tournaments, err = Lookup[tabletop.TournamentService](r, Tournaments); err != nil {
		return nil, err
	}
	if s.Events, err = Lookup[tabletop.EventService](r, Events); err != nil {
		return nil, err
	}
	if s.Explorations, err = Lookup[tabletop.ExplorationService](r, Explorations); err != nil {
		return nil, err
	}
	if s.Notifications, err = Lookup[tabletop.NotificationService](r, Notifications); err != nil {
		return nil, err
	}
	if s.Bot, err = Lookup[tabletop.BotService](r, Bot); err != nil {
		return nil, err
	}
	if s.Federation, err = Lookup[tabletop.FederationService](r, Federation); err != nil {
		return nil, err
	}
	return &s, nil
}
