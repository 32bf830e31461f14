package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-scopecache/policy"
	"github.com/goliatone/go-scopecache/repositorycache"
	"github.com/goliatone/go-scopecache/scope"
)

// ServerRegistrations reads and writes straight through to the database.
type ServerRegistrations struct {
	*repositorycache.CachedRepository[int, *ServerRegistration]
}

func NewServerRegistrations(o Options) (*ServerRegistrations, error) {
	src := source(o, func() *ServerRegistration { return &ServerRegistration{} })
	p, err := policy.NewNoCache(policyOptions(o, TagServerRegistration, serverRegistrationID, src))
	if err != nil {
		return nil, err
	}
	return &ServerRegistrations{CachedRepository: facade[*ServerRegistration](o, TagServerRegistration, p, src)}, nil
}

func (r *ServerRegistrations) GetByIdentity(ctx context.Context, sc *scope.Scope, identity string) (*ServerRegistration, bool, error) {
	return first(ctx, sc, r.CachedRepository, where("server_identity = ?", identity))
}

// Heartbeat registers the server or refreshes its registration, marking it
// active.
func (r *ServerRegistrations) Heartbeat(ctx context.Context, sc *scope.Scope, identity, address string, now time.Time) (*ServerRegistration, error) {
	now = now.UTC()

	reg, ok, err := r.GetByIdentity(ctx, sc, identity)
	if err != nil {
		return nil, err
	}
	if !ok {
		reg = &ServerRegistration{
			ServerIdentity: identity,
			Registered:     now,
		}
	}
	reg.ServerAddress = address
	reg.Accessed = now
	reg.IsActive = true
	reg.MarkDirty()

	if err := r.Save(ctx, sc, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// GetActive returns the active registrations ordered by id.
func (r *ServerRegistrations) GetActive(ctx context.Context, sc *scope.Scope) ([]*ServerRegistration, error) {
	return r.GetByQuery(ctx, sc, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("is_active = ?", true).Order("id ASC")
	})
}

// DeactivateStale deactivates the active registrations not seen since
// cutoff and returns how many it changed. A deactivated server also loses
// the scheduling publisher role.
func (r *ServerRegistrations) DeactivateStale(ctx context.Context, sc *scope.Scope, cutoff time.Time) (int, error) {
	active, err := r.GetActive(ctx, sc)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, reg := range active {
		if !reg.Accessed.Before(cutoff) {
			continue
		}
		reg.IsActive = false
		reg.IsSchedulingPublisher = false
		reg.MarkDirty()
		if err := r.Save(ctx, sc, reg); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
