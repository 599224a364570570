// Package gateway is the boundary of the membership lifecycle.
//
// It authenticates the caller, consults the policy checker, runs the state engine and
// persists the outcome with a single store write. Every failure is returned as *Error.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/covercompare/membergate/internal/engine"
	"github.com/covercompare/membergate/internal/events"
	"github.com/covercompare/membergate/internal/membership"
	"github.com/covercompare/membergate/internal/metrics"
	"github.com/covercompare/membergate/internal/policy"
	"github.com/covercompare/membergate/internal/presenter"
	"github.com/covercompare/membergate/pkg/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Options configures a Gateway.
type Options struct {
	// Store serves a principal's reads of their own profile.
	Store engine.ProfileStore
	// Elevated, when set, is the privileged backend used for administrative reads and writes.
	// Without it Store is used for everything.
	Elevated engine.ProfileStore
	// Events receives dashboard filter changes. A private bus is created when nil.
	Events *events.Bus
	// Now defaults to time.Now.
	Now func() time.Time
}

// Gateway executes lifecycle operations on behalf of an authenticated principal.
type Gateway struct {
	store    engine.ProfileStore
	elevated engine.ProfileStore
	events   *events.Bus
	now      func() time.Time
}

// New returns a Gateway. Options.Store is required.
func New(opts Options) *Gateway {
	if opts.Store == nil {
		panic("gateway: Options.Store is required")
	}
	g := &Gateway{
		store:    opts.Store,
		elevated: opts.Elevated,
		events:   opts.Events,
		now:      opts.Now,
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.events == nil {
		g.events = events.NewBus()
	}
	return g
}

// SetStatusRequest asks for a generic status transition.
type SetStatusRequest struct {
	AccountID string  `json:"accountId"`
	Status    string  `json:"status"`
	Note      *string `json:"note"`
}

// ConfirmPaymentRequest records a payment. PaidUntil is YYYY-MM-DD or RFC 3339.
type ConfirmPaymentRequest struct {
	AccountID string  `json:"accountId"`
	PaidUntil string  `json:"paidUntil"`
	Note      *string `json:"note"`
}

// Result confirms a successful write.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SetStatus applies a status transition to the target account.
func (g *Gateway) SetStatus(ctx context.Context, principal *schema.Principal, req SetStatusRequest) (Result, error) {
	const op = "set_status"
	if principal == nil {
		return Result{}, g.fail(op, unauthenticated())
	}

	targetID, idErr := parseAccountID(req.AccountID)
	if idErr != nil {
		return Result{}, g.fail(op, idErr)
	}
	if strings.TrimSpace(req.Status) == "" {
		return Result{}, g.fail(op, invalidRequest("missing field: status"))
	}

	actor, target, gerr := g.loadForAdmin(ctx, principal.AccountID, targetID)
	if gerr != nil {
		return Result{}, g.fail(op, gerr)
	}

	next, err := membership.Transition(schema.Status(req.Status), target, membership.Inputs{
		Now:  g.now(),
		Note: req.Note,
	})
	if err != nil {
		e := invalidRequest("invalid field: status")
		e.Err = err
		return Result{}, g.fail(op, e)
	}

	if gerr := g.persist(ctx, next); gerr != nil {
		return Result{}, g.fail(op, gerr)
	}

	metrics.RecordTransition(string(next.Status))
	log.Info().
		Str("actor_id", actor.AccountID.String()).
		Str("account_id", next.AccountID.String()).
		Str("from", string(target.Status)).
		Str("requested", req.Status).
		Str("to", string(next.Status)).
		Msg("Membership status updated")

	return Result{
		Success: true,
		Message: fmt.Sprintf("membership status updated to %s", next.Status),
	}, nil
}

// ConfirmPayment activates the target account through to the supplied paid-until date.
func (g *Gateway) ConfirmPayment(ctx context.Context, principal *schema.Principal, req ConfirmPaymentRequest) (Result, error) {
	const op = "confirm_payment"
	if principal == nil {
		return Result{}, g.fail(op, unauthenticated())
	}

	targetID, idErr := parseAccountID(req.AccountID)
	if idErr != nil {
		return Result{}, g.fail(op, idErr)
	}
	if strings.TrimSpace(req.PaidUntil) == "" {
		return Result{}, g.fail(op, invalidRequest("missing field: paidUntil"))
	}
	paidUntil, err := ParseDate(req.PaidUntil)
	if err != nil {
		e := invalidRequest("invalid field: paidUntil")
		e.Err = err
		return Result{}, g.fail(op, e)
	}

	actor, target, gerr := g.loadForAdmin(ctx, principal.AccountID, targetID)
	if gerr != nil {
		return Result{}, g.fail(op, gerr)
	}

	next, err := membership.ConfirmPayment(target, membership.PaymentInputs{
		PaidUntil: paidUntil,
		Now:       g.now(),
		Note:      req.Note,
	})
	if err != nil {
		e := invalidRequest("invalid field: paidUntil")
		e.Err = err
		return Result{}, g.fail(op, e)
	}

	if gerr := g.persist(ctx, next); gerr != nil {
		return Result{}, g.fail(op, gerr)
	}

	metrics.RecordPayment()
	metrics.RecordTransition(string(next.Status))
	log.Info().
		Str("actor_id", actor.AccountID.String()).
		Str("account_id", next.AccountID.String()).
		Str("paid_until", paidUntil.Format(dateLayout)).
		Msg("Payment confirmed")

	return Result{
		Success: true,
		Message: fmt.Sprintf("payment confirmed, membership active until %s", paidUntil.Format(dateLayout)),
	}, nil
}

// GetProfile returns the principal's own profile.
func (g *Gateway) GetProfile(ctx context.Context, principal *schema.Principal) (schema.Profile, error) {
	const op = "get_profile"
	if principal == nil {
		return schema.Profile{}, g.fail(op, unauthenticated())
	}

	p, err := g.store.Get(ctx, principal.AccountID)
	if errors.Is(err, engine.ErrProfileNotFound) {
		return schema.Profile{}, g.fail(op, notFound())
	}
	if err != nil {
		return schema.Profile{}, g.fail(op, persistence(err))
	}
	return p, nil
}

// Banner presents the principal's own membership for display.
func (g *Gateway) Banner(ctx context.Context, principal *schema.Principal) (schema.Banner, error) {
	p, err := g.GetProfile(ctx, principal)
	if err != nil {
		return schema.Banner{}, err
	}
	return presenter.Present(p, g.now()), nil
}

// ListProfiles returns the profiles matching filter for an admin dashboard.
// filter is "", "all", or a status; "suspended" lists pending accounts.
func (g *Gateway) ListProfiles(ctx context.Context, principal *schema.Principal, filter string) ([]schema.Profile, error) {
	const op = "list_profiles"
	if principal == nil {
		return nil, g.fail(op, unauthenticated())
	}

	var status schema.Status
	if filter != "" && filter != "all" {
		st, err := membership.ParseStatus(filter)
		if err != nil {
			e := invalidRequest("invalid field: status")
			e.Err = err
			return nil, g.fail(op, e)
		}
		status = membership.Normalize(st)
	}

	if gerr := g.requireAdmin(ctx, principal); gerr != nil {
		return nil, g.fail(op, gerr)
	}

	profiles, err := g.privileged().List(ctx, status)
	if err != nil {
		return nil, g.fail(op, persistence(err))
	}
	return profiles, nil
}

// PublishFilter tells every open admin dashboard to switch its list to filter.
func (g *Gateway) PublishFilter(ctx context.Context, principal *schema.Principal, filter string) (Result, error) {
	const op = "publish_filter"
	if principal == nil {
		return Result{}, g.fail(op, unauthenticated())
	}
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return Result{}, g.fail(op, invalidRequest("missing field: filter"))
	}
	if filter != "all" {
		if _, err := membership.ParseStatus(filter); err != nil {
			e := invalidRequest("invalid field: filter")
			e.Err = err
			return Result{}, g.fail(op, e)
		}
	}
	if gerr := g.requireAdmin(ctx, principal); gerr != nil {
		return Result{}, g.fail(op, gerr)
	}

	n := g.events.Publish(schema.FilterChanged{Filter: filter})
	log.Debug().Str("filter", filter).Int("subscribers", n).Msg("Filter change published")
	return Result{Success: true, Message: fmt.Sprintf("filter changed to %s", filter)}, nil
}

// Subscribe registers an admin dashboard for filter changes. The caller must Cancel the subscription.
func (g *Gateway) Subscribe(ctx context.Context, principal *schema.Principal) (*events.Subscription, error) {
	const op = "subscribe"
	if principal == nil {
		return nil, g.fail(op, unauthenticated())
	}
	if gerr := g.requireAdmin(ctx, principal); gerr != nil {
		return nil, g.fail(op, gerr)
	}
	return g.events.Subscribe(), nil
}

func (g *Gateway) requireAdmin(ctx context.Context, principal *schema.Principal) *Error {
	actor, err := g.privileged().Get(ctx, principal.AccountID)
	if err != nil && !errors.Is(err, engine.ErrProfileNotFound) {
		return persistence(err)
	}
	if err != nil || !policy.CanAdminister(actor.Role) {
		return forbidden(policy.ErrInsufficientPrivilege)
	}
	return nil
}

// loadForAdmin fetches the acting principal and the target concurrently, then applies policy.
// A missing target is only reported to principals who are admins.
func (g *Gateway) loadForAdmin(ctx context.Context, actorID, targetID uuid.UUID) (schema.Profile, schema.Profile, *Error) {
	var (
		actor, target           schema.Profile
		actorFound, targetFound bool
	)
	store := g.privileged()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		p, err := store.Get(gctx, actorID)
		if errors.Is(err, engine.ErrProfileNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		actor, actorFound = p, true
		return nil
	})
	group.Go(func() error {
		p, err := store.Get(gctx, targetID)
		if errors.Is(err, engine.ErrProfileNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		target, targetFound = p, true
		return nil
	})
	if err := group.Wait(); err != nil {
		return schema.Profile{}, schema.Profile{}, persistence(err)
	}

	if !actorFound || !policy.CanAdminister(actor.Role) {
		return schema.Profile{}, schema.Profile{}, forbidden(policy.ErrInsufficientPrivilege)
	}
	if !targetFound {
		return schema.Profile{}, schema.Profile{}, notFound()
	}
	if d := policy.Authorize(actor.Role, target); !d.Allowed {
		return schema.Profile{}, schema.Profile{}, forbidden(d.Reason)
	}
	return actor, target, nil
}

func (g *Gateway) persist(ctx context.Context, next schema.Profile) *Error {
	err := g.privileged().Update(ctx, next)
	if errors.Is(err, engine.ErrProfileNotFound) {
		return notFound()
	}
	if err != nil {
		return persistence(err)
	}
	return nil
}

func (g *Gateway) privileged() engine.ProfileStore {
	if g.elevated != nil {
		return g.elevated
	}
	return g.store
}

func (g *Gateway) fail(op string, e *Error) error {
	metrics.RecordGatewayError(op, string(e.Kind))
	if e.Kind == KindPersistence {
		log.Error().Err(e.Err).Str("operation", op).Msg("Persistence backend failed")
	}
	return e
}

func parseAccountID(raw string) (uuid.UUID, *Error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, invalidRequest("missing field: accountId")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		e := invalidRequest("invalid field: accountId")
		e.Err = err
		return uuid.Nil, e
	}
	return id, nil
}

const dateLayout = "2006-01-02"

// ParseDate accepts a calendar date (YYYY-MM-DD) or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC 3339, got %q", s)
	}
	return t.UTC(), nil
}
