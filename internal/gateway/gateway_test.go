package gateway

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/covercompare/membergate/internal/engine"
	"github.com/covercompare/membergate/pkg/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store  *engine.MemStore
	gw     *Gateway
	admin  schema.Profile
	member schema.Profile
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := engine.NewMemStore(nil, nil)

	admin := schema.NewProfile(uuid.New(), "admin", fixedNow.Add(-time.Hour))
	admin.Role = schema.RoleAdmin
	admin.Status = schema.StatusActive
	admin.IsApproved = true
	require.NoError(t, store.Create(ctx, admin))

	member := schema.NewProfile(uuid.New(), "member", fixedNow.Add(-time.Hour))
	require.NoError(t, store.Create(ctx, member))

	return &fixture{
		store:  store,
		gw:     New(Options{Store: store, Now: func() time.Time { return fixedNow }}),
		admin:  admin,
		member: member,
	}
}

func (f *fixture) principal(p schema.Profile) *schema.Principal {
	return &schema.Principal{AccountID: p.AccountID}
}

func kindOf(t *testing.T, err error) Kind {
	t.Helper()
	var gerr *Error
	require.True(t, errors.As(err, &gerr), "expected *gateway.Error, got %T: %v", err, err)
	return gerr.Kind
}

func strPtr(s string) *string { return &s }

func TestSetStatus_PendingToActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.gw.SetStatus(ctx, f.principal(f.admin), SetStatusRequest{
		AccountID: f.member.AccountID.String(),
		Status:    "active",
		Note:      strPtr("approved after review"),
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "active")

	got, err := f.store.Get(ctx, f.member.AccountID)
	require.NoError(t, err)
	assert.Equal(t, schema.StatusActive, got.Status)
	assert.True(t, got.IsApproved)
	assert.Nil(t, got.SuspendedAt)
	assert.Nil(t, got.GracePeriodUntil)
	assert.Equal(t, "approved after review", *got.PaymentNote)
}

func TestSetStatus_SuspendedIsStoredAsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.gw.SetStatus(ctx, f.principal(f.admin), SetStatusRequest{
		AccountID: f.member.AccountID.String(),
		Status:    "suspended",
	})
	require.NoError(t, err)

	got, _ := f.store.Get(ctx, f.member.AccountID)
	assert.Equal(t, schema.StatusPending, got.Status)
	require.NotNil(t, got.GracePeriodUntil)
	assert.Equal(t, fixedNow.Add(7*24*time.Hour), *got.GracePeriodUntil)
}

func TestSetStatus_AdminTargetForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := schema.NewProfile(uuid.New(), "other-admin", fixedNow)
	other.Role = schema.RoleAdmin
	require.NoError(t, f.store.Create(ctx, other))

	_, err := f.gw.SetStatus(ctx, f.principal(f.admin), SetStatusRequest{
		AccountID: other.AccountID.String(),
		Status:    "deleted",
	})
	require.Error(t, err)
	assert.Equal(t, KindForbidden, kindOf(t, err))
	assert.Contains(t, err.Error(), "cannot be modified")

	got, _ := f.store.Get(ctx, other.AccountID)
	assert.Equal(t, schema.StatusPending, got.Status, "protected account must not be written")
}

func TestSetStatus_ExemptTargetForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	exempt := schema.NewProfile(uuid.New(), "service", fixedNow)
	exempt.Exempt = true
	require.NoError(t, f.store.Create(ctx, exempt))

	_, err := f.gw.SetStatus(ctx, f.principal(f.admin), SetStatusRequest{
		AccountID: exempt.AccountID.String(),
		Status:    "active",
	})
	assert.Equal(t, KindForbidden, kindOf(t, err))
}

func TestSetStatus_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stranger := &schema.Principal{AccountID: uuid.New()}

	tests := []struct {
		name      string
		principal *schema.Principal
		req       SetStatusRequest
		kind      Kind
	}{
		{"no principal", nil, SetStatusRequest{AccountID: f.member.AccountID.String(), Status: "active"}, KindUnauthenticated},
		{"missing account", f.principal(f.admin), SetStatusRequest{Status: "active"}, KindInvalidRequest},
		{"malformed account", f.principal(f.admin), SetStatusRequest{AccountID: "abc", Status: "active"}, KindInvalidRequest},
		{"missing status", f.principal(f.admin), SetStatusRequest{AccountID: f.member.AccountID.String()}, KindInvalidRequest},
		{"invalid status", f.principal(f.admin), SetStatusRequest{AccountID: f.member.AccountID.String(), Status: "banned"}, KindInvalidRequest},
		{"member principal", f.principal(f.member), SetStatusRequest{AccountID: f.admin.AccountID.String(), Status: "active"}, KindForbidden},
		{"principal without profile", stranger, SetStatusRequest{AccountID: f.member.AccountID.String(), Status: "active"}, KindForbidden},
		{"non-admin probing missing target", f.principal(f.member), SetStatusRequest{AccountID: uuid.NewString(), Status: "active"}, KindForbidden},
		{"unknown target", f.principal(f.admin), SetStatusRequest{AccountID: uuid.NewString(), Status: "active"}, KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.gw.SetStatus(ctx, tt.principal, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, kindOf(t, err))
		})
	}

	got, _ := f.store.Get(ctx, f.member.AccountID)
	assert.Equal(t, schema.StatusPending, got.Status, "rejected calls must not write")
}

func TestConfirmPayment_ClearsGracePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.gw.SetStatus(ctx, f.principal(f.admin), SetStatusRequest{AccountID: f.member.AccountID.String(), Status: "pending"})
	require.NoError(t, err)
	before, _ := f.store.Get(ctx, f.member.AccountID)
	require.NotNil(t, before.GracePeriodUntil)

	res, err := f.gw.ConfirmPayment(ctx, f.principal(f.admin), ConfirmPaymentRequest{
		AccountID: f.member.AccountID.String(),
		PaidUntil: "2025-12-31",
		Note:      strPtr("bank transfer"),
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "2025-12-31")

	got, _ := f.store.Get(ctx, f.member.AccountID)
	assert.Equal(t, schema.StatusActive, got.Status)
	assert.Nil(t, got.GracePeriodUntil)
	require.NotNil(t, got.PaidUntil)
	assert.Equal(t, "2025-12-31", got.PaidUntil.Format("2006-01-02"))
	require.NotNil(t, got.LastPaymentAt)
	assert.Equal(t, fixedNow, *got.LastPaymentAt)
	assert.False(t, got.IsApproved, "payment confirmation leaves approval alone")
}

func TestConfirmPayment_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		principal *schema.Principal
		req       ConfirmPaymentRequest
		kind      Kind
	}{
		{"no principal", nil, ConfirmPaymentRequest{AccountID: f.member.AccountID.String(), PaidUntil: "2025-12-31"}, KindUnauthenticated},
		{"missing paidUntil", f.principal(f.admin), ConfirmPaymentRequest{AccountID: f.member.AccountID.String()}, KindInvalidRequest},
		{"bad paidUntil", f.principal(f.admin), ConfirmPaymentRequest{AccountID: f.member.AccountID.String(), PaidUntil: "31/12/2025"}, KindInvalidRequest},
		{"missing account", f.principal(f.admin), ConfirmPaymentRequest{PaidUntil: "2025-12-31"}, KindInvalidRequest},
		{"member principal", f.principal(f.member), ConfirmPaymentRequest{AccountID: f.member.AccountID.String(), PaidUntil: "2025-12-31"}, KindForbidden},
		{"admin target", f.principal(f.admin), ConfirmPaymentRequest{AccountID: f.admin.AccountID.String(), PaidUntil: "2025-12-31"}, KindForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.gw.ConfirmPayment(ctx, tt.principal, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, kindOf(t, err))
		})
	}
}

func TestGetProfileAndBanner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.gw.GetProfile(ctx, f.principal(f.member))
	require.NoError(t, err)
	assert.Equal(t, f.member.AccountID, p.AccountID)

	b, err := f.gw.Banner(ctx, f.principal(f.member))
	require.NoError(t, err)
	assert.Equal(t, schema.SeverityWarn, b.Severity)

	_, err = f.gw.GetProfile(ctx, &schema.Principal{AccountID: uuid.New()})
	assert.Equal(t, KindNotFound, kindOf(t, err))

	_, err = f.gw.GetProfile(ctx, nil)
	assert.Equal(t, KindUnauthenticated, kindOf(t, err))
}

func TestBanner_ExpiringSoon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paid := fixedNow.Add(3 * 24 * time.Hour)
	f.member.Status = schema.StatusActive
	f.member.PaidUntil = &paid
	require.NoError(t, f.store.Update(ctx, f.member))

	b, err := f.gw.Banner(ctx, f.principal(f.member))
	require.NoError(t, err)
	assert.Equal(t, schema.SeverityWarn, b.Severity)
	assert.Contains(t, b.Message, "3")
}

func TestListProfiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	all, err := f.gw.ListProfiles(ctx, f.principal(f.admin), "all")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := f.gw.ListProfiles(ctx, f.principal(f.admin), "suspended")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, f.member.AccountID, pending[0].AccountID)

	_, err = f.gw.ListProfiles(ctx, f.principal(f.admin), "weird")
	assert.Equal(t, KindInvalidRequest, kindOf(t, err))

	_, err = f.gw.ListProfiles(ctx, f.principal(f.member), "")
	assert.Equal(t, KindForbidden, kindOf(t, err))
}

// recordingStore counts writes and can fail them.
type recordingStore struct {
	engine.ProfileStore
	updates  atomic.Int32
	failWith error
}

func (r *recordingStore) Update(ctx context.Context, p schema.Profile) error {
	r.updates.Add(1)
	if r.failWith != nil {
		return r.failWith
	}
	return r.ProfileStore.Update(ctx, p)
}

func TestSetStatus_ExactlyOneWrite(t *testing.T) {
	f := newFixture(t)
	rec := &recordingStore{ProfileStore: f.store}
	gw := New(Options{Store: rec, Now: func() time.Time { return fixedNow }})

	_, err := gw.SetStatus(context.Background(), f.principal(f.admin), SetStatusRequest{
		AccountID: f.member.AccountID.String(),
		Status:    "deleted",
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), rec.updates.Load())
}

func TestSetStatus_PersistenceError(t *testing.T) {
	f := newFixture(t)
	rec := &recordingStore{ProfileStore: f.store, failWith: errors.New("connection reset by peer")}
	gw := New(Options{Store: rec, Now: func() time.Time { return fixedNow }})

	_, err := gw.SetStatus(context.Background(), f.principal(f.admin), SetStatusRequest{
		AccountID: f.member.AccountID.String(),
		Status:    "active",
	})
	require.Error(t, err)

	var gerr *Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, KindPersistence, gerr.Kind)
	assert.Equal(t, "operation failed", gerr.Message)
	assert.Equal(t, "connection reset by peer", gerr.Detail)
}

type failingReads struct {
	engine.ProfileStore
}

func (failingReads) Get(context.Context, uuid.UUID) (schema.Profile, error) {
	return schema.Profile{}, errors.New("read timeout")
}

func TestSetStatus_ReadFailureIsPersistenceError(t *testing.T) {
	f := newFixture(t)
	gw := New(Options{Store: failingReads{f.store}})

	_, err := gw.SetStatus(context.Background(), f.principal(f.admin), SetStatusRequest{
		AccountID: f.member.AccountID.String(),
		Status:    "active",
	})
	assert.Equal(t, KindPersistence, kindOf(t, err))
}

func TestElevatedStoreServesAdministration(t *testing.T) {
	f := newFixture(t)
	elevated := &recordingStore{ProfileStore: f.store}
	// The default store cannot read anything, as row-level rules would hide other accounts.
	gw := New(Options{Store: failingReads{f.store}, Elevated: elevated, Now: func() time.Time { return fixedNow }})

	_, err := gw.SetStatus(context.Background(), f.principal(f.admin), SetStatusRequest{
		AccountID: f.member.AccountID.String(),
		Status:    "active",
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), elevated.updates.Load())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-12-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("2025-12-31T18:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, 16, d.Hour())

	_, err = ParseDate("tomorrow")
	assert.Error(t, err)
}

func TestPublishFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.gw.Subscribe(ctx, f.principal(f.admin))
	require.NoError(t, err)
	defer sub.Cancel()

	res, err := f.gw.PublishFilter(ctx, f.principal(f.admin), "pending")
	require.NoError(t, err)
	assert.True(t, res.Success)

	select {
	case ev := <-sub.C:
		assert.Equal(t, "pending", ev.Filter)
	case <-time.After(time.Second):
		t.Fatal("no filter change delivered")
	}

	_, err = f.gw.PublishFilter(ctx, f.principal(f.admin), "everyone")
	assert.Equal(t, KindInvalidRequest, kindOf(t, err))

	_, err = f.gw.PublishFilter(ctx, f.principal(f.admin), "")
	assert.Equal(t, KindInvalidRequest, kindOf(t, err))

	_, err = f.gw.PublishFilter(ctx, f.principal(f.member), "all")
	assert.Equal(t, KindForbidden, kindOf(t, err))

	_, err = f.gw.Subscribe(ctx, f.principal(f.member))
	assert.Equal(t, KindForbidden, kindOf(t, err))

	_, err = f.gw.Subscribe(ctx, nil)
	assert.Equal(t, KindUnauthenticated, kindOf(t, err))
}
