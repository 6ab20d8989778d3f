package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProcessor returns a fixed result per charge, in order. Once the
// script runs out it approves everything.
type scriptedProcessor struct {
	results []error
	calls   int
}

func (p *scriptedProcessor) Charge(_ context.Context, _ string, _ int64, _ string) error {
	p.calls++
	if p.calls <= len(p.results) {
		return p.results[p.calls-1]
	}
	return nil
}

// failingHistory rejects snapshot writes while err is set and otherwise
// behaves like the in-memory store.
type failingHistory struct {
	*MemoryHistoryStore
	err error
}

func (f *failingHistory) Create(ctx context.Context, h *UsageHistory) error {
	if f.err != nil {
		return f.err
	}
	return f.MemoryHistoryStore.Create(ctx, h)
}

func newTestService(payments PaymentProcessor) (*Service, *MemoryStore, *MemoryHistoryStore) {
	store := NewMemoryStore()
	history := NewMemoryHistoryStore()
	if payments == nil {
		payments = &scriptedProcessor{}
	}
	svc := NewService(store, history, payments, nil)
	return svc, store, history
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(nil)
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	b, err := svc.Create(ctx, CreateRequest{UserID: "usr_1", Type: TypePro, Cycle: CycleMonthly})
	require.NoError(t, err)

	assert.Equal(t, "usr_1", b.UserID)
	assert.Equal(t, 100, b.MaxMessages)
	assert.Equal(t, 0, b.MessagesUsed)
	assert.Equal(t, int64(2999), b.PriceCents)
	assert.Equal(t, now, b.StartDate)
	assert.Equal(t, now.AddDate(0, 1, 0), b.EndDate)
	assert.Equal(t, b.EndDate, b.RenewalDate)
	assert.True(t, b.AutoRenew)
	assert.True(t, b.IsActive)
}

func TestService_Create_AutoRenewOff(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(nil)

	off := false
	b, err := svc.Create(ctx, CreateRequest{
		UserID: "usr_1", Type: TypeBasic, Cycle: CycleYearly, AutoRenew: &off,
	})
	require.NoError(t, err)
	assert.False(t, b.AutoRenew)
	assert.Equal(t, int64(9999), b.PriceCents)
}

func TestService_Create_Invalid(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(nil)

	_, err := svc.Create(ctx, CreateRequest{UserID: "usr_1", Type: "Platinum", Cycle: CycleMonthly})
	assert.ErrorIs(t, err, ErrInvalidBundleType)

	_, err = svc.Create(ctx, CreateRequest{UserID: "usr_1", Type: TypeBasic, Cycle: "weekly"})
	assert.ErrorIs(t, err, ErrInvalidBillingCycle)
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()
	svc, store, history := newTestService(nil)
	start := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	b, err := svc.Create(ctx, CreateRequest{UserID: "usr_1", Type: TypeBasic, Cycle: CycleMonthly})
	require.NoError(t, err)
	require.NoError(t, store.IncrementUsage(ctx, b.ID))
	require.NoError(t, store.IncrementUsage(ctx, b.ID))

	cancelAt := start.AddDate(0, 0, 10)
	svc.now = func() time.Time { return cancelAt }

	got, err := svc.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, got.AutoRenew)
	assert.True(t, got.IsActive, "cancel keeps the bundle active until expiry")

	entries, err := history.ListByBundle(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].MessagesCount)
	assert.Equal(t, start, entries[0].PeriodStart)
	assert.Equal(t, cancelAt, entries[0].PeriodEnd)

	_, err = svc.Cancel(ctx, "sub_missing")
	assert.ErrorIs(t, err, ErrBundleNotFound)
}

func TestService_Cancel_SnapshotWriteFails(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	history := &failingHistory{
		MemoryHistoryStore: NewMemoryHistoryStore(),
		err:                errors.New("history store down"),
	}
	svc := NewService(store, history, &scriptedProcessor{}, nil)

	b, err := svc.Create(ctx, CreateRequest{UserID: "usr_1", Type: TypeBasic, Cycle: CycleMonthly})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, b.ID)
	require.ErrorIs(t, err, history.err, "a lost snapshot must fail the cancel")

	entries, herr := history.ListByBundle(ctx, b.ID)
	require.NoError(t, herr)
	assert.Empty(t, entries)
}

func TestService_Cancel_Inactive(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(nil)

	b := newTestBundle("sub_1", "usr_1", TypeBasic, CycleMonthly)
	b.IsActive = false
	require.NoError(t, store.Create(ctx, b))

	_, err := svc.Cancel(ctx, "sub_1")
	assert.ErrorIs(t, err, ErrInactiveBundle)
}

func TestService_ToggleAutoRenew(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(nil)

	b, err := svc.Create(ctx, CreateRequest{UserID: "usr_1", Type: TypeBasic, Cycle: CycleMonthly})
	require.NoError(t, err)

	got, err := svc.ToggleAutoRenew(ctx, b.ID, false)
	require.NoError(t, err)
	assert.False(t, got.AutoRenew)

	got, err = svc.ToggleAutoRenew(ctx, b.ID, true)
	require.NoError(t, err)
	assert.True(t, got.AutoRenew)

	inactive := newTestBundle("sub_off", "usr_1", TypeBasic, CycleMonthly)
	inactive.IsActive = false
	require.NoError(t, store.Create(ctx, inactive))
	_, err = svc.ToggleAutoRenew(ctx, "sub_off", true)
	assert.ErrorIs(t, err, ErrInactiveBundle)
}

func TestService_ProcessRenewals_Success(t *testing.T) {
	ctx := context.Background()
	proc := &scriptedProcessor{}
	svc, store, history := newTestService(proc)

	start := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }
	b, err := svc.Create(ctx, CreateRequest{UserID: "usr_1", Type: TypeBasic, Cycle: CycleMonthly})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, store.IncrementUsage(ctx, b.ID))
	}

	// Past the period end: the scan should renew.
	scanAt := start.AddDate(0, 1, 1)
	svc.now = func() time.Time { return scanAt }

	renewed, deactivated, err := svc.ProcessRenewals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, renewed)
	assert.Equal(t, 0, deactivated)
	assert.Equal(t, 1, proc.calls)

	got, err := store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Equal(t, 0, got.MessagesUsed, "usage resets on renewal")
	assert.Equal(t, b.EndDate, got.StartDate, "new period starts where the old one ended")
	assert.Equal(t, b.EndDate.AddDate(0, 1, 0), got.EndDate)
	assert.Equal(t, got.EndDate, got.RenewalDate)

	entries, err := history.ListByBundle(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 4, entries[0].MessagesCount)
	assert.Equal(t, b.StartDate, entries[0].PeriodStart)
	assert.Equal(t, b.EndDate, entries[0].PeriodEnd)
}

func TestService_ProcessRenewals_PaymentDeclined(t *testing.T) {
	ctx := context.Background()
	proc := &scriptedProcessor{results: []error{ErrPaymentDeclined}}
	svc, store, history := newTestService(proc)

	start := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }
	b, err := svc.Create(ctx, CreateRequest{UserID: "usr_1", Type: TypePro, Cycle: CycleMonthly})
	require.NoError(t, err)

	svc.now = func() time.Time { return start.AddDate(0, 1, 1) }

	renewed, deactivated, err := svc.ProcessRenewals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, renewed)
	assert.Equal(t, 1, deactivated)

	got, err := store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, b.StartDate, got.StartDate, "dates untouched on declined payment")
	assert.Equal(t, b.EndDate, got.EndDate)

	entries, err := history.ListByBundle(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, entries, "no snapshot on failed renewal")

	// Deactivated bundles never come back.
	renewed, deactivated, err = svc.ProcessRenewals(ctx)
	require.NoError(t, err)
	assert.Zero(t, renewed)
	assert.Zero(t, deactivated)
}

func TestService_ProcessRenewals_MixedOutcomes(t *testing.T) {
	ctx := context.Background()
	proc := &scriptedProcessor{results: []error{nil, ErrPaymentDeclined}}
	svc, store, _ := newTestService(proc)

	start := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }
	_, err := svc.Create(ctx, CreateRequest{UserID: "usr_1", Type: TypeBasic, Cycle: CycleMonthly})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateRequest{UserID: "usr_2", Type: TypePro, Cycle: CycleMonthly})
	require.NoError(t, err)

	svc.now = func() time.Time { return start.AddDate(0, 1, 1) }

	renewed, deactivated, err := svc.ProcessRenewals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, renewed)
	assert.Equal(t, 1, deactivated)

	active := 0
	all, err := store.ListExpiredAutoRenewing(ctx, svc.now().AddDate(10, 0, 0))
	require.NoError(t, err)
	for _, b := range all {
		if b.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestService_ProcessRenewals_ErrorDoesNotAbortScan(t *testing.T) {
	ctx := context.Background()
	proc := &scriptedProcessor{results: []error{errors.New("gateway timeout"), nil}}
	svc, store, _ := newTestService(proc)

	start := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"sub_a", "sub_b"} {
		b := newTestBundle(id, "usr_"+id, TypeBasic, CycleMonthly)
		b.StartDate = start
		b.EndDate = start.AddDate(0, 1, 0)
		b.RenewalDate = b.EndDate
		require.NoError(t, store.Create(ctx, b))
		require.NoError(t, store.IncrementUsage(ctx, id))
	}

	svc.now = func() time.Time { return start.AddDate(0, 1, 1) }

	// Bundles are scanned in ID order: sub_a hits the processor outage,
	// sub_b must still be processed.
	renewed, deactivated, err := svc.ProcessRenewals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, renewed)
	assert.Equal(t, 0, deactivated)
	assert.Equal(t, 2, proc.calls)

	errored, err := store.Get(ctx, "sub_a")
	require.NoError(t, err)
	assert.True(t, errored.IsActive)
	assert.Equal(t, start.AddDate(0, 1, 0), errored.EndDate, "errored bundle is not rolled")
	assert.Equal(t, 1, errored.MessagesUsed)

	rolled, err := store.Get(ctx, "sub_b")
	require.NoError(t, err)
	assert.True(t, rolled.IsActive)
	assert.Equal(t, 0, rolled.MessagesUsed)
	assert.Equal(t, start.AddDate(0, 2, 0), rolled.EndDate)

	// The errored bundle is still due and renews on the next scan.
	renewed, deactivated, err = svc.ProcessRenewals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, renewed)
	assert.Equal(t, 0, deactivated)
}

func TestService_ProcessRenewals_SnapshotErrorLeavesBundleDue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	history := &failingHistory{
		MemoryHistoryStore: NewMemoryHistoryStore(),
		err:                errors.New("history store down"),
	}
	proc := &scriptedProcessor{}
	svc := NewService(store, history, proc, nil)

	start := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }
	b, err := svc.Create(ctx, CreateRequest{UserID: "usr_1", Type: TypeBasic, Cycle: CycleMonthly})
	require.NoError(t, err)
	require.NoError(t, store.IncrementUsage(ctx, b.ID))

	svc.now = func() time.Time { return start.AddDate(0, 1, 1) }

	renewed, deactivated, err := svc.ProcessRenewals(ctx)
	require.NoError(t, err)
	assert.Zero(t, renewed)
	assert.Zero(t, deactivated)

	got, err := store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Equal(t, b.EndDate, got.EndDate, "rollover aborted on lost snapshot")
	assert.Equal(t, 1, got.MessagesUsed)

	// Once the history store recovers, the next scan completes the renewal.
	history.err = nil
	renewed, _, err = svc.ProcessRenewals(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, renewed)

	entries, err := history.ListByBundle(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].MessagesCount)
}

func TestService_ProcessRenewals_NotDue(t *testing.T) {
	ctx := context.Background()
	proc := &scriptedProcessor{}
	svc, _, _ := newTestService(proc)

	_, err := svc.Create(ctx, CreateRequest{UserID: "usr_1", Type: TypeBasic, Cycle: CycleYearly})
	require.NoError(t, err)

	renewed, deactivated, err := svc.ProcessRenewals(ctx)
	require.NoError(t, err)
	assert.Zero(t, renewed)
	assert.Zero(t, deactivated)
	assert.Zero(t, proc.calls)
}

func TestService_ProcessRenewals_EnterpriseCeilingRestored(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(nil)

	start := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }
	b, err := svc.Create(ctx, CreateRequest{UserID: "usr_1", Type: TypeEnterprise, Cycle: CycleMonthly})
	require.NoError(t, err)
	require.NoError(t, store.IncrementUsage(ctx, b.ID))

	svc.now = func() time.Time { return start.AddDate(0, 1, 1) }
	renewed, _, err := svc.ProcessRenewals(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, renewed)

	got, err := store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, EnterpriseMaxMessages, got.MaxMessages)
	assert.Equal(t, 0, got.MessagesUsed)
}

func TestSimulatedProcessor(t *testing.T) {
	ctx := context.Background()

	never := NewSimulatedProcessor(0, 1)
	for i := 0; i < 50; i++ {
		assert.NoError(t, never.Charge(ctx, "usr_1", 999, "test"))
	}

	almostAlways := NewSimulatedProcessor(0.99, 1)
	declined := 0
	for i := 0; i < 200; i++ {
		if err := almostAlways.Charge(ctx, "usr_1", 999, "test"); err != nil {
			assert.ErrorIs(t, err, ErrPaymentDeclined)
			declined++
		}
	}
	assert.Greater(t, declined, 150)
}
