package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"branchstock/internal/core/apperror"
	"branchstock/internal/core/id"
	"branchstock/internal/core/types"
	"branchstock/internal/domain/ledger"
	"branchstock/internal/domain/reservation"
	"branchstock/internal/domain/serial"
	"branchstock/internal/domain/variant"
	"branchstock/pkg/numerator"
)

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeRepo struct {
	transfers map[id.ID]*Transfer
	duplicate *Transfer
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{transfers: make(map[id.ID]*Transfer)}
}

func (r *fakeRepo) Create(_ context.Context, t *Transfer) error {
	r.transfers[t.ID] = t
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, transferID id.ID) (*Transfer, error) {
	t, ok := r.transfers[transferID]
	if !ok {
		return nil, apperror.NewNotFound("transfer", transferID)
	}
	copied := *t
	return &copied, nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, transferID id.ID, from, to Status, patch StatusPatch) error {
	t, ok := r.transfers[transferID]
	if !ok {
		return apperror.NewNotFound("transfer", transferID)
	}
	if t.Status != from {
		return apperror.NewInvalidState(transferID.String(), string(t.Status), string(from))
	}
	t.Status = to
	if patch.ReservationID != nil {
		t.ReservationID = patch.ReservationID
	}
	if patch.FailureReason != nil {
		t.FailureReason = patch.FailureReason
	}
	return nil
}

func (r *fakeRepo) FindActiveDuplicate(_ context.Context, _, _, _ id.ID, _ string, _ time.Time) (*Transfer, error) {
	if r.duplicate == nil {
		return nil, apperror.NewNotFound("transfer", "duplicate probe")
	}
	return r.duplicate, nil
}

func (r *fakeRepo) ListByBranch(_ context.Context, _ id.ID, _ ListFilter) ([]*Transfer, error) {
	return nil, nil
}

func (r *fakeRepo) ListByVariant(_ context.Context, _ id.ID, _ ListFilter) ([]*Transfer, error) {
	return nil, nil
}

func (r *fakeRepo) StatsByBranch(_ context.Context, branchID id.ID) (*Stats, error) {
	return &Stats{BranchID: branchID}, nil
}

type fakeBranches struct {
	err error
}

func (b *fakeBranches) ValidateTransferPair(_ context.Context, _, _ id.ID) error {
	return b.err
}

type fakeVariants struct {
	variants map[id.ID]*variant.Variant
}

func newFakeVariants(vs ...*variant.Variant) *fakeVariants {
	f := &fakeVariants{variants: make(map[id.ID]*variant.Variant)}
	for _, v := range vs {
		f.variants[v.ID] = v
	}
	return f
}

func (f *fakeVariants) GetVariant(_ context.Context, variantID id.ID) (*variant.Variant, error) {
	v, ok := f.variants[variantID]
	if !ok {
		return nil, apperror.NewNotFound("variant", variantID)
	}
	copied := *v
	return &copied, nil
}

func (f *fakeVariants) AdjustQuantity(_ context.Context, variantID id.ID, delta types.Quantity, _ int) error {
	v, ok := f.variants[variantID]
	if !ok {
		return apperror.NewNotFound("variant", variantID)
	}
	if v.OnHand+delta < 0 {
		return apperror.NewInsufficientStock(variantID.String(), delta.Abs().Float64(), v.OnHand.Float64())
	}
	v.OnHand += delta
	v.Version++
	return nil
}

func (f *fakeVariants) FindOrCreateAtBranch(_ context.Context, source *variant.Variant, branchID id.ID) (*variant.Variant, error) {
	for _, v := range f.variants {
		if v.BranchID != nil && *v.BranchID == branchID && v.ProductID == source.ProductID && v.Kind != variant.KindChild {
			copied := *v
			return &copied, nil
		}
	}
	created := variant.New(source.ProductID, &branchID, source.Name)
	created.Kind = source.Kind
	f.variants[created.ID] = created
	copied := *created
	return &copied, nil
}

type fakeSerials struct {
	units map[id.ID]*serial.Unit
}

func newFakeSerials(units ...*serial.Unit) *fakeSerials {
	f := &fakeSerials{units: make(map[id.ID]*serial.Unit)}
	for _, u := range units {
		f.units[u.ID] = u
	}
	return f
}

func (f *fakeSerials) GetUnit(_ context.Context, unitID id.ID) (*serial.Unit, error) {
	u, ok := f.units[unitID]
	if !ok {
		return nil, apperror.NewNotFound("serial unit", unitID)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeSerials) ActiveUnitCount(_ context.Context, parentVariantID id.ID) (int64, error) {
	var count int64
	for _, u := range f.units {
		if u.ParentVariantID == parentVariantID && u.IsActive() {
			count++
		}
	}
	return count, nil
}

func (f *fakeSerials) ChangeStatus(_ context.Context, unitID id.ID, from, to serial.Status) error {
	u, ok := f.units[unitID]
	if !ok {
		return apperror.NewNotFound("serial unit", unitID)
	}
	if u.Status != from || !serial.CanTransition(from, to) {
		return apperror.NewInvalidTransition(unitID.String(), string(from), string(to), string(u.Status))
	}
	u.Status = to
	return nil
}

func (f *fakeSerials) MoveUnits(_ context.Context, unitIDs []id.ID, branchID, parentVariantID id.ID) error {
	for _, unitID := range unitIDs {
		u, ok := f.units[unitID]
		if !ok {
			return apperror.NewNotFound("serial unit", unitID)
		}
		if u.Status != serial.StatusTransferred {
			return apperror.NewConflict("unit is no longer movable").
				WithDetail("unit_id", unitID.String())
		}
		u.BranchID = branchID
		u.ParentVariantID = parentVariantID
		u.Status = serial.StatusAvailable
	}
	return nil
}

type fakeReservations struct {
	holds    map[id.ID]*reservation.Reservation
	released []id.ID
}

func newFakeReservations() *fakeReservations {
	return &fakeReservations{holds: make(map[id.ID]*reservation.Reservation)}
}

func (f *fakeReservations) Reserve(_ context.Context, variantID, branchID id.ID, quantity types.Quantity, kind reservation.ReferenceKind, referenceID *id.ID) (*reservation.Reservation, error) {
	hold := &reservation.Reservation{
		ID:            id.New(),
		VariantID:     variantID,
		BranchID:      branchID,
		Quantity:      quantity,
		ReferenceKind: kind,
		ReferenceID:   referenceID,
	}
	f.holds[hold.ID] = hold
	return hold, nil
}

func (f *fakeReservations) Release(_ context.Context, reservationID id.ID) error {
	if _, ok := f.holds[reservationID]; !ok {
		return apperror.NewNotFound("reservation", reservationID)
	}
	delete(f.holds, reservationID)
	f.released = append(f.released, reservationID)
	return nil
}

func (f *fakeReservations) ReleaseByReference(_ context.Context, _ reservation.ReferenceKind, referenceID id.ID) (bool, error) {
	for holdID, hold := range f.holds {
		if hold.ReferenceID != nil && *hold.ReferenceID == referenceID {
			delete(f.holds, holdID)
			f.released = append(f.released, holdID)
			return true, nil
		}
	}
	return false, nil
}

type fakeLedger struct {
	entries   []*ledger.Entry
	appendErr error
}

func (f *fakeLedger) Append(_ context.Context, e *ledger.Entry) (*ledger.Entry, error) {
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	f.entries = append(f.entries, e)
	return e, nil
}

type fakeNumbers struct {
	n int
}

func (f *fakeNumbers) GetNextNumber(_ context.Context, cfg numerator.Config, _ *numerator.Options, _ time.Time) (string, error) {
	f.n++
	return cfg.Prefix + "-00001", nil
}

type fixture struct {
	svc          *Service
	repo         *fakeRepo
	variants     *fakeVariants
	serials      *fakeSerials
	reservations *fakeReservations
	entries      *fakeLedger

	sourceBranch id.ID
	destBranch   id.ID
	variant      *variant.Variant
}

func newFixture(t *testing.T, onHand int64) *fixture {
	t.Helper()

	sourceBranch := id.New()
	destBranch := id.New()

	v := variant.New(id.New(), &sourceBranch, "switch 24p")
	v.OnHand = types.NewQuantityFromInt(onHand)

	f := &fixture{
		repo:         newFakeRepo(),
		variants:     newFakeVariants(v),
		serials:      newFakeSerials(),
		reservations: newFakeReservations(),
		entries:      &fakeLedger{},
		sourceBranch: sourceBranch,
		destBranch:   destBranch,
		variant:      v,
	}
	f.svc = NewService(
		f.repo,
		&fakeBranches{},
		f.variants,
		f.serials,
		f.reservations,
		f.entries,
		&fakeNumbers{},
		fakeTxManager{},
		DefaultConfig(),
	)
	return f
}

func (f *fixture) request(t *testing.T, qty int64) *Transfer {
	t.Helper()
	tr, err := f.svc.Request(context.Background(), RequestInput{
		VariantID:    f.variant.ID,
		Quantity:     types.NewQuantityFromInt(qty),
		FromBranchID: f.sourceBranch,
		ToBranchID:   f.destBranch,
		RequestedBy:  "tester",
	})
	require.NoError(t, err)
	return tr
}

func TestRequest_AssignsNumberAndPending(t *testing.T) {
	f := newFixture(t, 10)

	tr := f.request(t, 3)

	assert.Equal(t, StatusPending, tr.Status)
	assert.Equal(t, "TRF-00001", tr.Number)
	assert.Equal(t, "tester", tr.RequestedBy)
}

func TestRequest_InsufficientStock(t *testing.T) {
	f := newFixture(t, 2)

	_, err := f.svc.Request(context.Background(), RequestInput{
		VariantID:    f.variant.ID,
		Quantity:     types.NewQuantityFromInt(5),
		FromBranchID: f.sourceBranch,
		ToBranchID:   f.destBranch,
		RequestedBy:  "tester",
	})

	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
}

func TestRequest_ReservedReducesAvailability(t *testing.T) {
	f := newFixture(t, 10)
	f.variant.Reserved = types.NewQuantityFromInt(8)

	_, err := f.svc.Request(context.Background(), RequestInput{
		VariantID:    f.variant.ID,
		Quantity:     types.NewQuantityFromInt(5),
		FromBranchID: f.sourceBranch,
		ToBranchID:   f.destBranch,
		RequestedBy:  "tester",
	})

	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
}

func TestRequest_DuplicateWindow(t *testing.T) {
	f := newFixture(t, 10)

	first := f.request(t, 3)
	f.repo.duplicate = first

	_, err := f.svc.Request(context.Background(), RequestInput{
		VariantID:    f.variant.ID,
		Quantity:     types.NewQuantityFromInt(3),
		FromBranchID: f.sourceBranch,
		ToBranchID:   f.destBranch,
		RequestedBy:  "tester",
	})

	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeDuplicateTransfer))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, first.ID.String(), appErr.Details["existing_transfer_id"])
}

func TestRequest_WrongSourceBranch(t *testing.T) {
	f := newFixture(t, 10)

	_, err := f.svc.Request(context.Background(), RequestInput{
		VariantID:    f.variant.ID,
		Quantity:     types.NewQuantityFromInt(1),
		FromBranchID: f.destBranch,
		ToBranchID:   f.sourceBranch,
		RequestedBy:  "tester",
	})

	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestApprove_RepeatFailsWithInvalidState(t *testing.T) {
	f := newFixture(t, 10)
	tr := f.request(t, 3)

	require.NoError(t, f.svc.Approve(context.Background(), tr.ID, "boss"))

	err := f.svc.Approve(context.Background(), tr.ID, "boss")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidState))
}

func TestMarkInTransit_HoldsQuantity(t *testing.T) {
	f := newFixture(t, 10)
	tr := f.request(t, 4)

	require.NoError(t, f.svc.Approve(context.Background(), tr.ID, "boss"))
	require.NoError(t, f.svc.MarkInTransit(context.Background(), tr.ID))

	stored, err := f.svc.GetTransfer(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInTransit, stored.Status)
	require.NotNil(t, stored.ReservationID)

	hold := f.reservations.holds[*stored.ReservationID]
	require.NotNil(t, hold)
	assert.Equal(t, types.NewQuantityFromInt(4), hold.Quantity)
}

func TestComplete_MovesStockAndWritesPairedEntries(t *testing.T) {
	f := newFixture(t, 10)
	tr := f.request(t, 4)

	ctx := context.Background()
	require.NoError(t, f.svc.Approve(ctx, tr.ID, "boss"))
	require.NoError(t, f.svc.MarkInTransit(ctx, tr.ID))
	require.NoError(t, f.svc.Complete(ctx, tr.ID, "receiver"))

	stored, err := f.svc.GetTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)

	source := f.variants.variants[f.variant.ID]
	assert.Equal(t, types.NewQuantityFromInt(6), source.OnHand)

	var dest *variant.Variant
	for _, v := range f.variants.variants {
		if v.BranchID != nil && *v.BranchID == f.destBranch {
			dest = v
		}
	}
	require.NotNil(t, dest)
	assert.Equal(t, types.NewQuantityFromInt(4), dest.OnHand)

	require.Len(t, f.entries.entries, 2)
	out, in := f.entries.entries[0], f.entries.entries[1]
	assert.Equal(t, ledger.EntryTransferOut, out.Type)
	assert.Equal(t, types.NewQuantityFromInt(-4), out.Quantity)
	assert.Equal(t, ledger.EntryTransferIn, in.Type)
	assert.Equal(t, types.NewQuantityFromInt(4), in.Quantity)

	assert.Empty(t, f.reservations.holds, "hold must be released on completion")
}

func TestComplete_BeforeInTransitFailsWithInvalidState(t *testing.T) {
	f := newFixture(t, 10)
	tr := f.request(t, 2)

	err := f.svc.Complete(context.Background(), tr.ID, "receiver")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidState))
}

func TestComplete_FailureMarksTransferFailedAndReleasesHold(t *testing.T) {
	f := newFixture(t, 10)
	tr := f.request(t, 4)

	ctx := context.Background()
	require.NoError(t, f.svc.Approve(ctx, tr.ID, "boss"))
	require.NoError(t, f.svc.MarkInTransit(ctx, tr.ID))

	f.entries.appendErr = errors.New("ledger unavailable")

	err := f.svc.Complete(ctx, tr.ID, "receiver")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeTransferFailed))

	stored, err := f.svc.GetTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	require.NotNil(t, stored.FailureReason)

	assert.Empty(t, f.reservations.holds, "hold must be released after the abort")
}

func TestCancel_PendingReleasesNothingAndSetsCancelled(t *testing.T) {
	f := newFixture(t, 10)
	tr := f.request(t, 2)

	reason := "no longer needed"
	require.NoError(t, f.svc.Cancel(context.Background(), tr.ID, &reason))

	stored, err := f.svc.GetTransfer(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)
}

func TestCancel_InTransitFailsWithInvalidState(t *testing.T) {
	f := newFixture(t, 10)
	tr := f.request(t, 2)

	ctx := context.Background()
	require.NoError(t, f.svc.Approve(ctx, tr.ID, "boss"))
	require.NoError(t, f.svc.MarkInTransit(ctx, tr.ID))

	err := f.svc.Cancel(ctx, tr.ID, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidState))
}

func TestSerializedTransfer_ValidatesAndMovesUnits(t *testing.T) {
	f := newFixture(t, 10)
	f.variant.Kind = variant.KindParent

	unitA := &serial.Unit{ID: id.New(), ParentVariantID: f.variant.ID, Serial: "IMEI-1", Status: serial.StatusAvailable, BranchID: f.sourceBranch}
	unitB := &serial.Unit{ID: id.New(), ParentVariantID: f.variant.ID, Serial: "IMEI-2", Status: serial.StatusAvailable, BranchID: f.sourceBranch}
	f.serials.units[unitA.ID] = unitA
	f.serials.units[unitB.ID] = unitB

	ctx := context.Background()
	tr, err := f.svc.Request(ctx, RequestInput{
		VariantID:     f.variant.ID,
		SerialUnitIDs: []id.ID{unitA.ID, unitB.ID},
		FromBranchID:  f.sourceBranch,
		ToBranchID:    f.destBranch,
		RequestedBy:   "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(2), tr.Quantity)

	require.NoError(t, f.svc.Approve(ctx, tr.ID, "boss"))
	require.NoError(t, f.svc.MarkInTransit(ctx, tr.ID))

	assert.Equal(t, serial.StatusTransferred, f.serials.units[unitA.ID].Status)
	assert.Equal(t, serial.StatusTransferred, f.serials.units[unitB.ID].Status)

	require.NoError(t, f.svc.Complete(ctx, tr.ID, "receiver"))

	assert.Equal(t, f.destBranch, f.serials.units[unitA.ID].BranchID)
	assert.Equal(t, f.destBranch, f.serials.units[unitB.ID].BranchID)
	assert.Equal(t, serial.StatusAvailable, f.serials.units[unitA.ID].Status)
}

func (f *fixture) destVariant(t *testing.T) *variant.Variant {
	t.Helper()
	for _, v := range f.variants.variants {
		if v.BranchID != nil && *v.BranchID == f.destBranch {
			return v
		}
	}
	t.Fatal("no variant at destination branch")
	return nil
}

func TestSerializedTransfer_ReparentsUnitsAtDestination(t *testing.T) {
	f := newFixture(t, 2)
	f.variant.Kind = variant.KindParent

	unitA := &serial.Unit{ID: id.New(), ParentVariantID: f.variant.ID, Serial: "IMEI-1", Status: serial.StatusAvailable, BranchID: f.sourceBranch}
	unitB := &serial.Unit{ID: id.New(), ParentVariantID: f.variant.ID, Serial: "IMEI-2", Status: serial.StatusAvailable, BranchID: f.sourceBranch}
	f.serials.units[unitA.ID] = unitA
	f.serials.units[unitB.ID] = unitB

	ctx := context.Background()
	tr, err := f.svc.Request(ctx, RequestInput{
		VariantID:     f.variant.ID,
		SerialUnitIDs: []id.ID{unitA.ID, unitB.ID},
		FromBranchID:  f.sourceBranch,
		ToBranchID:    f.destBranch,
		RequestedBy:   "tester",
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.Approve(ctx, tr.ID, "boss"))
	require.NoError(t, f.svc.MarkInTransit(ctx, tr.ID))
	require.NoError(t, f.svc.Complete(ctx, tr.ID, "receiver"))

	dest := f.destVariant(t)
	assert.Equal(t, dest.ID, f.serials.units[unitA.ID].ParentVariantID)
	assert.Equal(t, dest.ID, f.serials.units[unitB.ID].ParentVariantID)

	// Parent on-hand must keep matching the active-children count on
	// both sides of the move
	sourceActive, err := f.serials.ActiveUnitCount(ctx, f.variant.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, sourceActive)
	assert.Equal(t, types.NewQuantityFromInt(0), f.variants.variants[f.variant.ID].OnHand)

	destActive, err := f.serials.ActiveUnitCount(ctx, dest.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, destActive)
	assert.Equal(t, types.NewQuantityFromInt(2), dest.OnHand)
}

func TestComplete_SoldUnitAbortsSerializedTransfer(t *testing.T) {
	f := newFixture(t, 1)
	f.variant.Kind = variant.KindParent

	unit := &serial.Unit{ID: id.New(), ParentVariantID: f.variant.ID, Serial: "IMEI-1", Status: serial.StatusAvailable, BranchID: f.sourceBranch}
	f.serials.units[unit.ID] = unit

	ctx := context.Background()
	tr, err := f.svc.Request(ctx, RequestInput{
		VariantID:     f.variant.ID,
		SerialUnitIDs: []id.ID{unit.ID},
		FromBranchID:  f.sourceBranch,
		ToBranchID:    f.destBranch,
		RequestedBy:   "tester",
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.Approve(ctx, tr.ID, "boss"))
	require.NoError(t, f.svc.MarkInTransit(ctx, tr.ID))

	// Simulate a write that slipped past the guarded transition while
	// the transfer was on the road
	unit.Status = serial.StatusSold

	err = f.svc.Complete(ctx, tr.ID, "receiver")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeTransferFailed))

	stored, err := f.svc.GetTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)

	assert.Equal(t, serial.StatusSold, unit.Status, "a sold unit must never resurface as available")
	assert.Equal(t, f.sourceBranch, unit.BranchID)
}

func TestSaleDuringTransitFailsGuardedTransition(t *testing.T) {
	f := newFixture(t, 1)
	f.variant.Kind = variant.KindParent

	unit := &serial.Unit{ID: id.New(), ParentVariantID: f.variant.ID, Serial: "IMEI-1", Status: serial.StatusAvailable, BranchID: f.sourceBranch}
	f.serials.units[unit.ID] = unit

	ctx := context.Background()
	tr, err := f.svc.Request(ctx, RequestInput{
		VariantID:     f.variant.ID,
		SerialUnitIDs: []id.ID{unit.ID},
		FromBranchID:  f.sourceBranch,
		ToBranchID:    f.destBranch,
		RequestedBy:   "tester",
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.Approve(ctx, tr.ID, "boss"))
	require.NoError(t, f.svc.MarkInTransit(ctx, tr.ID))

	err = f.serials.ChangeStatus(ctx, unit.ID, serial.StatusAvailable, serial.StatusSold)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition))
	assert.Equal(t, serial.StatusTransferred, unit.Status)
}

func TestRoundTrip_RestoresBothBranches(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	out := f.request(t, 4)
	require.NoError(t, f.svc.Approve(ctx, out.ID, "boss"))
	require.NoError(t, f.svc.MarkInTransit(ctx, out.ID))
	require.NoError(t, f.svc.Complete(ctx, out.ID, "receiver"))

	dest := f.destVariant(t)

	back, err := f.svc.Request(ctx, RequestInput{
		VariantID:    dest.ID,
		Quantity:     types.NewQuantityFromInt(4),
		FromBranchID: f.destBranch,
		ToBranchID:   f.sourceBranch,
		RequestedBy:  "tester",
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.Approve(ctx, back.ID, "boss"))
	require.NoError(t, f.svc.MarkInTransit(ctx, back.ID))
	require.NoError(t, f.svc.Complete(ctx, back.ID, "receiver"))

	assert.Equal(t, types.NewQuantityFromInt(10), f.variants.variants[f.variant.ID].OnHand)
	assert.Equal(t, types.NewQuantityFromInt(0), f.variants.variants[dest.ID].OnHand)
	assert.Empty(t, f.reservations.holds)
	require.Len(t, f.entries.entries, 4)
}

func TestSerializedTransfer_RejectsUnitAtWrongBranch(t *testing.T) {
	f := newFixture(t, 10)
	f.variant.Kind = variant.KindParent

	elsewhere := id.New()
	unit := &serial.Unit{ID: id.New(), ParentVariantID: f.variant.ID, Serial: "IMEI-9", Status: serial.StatusAvailable, BranchID: elsewhere}
	f.serials.units[unit.ID] = unit

	_, err := f.svc.Request(context.Background(), RequestInput{
		VariantID:     f.variant.ID,
		SerialUnitIDs: []id.ID{unit.ID},
		FromBranchID:  f.sourceBranch,
		ToBranchID:    f.destBranch,
		RequestedBy:   "tester",
	})

	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestParentAvailability_BackedByActiveChildren(t *testing.T) {
	f := newFixture(t, 10)
	f.variant.Kind = variant.KindParent

	// only one active unit despite the cached quantity
	unit := &serial.Unit{ID: id.New(), ParentVariantID: f.variant.ID, Serial: "IMEI-1", Status: serial.StatusAvailable, BranchID: f.sourceBranch}
	f.serials.units[unit.ID] = unit

	_, err := f.svc.Request(context.Background(), RequestInput{
		VariantID:    f.variant.ID,
		Quantity:     types.NewQuantityFromInt(3),
		FromBranchID: f.sourceBranch,
		ToBranchID:   f.destBranch,
		RequestedBy:  "tester",
	})

	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
}

func TestFail_OnlyFromInTransit(t *testing.T) {
	f := newFixture(t, 10)
	tr := f.request(t, 2)

	err := f.svc.Fail(context.Background(), tr.ID, "reservation expired")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidState))
}
