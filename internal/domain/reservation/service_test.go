package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"branchstock/internal/core/apperror"
	"branchstock/internal/core/id"
	"branchstock/internal/core/types"
)

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeRepo keeps per-variant counters and applies the same conditional
// semantics the SQL implementation enforces.
type fakeRepo struct {
	onHand   map[id.ID]types.Quantity
	reserved map[id.ID]types.Quantity
	holds    map[id.ID]*Reservation
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		onHand:   make(map[id.ID]types.Quantity),
		reserved: make(map[id.ID]types.Quantity),
		holds:    make(map[id.ID]*Reservation),
	}
}

func (r *fakeRepo) ReserveQuantity(_ context.Context, variantID id.ID, quantity types.Quantity) error {
	if r.onHand[variantID]-r.reserved[variantID] < quantity {
		return apperror.NewInsufficientStock(
			variantID.String(), quantity.Float64(),
			(r.onHand[variantID] - r.reserved[variantID]).Float64(),
		)
	}
	r.reserved[variantID] += quantity
	return nil
}

func (r *fakeRepo) ReleaseQuantity(_ context.Context, variantID id.ID, quantity types.Quantity) error {
	if r.reserved[variantID] < quantity {
		return apperror.NewOverRelease(variantID.String(), quantity.Float64())
	}
	r.reserved[variantID] -= quantity
	return nil
}

func (r *fakeRepo) Create(_ context.Context, hold *Reservation) error {
	copied := *hold
	r.holds[hold.ID] = &copied
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, reservationID id.ID) (*Reservation, error) {
	hold, ok := r.holds[reservationID]
	if !ok {
		return nil, apperror.NewNotFound("reservation", reservationID)
	}
	copied := *hold
	return &copied, nil
}

func (r *fakeRepo) GetActiveByReference(_ context.Context, kind ReferenceKind, referenceID id.ID) (*Reservation, error) {
	for _, hold := range r.holds {
		if hold.ReferenceKind == kind && hold.ReferenceID != nil && *hold.ReferenceID == referenceID && !hold.IsReleased() {
			copied := *hold
			return &copied, nil
		}
	}
	return nil, apperror.NewNotFound("reservation", referenceID)
}

func (r *fakeRepo) MarkReleased(_ context.Context, reservationID id.ID, at time.Time) error {
	hold, ok := r.holds[reservationID]
	if !ok {
		return apperror.NewNotFound("reservation", reservationID)
	}
	if hold.IsReleased() {
		return apperror.NewConflict("reservation already released")
	}
	hold.ReleasedAt = &at
	return nil
}

func (r *fakeRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]*Reservation, error) {
	var expired []*Reservation
	for _, hold := range r.holds {
		if !hold.IsReleased() && hold.ExpiresAt.Before(now) {
			copied := *hold
			expired = append(expired, &copied)
		}
		if len(expired) >= limit {
			break
		}
	}
	return expired, nil
}

func newService(repo *fakeRepo) *Service {
	return NewService(repo, fakeTxManager{}, DefaultConfig())
}

func TestReserve_HoldsQuantityWithTTL(t *testing.T) {
	repo := newFakeRepo()
	variantID := id.New()
	repo.onHand[variantID] = types.NewQuantityFromInt(10)

	svc := newService(repo)
	hold, err := svc.Reserve(context.Background(), variantID, id.New(), types.NewQuantityFromInt(4), RefTransfer, nil)
	require.NoError(t, err)

	assert.Equal(t, types.NewQuantityFromInt(4), repo.reserved[variantID])
	assert.True(t, hold.ExpiresAt.After(time.Now()))
}

func TestReserve_CannotExceedAvailable(t *testing.T) {
	repo := newFakeRepo()
	variantID := id.New()
	repo.onHand[variantID] = types.NewQuantityFromInt(10)
	repo.reserved[variantID] = types.NewQuantityFromInt(8)

	svc := newService(repo)
	_, err := svc.Reserve(context.Background(), variantID, id.New(), types.NewQuantityFromInt(5), RefSale, nil)

	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
	assert.Equal(t, types.NewQuantityFromInt(8), repo.reserved[variantID], "failed reserve must not move the counter")
}

func TestReserve_RejectsNonPositiveQuantity(t *testing.T) {
	svc := newService(newFakeRepo())

	_, err := svc.Reserve(context.Background(), id.New(), id.New(), types.NewQuantityFromInt(0), RefSale, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestRelease_ReturnsQuantityOnce(t *testing.T) {
	repo := newFakeRepo()
	variantID := id.New()
	repo.onHand[variantID] = types.NewQuantityFromInt(10)

	svc := newService(repo)
	hold, err := svc.Reserve(context.Background(), variantID, id.New(), types.NewQuantityFromInt(3), RefTransfer, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Release(context.Background(), hold.ID))
	assert.True(t, repo.reserved[variantID].IsZero())

	err = svc.Release(context.Background(), hold.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeOverRelease))
	assert.True(t, repo.reserved[variantID].IsZero(), "double release must not move the counter")
}

func TestReleaseByReference(t *testing.T) {
	repo := newFakeRepo()
	variantID := id.New()
	repo.onHand[variantID] = types.NewQuantityFromInt(10)

	transferID := id.New()
	svc := newService(repo)
	_, err := svc.Reserve(context.Background(), variantID, id.New(), types.NewQuantityFromInt(2), RefTransfer, &transferID)
	require.NoError(t, err)

	released, err := svc.ReleaseByReference(context.Background(), RefTransfer, transferID)
	require.NoError(t, err)
	assert.True(t, released)

	// no active hold left for the reference
	released, err = svc.ReleaseByReference(context.Background(), RefTransfer, transferID)
	require.NoError(t, err)
	assert.False(t, released)
}

func TestSweepExpired_ReleasesOnlyExpiredHolds(t *testing.T) {
	repo := newFakeRepo()
	variantID := id.New()
	repo.onHand[variantID] = types.NewQuantityFromInt(10)

	svc := newService(repo)

	expired, err := svc.Reserve(context.Background(), variantID, id.New(), types.NewQuantityFromInt(2), RefTransfer, nil)
	require.NoError(t, err)
	repo.holds[expired.ID].ExpiresAt = time.Now().Add(-time.Minute)

	fresh, err := svc.Reserve(context.Background(), variantID, id.New(), types.NewQuantityFromInt(3), RefTransfer, nil)
	require.NoError(t, err)

	released, err := svc.SweepExpired(context.Background(), time.Now().UTC())
	require.NoError(t, err)

	require.Len(t, released, 1)
	assert.Equal(t, expired.ID, released[0].ID)
	assert.Equal(t, types.NewQuantityFromInt(3), repo.reserved[variantID])
	assert.False(t, repo.holds[fresh.ID].IsReleased())
}
