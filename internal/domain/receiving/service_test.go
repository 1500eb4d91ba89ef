package receiving

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"branchstock/internal/core/apperror"
	"branchstock/internal/core/id"
	"branchstock/internal/core/types"
	"branchstock/internal/domain/ledger"
	"branchstock/internal/domain/serial"
	"branchstock/internal/domain/variant"
)

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeRepo struct {
	lines  map[id.ID]*Line
	orders map[id.ID]*OrderInfo
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		lines:  make(map[id.ID]*Line),
		orders: make(map[id.ID]*OrderInfo),
	}
}

func (r *fakeRepo) GetLine(_ context.Context, lineID id.ID) (*Line, error) {
	line, ok := r.lines[lineID]
	if !ok {
		return nil, apperror.NewNotFound("purchase order line", lineID)
	}
	copied := *line
	return &copied, nil
}

func (r *fakeRepo) GetLineForUpdate(ctx context.Context, lineID id.ID) (*Line, error) {
	return r.GetLine(ctx, lineID)
}

func (r *fakeRepo) UpdateLineReceived(_ context.Context, lineID id.ID, received types.Quantity, status LineStatus) error {
	line, ok := r.lines[lineID]
	if !ok {
		return apperror.NewNotFound("purchase order line", lineID)
	}
	line.QuantityReceived = received
	line.Status = status
	return nil
}

func (r *fakeRepo) ListLinesByOrder(_ context.Context, orderID id.ID) ([]*Line, error) {
	var lines []*Line
	for _, line := range r.lines {
		if line.OrderID == orderID {
			copied := *line
			lines = append(lines, &copied)
		}
	}
	return lines, nil
}

func (r *fakeRepo) GetOrderInfo(_ context.Context, orderID id.ID) (*OrderInfo, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("purchase order", orderID)
	}
	copied := *order
	return &copied, nil
}

func (r *fakeRepo) UpdateOrderStatus(_ context.Context, orderID id.ID, status OrderStatus) error {
	order, ok := r.orders[orderID]
	if !ok {
		return apperror.NewNotFound("purchase order", orderID)
	}
	order.Status = status
	return nil
}

type fakeSerials struct {
	seen  map[string]bool
	units []*serial.Unit
}

func newFakeSerials() *fakeSerials {
	return &fakeSerials{seen: make(map[string]bool)}
}

func (f *fakeSerials) RegisterUnit(_ context.Context, parentVariantID id.ID, input serial.RegisterInput) (*serial.Unit, error) {
	if f.seen[input.Serial] {
		return nil, apperror.NewDuplicateSerial(input.Serial)
	}
	f.seen[input.Serial] = true

	unit := &serial.Unit{
		ID:              id.New(),
		ParentVariantID: parentVariantID,
		Serial:          input.Serial,
		Status:          serial.StatusAvailable,
		BranchID:        input.BranchID,
		SourceKind:      input.SourceKind,
		SourceID:        input.SourceID,
	}
	f.units = append(f.units, unit)
	return unit, nil
}

type fakeVariants struct {
	variants map[id.ID]*variant.Variant
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
	v.OnHand += delta
	v.Version++
	return nil
}

type fakeLedger struct {
	entries []*ledger.Entry
}

func (f *fakeLedger) Append(_ context.Context, e *ledger.Entry) (*ledger.Entry, error) {
	f.entries = append(f.entries, e)
	return e, nil
}

func (f *fakeLedger) AppendBatch(_ context.Context, entries []*ledger.Entry) error {
	f.entries = append(f.entries, entries...)
	return nil
}

type fixture struct {
	svc      *Service
	repo     *fakeRepo
	serials  *fakeSerials
	variants *fakeVariants
	entries  *fakeLedger

	line    *Line
	orderID id.ID
}

func newFixture(t *testing.T, ordered int64) *fixture {
	t.Helper()

	branchID := id.New()
	v := variant.New(id.New(), &branchID, "router ax1800")

	orderID := id.New()
	line := &Line{
		ID:              id.New(),
		OrderID:         orderID,
		VariantID:       v.ID,
		BranchID:        branchID,
		QuantityOrdered: types.NewQuantityFromInt(ordered),
		Status:          LinePending,
	}

	repo := newFakeRepo()
	repo.lines[line.ID] = line
	repo.orders[orderID] = &OrderInfo{ID: orderID, Status: OrderOpen, PaymentStatus: "unpaid"}

	f := &fixture{
		repo:     repo,
		serials:  newFakeSerials(),
		variants: &fakeVariants{variants: map[id.ID]*variant.Variant{v.ID: v}},
		entries:  &fakeLedger{},
		line:     line,
		orderID:  orderID,
	}

	svc, err := NewService(f.repo, f.serials, f.variants, f.entries, fakeTxManager{}, Config{})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func serialInputs(serials ...string) []SerialInput {
	inputs := make([]SerialInput, 0, len(serials))
	for _, s := range serials {
		inputs = append(inputs, SerialInput{Serial: s})
	}
	return inputs
}

func TestReceiveLine_MixedSerializedAndRemainder(t *testing.T) {
	f := newFixture(t, 10)

	result, err := f.svc.ReceiveLine(context.Background(), f.line.ID,
		types.NewQuantityFromInt(3), serialInputs("IMEI-1", "IMEI-2"))
	require.NoError(t, err)

	assert.Equal(t, types.NewQuantityFromInt(3), result.Line.QuantityReceived)
	assert.Equal(t, LinePartialReceived, result.Line.Status)
	assert.Equal(t, OrderPartialReceived, result.OrderStatus)
	assert.Len(t, result.CreatedUnits, 2)
	assert.Empty(t, result.Warnings)

	// one per-unit entry per serial plus one batch entry for the remainder
	require.Len(t, f.entries.entries, 3)
	assert.NotNil(t, f.entries.entries[0].SerialUnitID)
	assert.NotNil(t, f.entries.entries[1].SerialUnitID)
	assert.Nil(t, f.entries.entries[2].SerialUnitID)
	assert.Equal(t, types.NewQuantityFromInt(1), f.entries.entries[2].Quantity)

	for _, e := range f.entries.entries {
		assert.Equal(t, ledger.EntryReceive, e.Type)
		assert.Equal(t, ledger.RefPurchaseOrder, e.ReferenceKind)
	}
}

func TestReceiveLine_FullDeliveryClosesLineAndOrder(t *testing.T) {
	f := newFixture(t, 5)

	result, err := f.svc.ReceiveLine(context.Background(), f.line.ID,
		types.NewQuantityFromInt(5), nil)
	require.NoError(t, err)

	assert.Equal(t, LineReceived, result.Line.Status)
	assert.Equal(t, OrderReceived, result.OrderStatus)
}

func TestReceiveLine_OverReceiptWarnsButSucceeds(t *testing.T) {
	f := newFixture(t, 5)

	_, err := f.svc.ReceiveLine(context.Background(), f.line.ID, types.NewQuantityFromInt(4), nil)
	require.NoError(t, err)

	result, err := f.svc.ReceiveLine(context.Background(), f.line.ID, types.NewQuantityFromInt(3), nil)
	require.NoError(t, err)

	assert.Equal(t, types.NewQuantityFromInt(7), result.Line.QuantityReceived)
	assert.Equal(t, LineReceived, result.Line.Status)
	assert.Contains(t, result.Warnings, apperror.WarnOverReceipt)
}

func TestReceiveLine_GateRejectsFullyReceivedLine(t *testing.T) {
	f := newFixture(t, 5)

	_, err := f.svc.ReceiveLine(context.Background(), f.line.ID, types.NewQuantityFromInt(5), nil)
	require.NoError(t, err)

	_, err = f.svc.ReceiveLine(context.Background(), f.line.ID, types.NewQuantityFromInt(1), nil)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeReceivingGate))
}

func TestReceiveLine_StrictGateRequiresPayment(t *testing.T) {
	f := newFixture(t, 5)

	svc, err := NewService(f.repo, f.serials, f.variants, f.entries, fakeTxManager{},
		Config{GateExpression: `ordered > received && payment_status == "paid"`})
	require.NoError(t, err)

	_, err = svc.ReceiveLine(context.Background(), f.line.ID, types.NewQuantityFromInt(1), nil)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeReceivingGate))
}

func TestReceiveLine_DuplicateSerialAbortsDelivery(t *testing.T) {
	f := newFixture(t, 10)

	_, err := f.svc.ReceiveLine(context.Background(), f.line.ID,
		types.NewQuantityFromInt(1), serialInputs("IMEI-1"))
	require.NoError(t, err)

	_, err = f.svc.ReceiveLine(context.Background(), f.line.ID,
		types.NewQuantityFromInt(1), serialInputs("IMEI-1"))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeDuplicateSerial))
}

func TestReceiveLine_RejectsMoreSerialsThanQuantity(t *testing.T) {
	f := newFixture(t, 10)

	_, err := f.svc.ReceiveLine(context.Background(), f.line.ID,
		types.NewQuantityFromInt(1), serialInputs("IMEI-1", "IMEI-2"))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestReceiveLine_RejectsNonPositiveQuantity(t *testing.T) {
	f := newFixture(t, 10)

	_, err := f.svc.ReceiveLine(context.Background(), f.line.ID, types.NewQuantityFromInt(0), nil)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}
