package receiving

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"branchstock/internal/core/types"
)

func TestGate_DefaultAllowsOpenQuantityOnly(t *testing.T) {
	gate, err := NewGate("")
	require.NoError(t, err)
	assert.Equal(t, DefaultGateExpr, gate.Expression())

	order := &OrderInfo{Status: OrderOpen, PaymentStatus: "unpaid"}

	open := &Line{
		QuantityOrdered:  types.NewQuantityFromInt(10),
		QuantityReceived: types.NewQuantityFromInt(4),
	}
	allowed, err := gate.Allows(open, order)
	require.NoError(t, err)
	assert.True(t, allowed)

	full := &Line{
		QuantityOrdered:  types.NewQuantityFromInt(10),
		QuantityReceived: types.NewQuantityFromInt(10),
	}
	allowed, err = gate.Allows(full, order)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestGate_StrictPaymentRule(t *testing.T) {
	gate, err := NewGate(`ordered > received && payment_status == "paid"`)
	require.NoError(t, err)

	line := &Line{
		QuantityOrdered:  types.NewQuantityFromInt(5),
		QuantityReceived: types.NewQuantityFromInt(0),
	}

	allowed, err := gate.Allows(line, &OrderInfo{Status: OrderOpen, PaymentStatus: "unpaid"})
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = gate.Allows(line, &OrderInfo{Status: OrderOpen, PaymentStatus: "paid"})
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestGate_RejectsBadExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{name: "syntax error", expr: "ordered >"},
		{name: "unknown variable", expr: "warehouse == 'main'"},
		{name: "non-bool result", expr: "ordered - received"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGate(tt.expr)
			assert.Error(t, err)
		})
	}
}
