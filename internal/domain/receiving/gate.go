package receiving

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// DefaultGateExpr gates receiving on open quantity only. Payment status
// is available to deployments that want the strict rule, e.g.
// "ordered > received && payment_status == 'paid'".
const DefaultGateExpr = "ordered > received"

// Gate decides whether a PO line may accept a delivery. The rule is a
// CEL expression over the line and order state, supplied as deployment
// configuration.
type Gate struct {
	expr    string
	program cel.Program
}

// NewGate compiles a gate expression. An empty expression uses the
// default open-quantity rule.
func NewGate(expr string) (*Gate, error) {
	if expr == "" {
		expr = DefaultGateExpr
	}

	env, err := cel.NewEnv(
		cel.Variable("ordered", cel.DoubleType),
		cel.Variable("received", cel.DoubleType),
		cel.Variable("order_status", cel.StringType),
		cel.Variable("payment_status", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create gate env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile gate expression %q: %w", expr, iss.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("gate expression %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build gate program: %w", err)
	}

	return &Gate{expr: expr, program: program}, nil
}

// Allows evaluates the gate for a line and its order.
func (g *Gate) Allows(line *Line, order *OrderInfo) (bool, error) {
	out, _, err := g.program.Eval(map[string]any{
		"ordered":        line.QuantityOrdered.Float64(),
		"received":       line.QuantityReceived.Float64(),
		"order_status":   string(order.Status),
		"payment_status": order.PaymentStatus,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate gate: %w", err)
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("gate expression %q returned non-bool", g.expr)
	}
	return allowed, nil
}

// Expression returns the configured rule, for diagnostics.
func (g *Gate) Expression() string {
	return g.expr
}
