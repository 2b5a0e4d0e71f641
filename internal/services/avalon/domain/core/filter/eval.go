package filter

import (
	"fmt"

	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Evaluate evaluates a parsed filter expression against a resolver.
func Evaluate(e *expr.Expr, resolve Resolver) (bool, error) {
	if e == nil {
		return true, nil
	}
	call, ok := e.ExprKind.(*expr.Expr_CallExpr)
	if !ok {
		return false, fmt.Errorf("unsupported expression type: %T", e.ExprKind)
	}
	args := call.CallExpr.Args

	switch fn := call.CallExpr.Function; fn {
	case "AND", "_&&_":
		if len(args) != 2 {
			return false, fmt.Errorf("AND requires 2 arguments")
		}
		left, err := Evaluate(args[0], resolve)
		if err != nil || !left {
			return false, err
		}
		return Evaluate(args[1], resolve)
	case "OR", "_||_":
		if len(args) != 2 {
			return false, fmt.Errorf("OR requires 2 arguments")
		}
		left, err := Evaluate(args[0], resolve)
		if err != nil || left {
			return left, err
		}
		return Evaluate(args[1], resolve)
	case "NOT", "!_":
		if len(args) != 1 {
			return false, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := Evaluate(args[0], resolve)
		return !inner, err
	case "=", "!=", "<", "<=", ">", ">=":
		return evalCompare(fn, args, resolve)
	default:
		return false, fmt.Errorf("unsupported function: %s", fn)
	}
}

func evalCompare(op string, args []*expr.Expr, resolve Resolver) (bool, error) {
	if len(args) != 2 {
		return false, fmt.Errorf("comparison requires 2 arguments")
	}
	ident, ok := args[0].ExprKind.(*expr.Expr_IdentExpr)
	if !ok {
		return false, fmt.Errorf("expected identifier, got %T", args[0].ExprKind)
	}
	name := ident.IdentExpr.Name
	left, ok := resolve(name)
	if !ok {
		return false, fmt.Errorf("unknown field: %s", name)
	}
	constant, ok := args[1].ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return false, fmt.Errorf("expected constant, got %T", args[1].ExprKind)
	}
	right, err := constValue(constant.ConstExpr)
	if err != nil {
		return false, err
	}

	cmp, err := compare(left, right)
	if err != nil {
		return false, fmt.Errorf("field %s: %w", name, err)
	}
	switch op {
	case "=":
		return cmp == 0, nil
	case "!=":
		return cmp != 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	default:
		return cmp >= 0, nil
	}
}

func constValue(c *expr.Constant) (any, error) {
	switch kind := c.GetConstantKind().(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return int64(kind.Uint64Value), nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}

func compare(left, right any) (int, error) {
	switch l := left.(type) {
	case string:
		r, ok := right.(string)
		if !ok {
			return 0, fmt.Errorf("type mismatch: string vs %T", right)
		}
		return ordered(l, r), nil
	case int:
		return compareInt(int64(l), right)
	case int64:
		return compareInt(l, right)
	case bool:
		r, ok := right.(bool)
		if !ok {
			return 0, fmt.Errorf("type mismatch: bool vs %T", right)
		}
		if l == r {
			return 0, nil
		}
		if !l {
			return -1, nil
		}
		return 1, nil
	default:
		return 0, fmt.Errorf("unsupported value type: %T", left)
	}
}

func compareInt(left int64, right any) (int, error) {
	r, ok := right.(int64)
	if !ok {
		return 0, fmt.Errorf("type mismatch: int vs %T", right)
	}
	return ordered(left, r), nil
}

func ordered[T int64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
