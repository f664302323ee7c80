package rel

import "github.com/shopspring/decimal"

// Arithmetic over numeric values. Integers stay integers as long as both
// operands are integers; any decimal operand widens the operation to
// decimal. Non-numeric operands are a TypeError.

// Add returns a + b.
func Add(a, b Value) (Value, error) {
	if err := checkNumeric("+", a, b); err != nil {
		return Value{}, err
	}

	if a.kind == KindInt && b.kind == KindInt {
		return Int(a.i + b.i), nil
	}

	return Dec(a.Decimal().Add(b.Decimal())), nil
}

// Sub returns a - b.
func Sub(a, b Value) (Value, error) {
	if err := checkNumeric("-", a, b); err != nil {
		return Value{}, err
	}

	if a.kind == KindInt && b.kind == KindInt {
		return Int(a.i - b.i), nil
	}

	return Dec(a.Decimal().Sub(b.Decimal())), nil
}

// Mul returns a * b.
func Mul(a, b Value) (Value, error) {
	if err := checkNumeric("*", a, b); err != nil {
		return Value{}, err
	}

	if a.kind == KindInt && b.kind == KindInt {
		return Int(a.i * b.i), nil
	}

	return Dec(a.Decimal().Mul(b.Decimal())), nil
}

// Div returns a / b. Integer operands use floor division; a decimal operand
// widens to decimal division. Division by zero is a DomainError.
func Div(a, b Value) (Value, error) {
	if err := checkNumeric("/", a, b); err != nil {
		return Value{}, err
	}

	if a.kind == KindInt && b.kind == KindInt {
		if b.i == 0 {
			return Value{}, &DomainError{Msg: "division by zero"}
		}

		return Int(floorDiv(a.i, b.i)), nil
	}

	if b.Decimal().IsZero() {
		return Value{}, &DomainError{Msg: "division by zero"}
	}

	return Dec(a.Decimal().Div(b.Decimal())), nil
}

func checkNumeric(op string, a, b Value) error {
	if !a.IsNumeric() {
		return &TypeError{Msg: "arithmetic " + op + " on " + a.kind.String() + " value"}
	}

	if !b.IsNumeric() {
		return &TypeError{Msg: "arithmetic " + op + " on " + b.kind.String() + " value"}
	}

	return nil
}

// floorDiv rounds the quotient toward negative infinity, matching the
// floor-division convention the mean aggregate uses for integer groups.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}

	return q
}

// MeanInt returns the floor of sum/count for an all-integer group.
func MeanInt(sum int64, count int64) int64 { return floorDiv(sum, count) }

// MeanDec returns sum/count in decimal.
func MeanDec(sum decimal.Decimal, count int64) decimal.Decimal {
	return sum.Div(decimal.NewFromInt(count))
}
