package formula

import "math"

type valueType int

const (
	typeNumber valueType = iota
	typeBool
)

func (t valueType) String() string {
	if t == typeBool {
		return "boolean"
	}
	return "number"
}

// Flags reported alongside degenerate results.
const (
	FlagDivisionByZero = "division_by_zero"
	FlagNonFinite      = "non_finite"
)

// env is per-evaluation state; nodes themselves are immutable and shared.
type env struct {
	vars    Values
	flags   map[string]bool
	missing string
}

func (e *env) flag(name string) {
	if e.flags == nil {
		e.flags = make(map[string]bool, 2)
	}
	e.flags[name] = true
}

// Booleans evaluate to 1 or 0.
type node interface {
	eval(e *env) float64
	typ() valueType
	pos() int
}

type numberLit struct {
	value float64
	at    int
}

func (n *numberLit) eval(*env) float64 { return n.value }
func (n *numberLit) typ() valueType    { return typeNumber }
func (n *numberLit) pos() int          { return n.at }

// isBoolLiteral reports whether n is the literal 0 or 1, the only numbers a
// boolean field may be compared against.
func isBoolLiteral(n node) bool {
	lit, ok := n.(*numberLit)
	return ok && (lit.value == 0 || lit.value == 1)
}

type fieldRef struct {
	name string
	t    valueType
	at   int
}

func (n *fieldRef) eval(e *env) float64 {
	v, ok := e.vars.Value(n.name)
	if !ok {
		if e.missing == "" {
			e.missing = n.name
		}
		return 0
	}
	if n.t == typeBool {
		return b2f(v != 0)
	}
	return v
}
func (n *fieldRef) typ() valueType { return n.t }
func (n *fieldRef) pos() int       { return n.at }

type unary struct {
	op string
	x  node
	at int
}

func (n *unary) eval(e *env) float64 {
	v := n.x.eval(e)
	if n.op == "!" {
		return b2f(v == 0)
	}
	return -v
}
func (n *unary) typ() valueType {
	if n.op == "!" {
		return typeBool
	}
	return typeNumber
}
func (n *unary) pos() int { return n.at }

type binary struct {
	op   string
	l, r node
	at   int
}

func (n *binary) eval(e *env) float64 {
	switch n.op {
	case "&&":
		return b2f(n.l.eval(e) != 0 && n.r.eval(e) != 0)
	case "||":
		return b2f(n.l.eval(e) != 0 || n.r.eval(e) != 0)
	}
	l, r := n.l.eval(e), n.r.eval(e)
	switch n.op {
	case "+":
		return l + r
	case "-":
		return l - r
	case "*":
		return l * r
	case "/":
		if r == 0 {
			e.flag(FlagDivisionByZero)
			return 0
		}
		return l / r
	case "==":
		return b2f(l == r)
	case "!=":
		return b2f(l != r)
	case "<":
		return b2f(l < r)
	case "<=":
		return b2f(l <= r)
	case ">":
		return b2f(l > r)
	case ">=":
		return b2f(l >= r)
	}
	return math.NaN()
}

func (n *binary) typ() valueType {
	switch n.op {
	case "+", "-", "*", "/":
		return typeNumber
	}
	return typeBool
}
func (n *binary) pos() int { return n.at }

type conditional struct {
	cond, then, els node
	at              int
}

func (n *conditional) eval(e *env) float64 {
	if n.cond.eval(e) != 0 {
		return n.then.eval(e)
	}
	return n.els.eval(e)
}
func (n *conditional) typ() valueType { return n.then.typ() }
func (n *conditional) pos() int       { return n.at }

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
