// Package formula compiles administrator-written rating expressions over the
// stat catalog and evaluates them against normalized records.
//
// The grammar is closed: numeric literals, catalog field names, arithmetic,
// comparisons, logical operators and a ternary conditional. Nothing in a
// formula can reach outside the record it is evaluated against.
package formula

import (
	"math"
	"sort"
	"strings"

	"leaguestats/pkg/catalog"
)

// Formula is the stored metadata around a source expression. Name and Color
// are display-only.
type Formula struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Source   string `json:"source"`
	Position string `json:"position,omitempty"`
	Color    string `json:"color,omitempty"`
}

// Values supplies field values by name. normalize.Record implements it.
type Values interface {
	Value(name string) (float64, bool)
}

// Vars is a plain map of field values.
type Vars map[string]float64

func (v Vars) Value(name string) (float64, bool) {
	x, ok := v[name]
	return x, ok
}

// Compiled is an immutable, validated formula. It is safe for concurrent use.
type Compiled struct {
	Source         string
	Fields         []string
	CatalogVersion string
	root           node
}

// Result is one evaluation. A zero divisor makes that quotient 0 and a
// non-finite total becomes 0; either way Degenerate is set and Flags says why.
type Result struct {
	Value      float64  `json:"value"`
	Degenerate bool     `json:"degenerate"`
	Flags      []string `json:"flags,omitempty"`
}

// Compile tokenizes, parses and type checks src against cat. Failures are
// returned as *Error.
func Compile(src string, cat *catalog.Catalog) (*Compiled, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &Error{Pos: 0, Message: "empty formula"}
	}
	if len(src) > maxSourceLen {
		return nil, &Error{Pos: maxSourceLen, Message: "formula is too long"}
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, cat: cat, fields: map[string]struct{}{}}
	root, err := p.parse()
	if err != nil {
		return nil, err
	}
	fields := make([]string, 0, len(p.fields))
	for f := range p.fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return &Compiled{Source: src, Fields: fields, CatalogVersion: cat.Version(), root: root}, nil
}

// Evaluate scores vars. A field referenced by the formula but absent from
// vars is an *EvaluationError.
func (c *Compiled) Evaluate(vars Values) (Result, error) {
	e := &env{vars: vars}
	v := c.root.eval(e)
	if e.missing != "" {
		return Result{}, &EvaluationError{Field: e.missing, Message: "missing from record"}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		e.flag(FlagNonFinite)
		v = 0
	}
	res := Result{Value: v}
	if len(e.flags) > 0 {
		res.Degenerate = true
		for f := range e.flags {
			res.Flags = append(res.Flags, f)
		}
		sort.Strings(res.Flags)
	}
	return res, nil
}
