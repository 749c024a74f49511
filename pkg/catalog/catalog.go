// Package catalog holds the statistic field catalog shared by the parser,
// normalizer and formula engine. A Catalog is immutable once built; reloads
// produce a new snapshot that is swapped in through a Holder.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Kind is the declared value type of a statistic field.
type Kind string

const (
	KindNumber  Kind = "NUMBER"
	KindPercent Kind = "PERCENT"
	KindBoolean Kind = "BOOLEAN"
	KindInteger Kind = "INTEGER"
)

// ParseKind accepts any casing of the four kind names.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case KindNumber, KindPercent, KindBoolean, KindInteger:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Numeric reports whether values of this kind may appear in arithmetic.
func (k Kind) Numeric() bool { return k != KindBoolean }

// Field is one catalog entry.
type Field struct {
	Name     string   `mapstructure:"name" json:"name"`
	Kind     Kind     `mapstructure:"kind" json:"kind"`
	Min      float64  `mapstructure:"min" json:"min"`
	Max      float64  `mapstructure:"max" json:"max"`
	Aliases  []string `mapstructure:"aliases" json:"aliases,omitempty"`
	Critical bool     `mapstructure:"critical" json:"critical,omitempty"`
	// Weight overrides the default contribution to overall confidence.
	Weight float64 `mapstructure:"weight" json:"weight,omitempty"`
}

// EffectiveWeight is the field's weight in the overall confidence average.
func (f Field) EffectiveWeight() float64 {
	if f.Weight > 0 {
		return f.Weight
	}
	if f.Critical {
		return 3
	}
	return 1
}

// InRange reports whether v lies within [Min, Max].
func (f Field) InRange(v float64) bool {
	return v >= f.Min && v <= f.Max
}

// Clamp pulls v to the nearest bound. The second result is true when v moved.
func (f Field) Clamp(v float64) (float64, bool) {
	switch {
	case math.IsNaN(v):
		return f.Default(), true
	case v < f.Min:
		return f.Min, true
	case v > f.Max:
		return f.Max, true
	}
	return v, false
}

// Default is the fill value for an absent field: zero (false for booleans),
// pulled into bounds when the catalog excludes zero.
func (f Field) Default() float64 {
	switch {
	case 0 < f.Min:
		return f.Min
	case 0 > f.Max:
		return f.Max
	}
	return 0
}

// Labels returns the lowercase label forms recognised for this field:
// the name with underscores as spaces, followed by every alias.
func (f Field) Labels() []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		s = strings.ToLower(strings.Join(strings.Fields(s), " "))
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	add(strings.ReplaceAll(f.Name, "_", " "))
	for _, a := range f.Aliases {
		add(a)
	}
	return out
}

// Catalog is an immutable, ordered set of fields.
type Catalog struct {
	fields  []Field
	byName  map[string]int
	version string
}

// New validates fields and builds a snapshot. Field order is preserved.
func New(fields []Field) (*Catalog, error) {
	if len(fields) == 0 {
		return nil, ErrEmptyCatalog
	}
	c := &Catalog{
		fields: make([]Field, 0, len(fields)),
		byName: make(map[string]int, len(fields)),
	}
	labelOwner := map[string]string{}
	for i, f := range fields {
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			return nil, fmt.Errorf("field %d: %w", i, ErrMissingName)
		}
		if !validIdent(f.Name) {
			return nil, fmt.Errorf("field %q: %w", f.Name, ErrBadName)
		}
		if _, dup := c.byName[f.Name]; dup {
			return nil, fmt.Errorf("field %q: %w", f.Name, ErrDuplicateField)
		}
		k, err := ParseKind(string(f.Kind))
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		f.Kind = k
		if k == KindBoolean {
			f.Min, f.Max = 0, 1
		}
		if f.Min > f.Max {
			return nil, fmt.Errorf("field %q: %w (min %v > max %v)", f.Name, ErrBadBounds, f.Min, f.Max)
		}
		if f.Weight < 0 {
			return nil, fmt.Errorf("field %q: negative weight", f.Name)
		}
		aliases := make([]string, len(f.Aliases))
		copy(aliases, f.Aliases)
		f.Aliases = aliases
		for _, l := range f.Labels() {
			if owner, taken := labelOwner[l]; taken {
				return nil, fmt.Errorf("label %q on %q: %w (already used by %q)", l, f.Name, ErrAliasCollision, owner)
			}
			labelOwner[l] = f.Name
		}
		c.byName[f.Name] = len(c.fields)
		c.fields = append(c.fields, f)
	}
	c.version = fingerprint(c.fields)
	return c, nil
}

// MustNew is New for package-level tables known to be valid.
func MustNew(fields []Field) *Catalog {
	c, err := New(fields)
	if err != nil {
		panic(err)
	}
	return c
}

// Version identifies the snapshot's content. Equal content gives equal versions.
func (c *Catalog) Version() string { return c.version }

// Len returns the number of fields.
func (c *Catalog) Len() int { return len(c.fields) }

// Fields returns a copy of the ordered field list.
func (c *Catalog) Fields() []Field {
	out := make([]Field, len(c.fields))
	copy(out, c.fields)
	return out
}

// Field looks a field up by its exact name.
func (c *Catalog) Field(name string) (Field, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Field{}, false
	}
	return c.fields[i], true
}

// Names returns field names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.fields))
	for i, f := range c.fields {
		out[i] = f.Name
	}
	return out
}

func fingerprint(fields []Field) string {
	b, _ := json.Marshal(fields)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}

// validIdent restricts names to what the formula lexer accepts as an identifier.
func validIdent(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
