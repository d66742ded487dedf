package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Column is one of the allow-listed columns of the people table.
type Column string

const (
	ColumnID         Column = "id"
	ColumnName       Column = "name"
	ColumnAge        Column = "age"
	ColumnProfession Column = "profession"
)

// Columns lists the allow-list in table order.
var Columns = []Column{ColumnID, ColumnName, ColumnAge, ColumnProfession}

func (c Column) isInteger() bool {
	return c == ColumnID || c == ColumnAge
}

func (c Column) valid() bool {
	for _, known := range Columns {
		if c == known {
			return true
		}
	}
	return false
}

// Operator compares a column with a value.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNe       Operator = "ne"
	OpLt       Operator = "lt"
	OpLe       Operator = "le"
	OpGt       Operator = "gt"
	OpGe       Operator = "ge"
	OpContains Operator = "contains"
)

// Operators lists every supported operator.
var Operators = []Operator{OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpContains}

var sqlOperators = map[Operator]string{
	OpEq: "=",
	OpNe: "<>",
	OpLt: "<",
	OpLe: "<=",
	OpGt: ">",
	OpGe: ">=",
}

// Filter is a typed condition on one column. Value is always bound as a
// query parameter.
type Filter struct {
	Field Column   `json:"field"`
	Op    Operator `json:"op"`
	Value any      `json:"value"`
}

// Query is a conjunction of filters. The zero value selects every record.
type Query struct {
	Filters []Filter
	// Limit caps the number of rows; zero means no limit.
	Limit int
}

// Validate checks the query against the allow-list and normalizes every
// filter value to int64 (integer columns) or string (text columns).
func (q *Query) Validate() error {
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidFilter)
	}
	q.Filters = append([]Filter(nil), q.Filters...)
	for i := range q.Filters {
		if err := q.Filters[i].normalize(); err != nil {
			return err
		}
	}
	return nil
}

func (f *Filter) normalize() error {
	if !f.Field.valid() {
		return fmt.Errorf("%w: unknown field %q", ErrInvalidFilter, f.Field)
	}
	if _, ok := sqlOperators[f.Op]; !ok && f.Op != OpContains {
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidFilter, f.Op)
	}
	if f.Field.isInteger() {
		if f.Op == OpContains {
			return fmt.Errorf("%w: operator contains is only valid for text fields", ErrInvalidFilter)
		}
		n, err := toInt64(f.Value)
		if err != nil {
			return fmt.Errorf("%w: field %s: %v", ErrInvalidFilter, f.Field, err)
		}
		f.Value = n
		return nil
	}
	s, ok := f.Value.(string)
	if !ok {
		return fmt.Errorf("%w: field %s expects a string value", ErrInvalidFilter, f.Field)
	}
	f.Value = s
	return nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, fmt.Errorf("%v is out of range", n)
		}
		return int64(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, numberError(string(n), err)
		}
		return i, nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, numberError(n, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}

func numberError(s string, err error) error {
	if errors.Is(err, strconv.ErrRange) {
		return fmt.Errorf("%s is out of range", s)
	}
	return fmt.Errorf("%q is not an integer", s)
}

// ToInt converts a decoded JSON value to an int using the same rules as
// integer filter values.
func ToInt(v any) (int, error) {
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	if n < math.MinInt || n > math.MaxInt {
		return 0, fmt.Errorf("%d is out of range", n)
	}
	return int(n), nil
}

// escapeLike escapes the LIKE wildcards in s using backslash as the escape
// character.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
