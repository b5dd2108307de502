// internal/query/filter.go
//
// Index-addressed filter and sort protocol.
//
// Context
// -------
// A list view declares an ordered slice of FilterField.  The client
// addresses a column by its index: `selected_filter_index` picks the field
// to filter on, `sort_index` the field to sort on.  The two steps are
// independent; either may target any field.
//
//	Values        distinct values, filtered with IN
//	Choices       distinct values shown through a label mapping, IN filter
//	Date          min / max bounds, filtered with an inclusive date range
//	Exclude       skipped by filtering and sorting
//	ExcludeFilter skipped by filtering only
//	ExcludeSort   skipped by sorting only
//
// The zero FilterField is invalid and yields a *LookupError wherever it is
// used.
package query

import (
	"fmt"
	"strings"
	"time"
)

// Lookup error messages.
const (
	MsgInvalidField  = "invalid filter field"
	MsgInvalidSet    = "invalid filter set"
	MsgInvalidValues = "invalid filter values"
)

// LookupError reports a malformed filter declaration or selection.
type LookupError struct {
	Msg  string
	Path string
}

func (e *LookupError) Error() string {
	if e.Path == "" {
		return e.Msg
	}
	return e.Msg + ": " + e.Path
}

// Kind classifies a FilterField.
type Kind int

const (
	kindInvalid Kind = iota
	KindValues
	KindChoices
	KindDate
	KindExclude
	KindExcludeFilter
	KindExcludeSort
)

// FilterField is one entry of a view's filter_fields declaration.
type FilterField struct {
	Path    string
	Kind    Kind
	Choices map[string]string // KindChoices: raw value → label
}

// Values declares a distinct-values field.
func Values(path string) FilterField { return FilterField{Path: path, Kind: KindValues} }

// Date declares a date-range field.
func Date(path string) FilterField { return FilterField{Path: path, Kind: KindDate} }

// Choices declares a mapped-values field.
func Choices(path string, labels map[string]string) FilterField {
	return FilterField{Path: path, Kind: KindChoices, Choices: labels}
}

// Exclude declares a field skipped by both filtering and sorting.
func Exclude(path string) FilterField { return FilterField{Path: path, Kind: KindExclude} }

// ExcludeFilter declares a sortable, non-filterable field.
func ExcludeFilter(path string) FilterField { return FilterField{Path: path, Kind: KindExcludeFilter} }

// ExcludeSort declares a filterable, non-sortable field.
func ExcludeSort(path string) FilterField { return FilterField{Path: path, Kind: KindExcludeSort} }

// Filterable reports whether the filter step may use f.
func (f FilterField) Filterable() bool {
	return f.Kind != KindExclude && f.Kind != KindExcludeFilter
}

// Sortable reports whether the sort step may use f.
func (f FilterField) Sortable() bool {
	return f.Kind != KindExclude && f.Kind != KindExcludeSort
}

// Label maps a raw value through the choice labels.  Unmapped values label
// themselves.
func (f FilterField) Label(v any) string {
	s := fmt.Sprint(v)
	if l, ok := f.Choices[s]; ok {
		return l
	}
	return s
}

// ParseFilterField converts a YAML / JSON declaration:
//
//	"title"                          → Values
//	["published", "date"]            → Date
//	["status", "dict", {k: label}]   → Choices
//	["status", "set", [[k, label]]]  → Choices
//	["cover", "exclude"]             → Exclude (also exclude_filter / exclude_sort)
func ParseFilterField(v any) (FilterField, error) {
	switch t := v.(type) {
	case string:
		if t == "" {
			break
		}
		return Values(t), nil
	case []any:
		if len(t) < 2 || len(t) > 3 {
			break
		}
		path, ok1 := t[0].(string)
		kind, ok2 := t[1].(string)
		if !ok1 || !ok2 || path == "" {
			break
		}
		if len(t) == 2 {
			switch kind {
			case "date":
				return Date(path), nil
			case "exclude":
				return Exclude(path), nil
			case "exclude_filter":
				return ExcludeFilter(path), nil
			case "exclude_sort":
				return ExcludeSort(path), nil
			}
			return FilterField{}, &LookupError{Msg: MsgInvalidSet, Path: path}
		}
		if kind != "dict" && kind != "set" {
			return FilterField{}, &LookupError{Msg: MsgInvalidSet, Path: path}
		}
		labels, ok := parseLabels(t[2])
		if !ok {
			return FilterField{}, &LookupError{Msg: MsgInvalidSet, Path: path}
		}
		return Choices(path, labels), nil
	}
	return FilterField{}, &LookupError{Msg: MsgInvalidField, Path: fmt.Sprint(v)}
}

func parseLabels(v any) (map[string]string, bool) {
	out := map[string]string{}
	switch t := v.(type) {
	case map[string]any:
		for k, l := range t {
			out[k] = fmt.Sprint(l)
		}
	case []any:
		for _, p := range t {
			pair, ok := p.([]any)
			if !ok || len(pair) != 2 {
				return nil, false
			}
			out[fmt.Sprint(pair[0])] = fmt.Sprint(pair[1])
		}
	default:
		return nil, false
	}
	return out, true
}

/*──────────────────────────── filter + sort ────────────────────────────────*/

// Opts carries one request's filter / sort selection.
type Opts struct {
	Filter    *FilterField // field at selected_filter_index, nil when unset
	Selected  any          // selected_filter_values: []any, or {min_date, max_date}
	Sort      *FilterField // field at sort_index, nil when unset
	SortOrder string       // "asc"; anything else sorts descending
	Distinct  bool
}

// AjaxFilter applies the filter step.
func (q *Query) AjaxFilter(o Opts) (*Query, error) {
	f := o.Filter
	if f == nil || !f.Filterable() {
		return q, nil
	}
	out := q
	if present(o.Selected) {
		var err error
		switch f.Kind {
		case KindValues, KindChoices, KindExcludeSort:
			vals, ok := o.Selected.([]any)
			if !ok {
				return nil, &LookupError{Msg: MsgInvalidValues, Path: f.Path}
			}
			out, err = q.In(f.Path, vals)
		case KindDate:
			out, err = q.dateRange(f.Path, o.Selected)
		default:
			return nil, &LookupError{Msg: MsgInvalidField, Path: f.Path}
		}
		if err != nil {
			return nil, err
		}
	}
	if o.Distinct {
		out = out.Distinct()
	}
	return out, nil
}

func (q *Query) dateRange(path string, sel any) (*Query, error) {
	m, ok := sel.(map[string]any)
	if !ok {
		return nil, &LookupError{Msg: MsgInvalidValues, Path: path}
	}
	var bounds [2]string
	for i, key := range []string{"min_date", "max_date"} {
		s, _ := m[key].(string)
		if s == "" {
			continue
		}
		d, err := ParseDate(s)
		if err != nil {
			return nil, &LookupError{Msg: MsgInvalidValues, Path: path}
		}
		bounds[i] = d
	}
	return q.Range(path, bounds[0], bounds[1])
}

// AjaxSorter applies the sort step.
func (q *Query) AjaxSorter(o Opts) (*Query, error) {
	f := o.Sort
	if f == nil || !f.Sortable() {
		return q, nil
	}
	if f.Kind == kindInvalid {
		return nil, &LookupError{Msg: MsgInvalidField, Path: f.Path}
	}
	if o.SortOrder == "asc" {
		return q.OrderBy(f.Path)
	}
	return q.OrderBy("-" + f.Path)
}

// DefaultFilter applies the filter step, then the sort step.
func (q *Query) DefaultFilter(o Opts) (*Query, error) {
	out, err := q.AjaxFilter(o)
	if err != nil {
		return nil, err
	}
	return out.AjaxSorter(o)
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	case string:
		return t != ""
	}
	return true
}

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	time.DateTime,
	"2006-01-02T15:04:05",
	"01/02/2006",
	"02.01.2006",
}

// ParseDate accepts common client date spellings and returns YYYY-MM-DD.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.Format(time.DateOnly), nil
		}
	}
	return "", fmt.Errorf("query: unrecognised date %q", s)
}
