// internal/form/formset.go
//
// Forms subsystem: formsets.
//
// Context
//   A formset renders N copies of one FormDef under the prefixes
//   “form-0” … “form-N-1”.  The management field “form-TOTAL_FORMS” tells
//   the server how many copies were posted.  Extra (blank) copies that the
//   user left untouched are skipped rather than failing required checks.
//   Saving is all-or-nothing: every form saves inside one transaction.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/ajaxviews/internal/query"
)

const (
	formsetPrefix = "form"
	totalFormsKey = formsetPrefix + "-TOTAL_FORMS"
	maxForms      = 1000
)

// Formset is a group of forms sharing one definition.
type Formset struct {
	Def    *FormDef
	Forms  []*Form
	Errors []ErrorField
	Saved  []query.Row

	bound bool
}

// NewFormset builds a formset.  Unbound, it holds one form per instance
// plus extra blanks.  Bound, it holds as many forms as the client posted.
func NewFormset(def *FormDef, kw Kwargs, instances []query.Row, extra int) *Formset {
	fs := &Formset{Def: def, bound: kw.Data != nil}

	n := len(instances) + extra
	if fs.bound {
		total, err := strconv.Atoi(kw.Data.Get(totalFormsKey))
		if err != nil || total < 0 || total > maxForms {
			fs.Errors = append(fs.Errors, ErrorField{Message: "Management form data is missing or has been tampered with."})
			total = 0
		}
		n = total
	}

	for i := 0; i < n; i++ {
		fk := kw
		fk.Prefix = formsetPrefix + "-" + strconv.Itoa(i)
		fk.Instance = nil
		if i < len(instances) {
			fk.Instance = instances[i]
		}
		fs.Forms = append(fs.Forms, New(def, fk))
	}
	return fs
}

// TotalFormsKey is the management field name.
func (fs *Formset) TotalFormsKey() string { return totalFormsKey }

// IsBound reports whether the formset carries submitted data.
func (fs *Formset) IsBound() bool { return fs.bound }

// changed reports whether any field of f was posted non-empty.
func changed(f *Form) bool {
	for _, fd := range f.Def.Fields {
		if v, ok := f.raw(fd.Name); ok && v != "" {
			return true
		}
	}
	return false
}

// active returns the forms that take part in validation and saving.
func (fs *Formset) active() []*Form {
	var out []*Form
	for _, f := range fs.Forms {
		if f.kw.Instance == nil && !changed(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// IsValid validates every active form.
func (fs *Formset) IsValid() bool {
	if !fs.bound || len(fs.Errors) > 0 {
		return false
	}
	ok := true
	for _, f := range fs.active() {
		if !f.IsValid() {
			ok = false
		}
	}
	return ok
}

// CleanedData returns the cleaned data of every active form, in order.
func (fs *Formset) CleanedData() []map[string]any {
	var out []map[string]any
	for _, f := range fs.active() {
		out = append(out, f.Cleaned)
	}
	return out
}

// Save stores every active form inside one transaction.
func (fs *Formset) Save(ctx context.Context, db *sqlx.DB) ([]query.Row, error) {
	if !fs.IsValid() {
		return nil, fmt.Errorf("formset %s: save of invalid formset", fs.Def.ID)
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	var saved []query.Row
	for _, f := range fs.active() {
		obj, err := f.Save(ctx, tx)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		saved = append(saved, obj)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	fs.Saved = saved
	return saved, nil
}
