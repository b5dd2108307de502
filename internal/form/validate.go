// internal/form/validate.go
//
// Forms subsystem: server-side field cleaning.
//
// Context
//   When the browser posts user input, each field is checked against its
//   definition: required flag, type constraints, regex patterns, option
//   values, fk choices, and length limits.  The result is a typed map
//   (cleaned data) that Save and success messages can trust.
//
//   Values are NOT HTML-escaped here.  Escaping happens once, at render
//   time, so cleaned data re-validates to itself on a preview round trip.
//
// Workflow
//   •  clean walks the FieldDefs, pulls the raw value (honoring a formset
//      prefix), and validates by type.  Errors are captured in
//      []ErrorField so templates can highlight exact issues.
//   •  Ordinary invalidity is never an error value; it re-renders.
//
//------------------------------------------------------------------------------

package form

import (
	"fmt"
	"net/mail"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/yanizio/ajaxviews/internal/query"
)

// ErrorField describes a single validation failure so the template can render
// a field-level message.  Name is "" for form-level errors.
type ErrorField struct {
	Name    string
	Message string
}

// Choice is one option of an fk select.
type Choice struct {
	Value string
	Label string
}

// clean validates the bound data of f and fills f.Cleaned / f.Errors.
func (f *Form) clean() {
	f.Cleaned = make(map[string]any, len(f.Def.Fields))
	for i := range f.Def.Fields {
		fd := &f.Def.Fields[i]
		raw, present := f.raw(fd.Name)
		raw = strings.TrimSpace(raw)

		if fd.Type == "checkbox" {
			on := present && checkboxOn(raw)
			if fd.Required && !on {
				f.addError(fd.Name, requiredMsg(fd))
				continue
			}
			f.Cleaned[fd.Name] = on
			continue
		}
		if !present || raw == "" {
			if fd.Required {
				f.addError(fd.Name, requiredMsg(fd))
				continue
			}
			f.Cleaned[fd.Name] = nil
			continue
		}

		val, msg := validateAndSanitize(fd, raw, f.kw.Choices[fd.Name])
		if msg != "" {
			f.addError(fd.Name, msg)
			continue
		}
		f.Cleaned[fd.Name] = val
	}
}

func checkboxOn(raw string) bool {
	switch strings.ToLower(raw) {
	case "", "false", "0", "off", "no":
		return false
	}
	return true
}

func validateAndSanitize(f *FieldDef, val string, choices []Choice) (any, string) {
	switch f.Type {
	case "text", "textarea", "hidden", "file":
		if msg := lengthCheck(f, val); msg != "" {
			return nil, msg
		}
		if f.Pattern != "" && !regexMatch(f.Pattern, val) {
			return nil, patternMsg(f)
		}
		return val, ""

	case "email":
		if msg := lengthCheck(f, val); msg != "" {
			return nil, msg
		}
		if _, err := mail.ParseAddress(val); err != nil {
			return nil, invalidMsg(f)
		}
		return val, ""

	case "password":
		if msg := lengthCheck(f, val); msg != "" {
			return nil, msg
		}
		return val, ""

	case "number":
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, invalidMsg(f)
		}
		return n, ""

	case "decimal":
		x, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, invalidMsg(f)
		}
		return x, ""

	case "date":
		d, err := query.ParseDate(val)
		if err != nil {
			return nil, invalidMsg(f)
		}
		return d, ""

	case "select", "radio":
		if !slices.Contains(f.Options, val) {
			return nil, invalidMsg(f)
		}
		return val, ""

	case "fk":
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, invalidMsg(f)
		}
		if choices != nil && !lo.ContainsBy(choices, func(c Choice) bool { return c.Value == val }) {
			return nil, "Select a valid choice."
		}
		return n, ""

	default:
		return nil, fmt.Sprintf("Unsupported field type %q.", f.Type)
	}
}

// lengthCheck validates minlength / maxlength rules in runes.
func lengthCheck(f *FieldDef, s string) string {
	n := len([]rune(s))
	if f.MinLength > 0 && n < f.MinLength {
		return fmt.Sprintf("Must be at least %d characters.", f.MinLength)
	}
	if f.MaxLength > 0 && n > f.MaxLength {
		return fmt.Sprintf("Must be at most %d characters.", f.MaxLength)
	}
	return ""
}

func regexMatch(pattern, s string) bool {
	re, _ := regexp.Compile(pattern) // pattern pre-validated at load
	return re.MatchString(s)
}

// user-friendly default messages
func requiredMsg(f *FieldDef) string {
	if f.ErrorMsg != "" {
		return f.ErrorMsg
	}
	return "This field is required."
}
func invalidMsg(f *FieldDef) string {
	if f.ErrorMsg != "" {
		return f.ErrorMsg
	}
	return "Invalid input."
}
func patternMsg(f *FieldDef) string {
	if f.ErrorMsg != "" {
		return f.ErrorMsg
	}
	return "Input does not match required format."
}
