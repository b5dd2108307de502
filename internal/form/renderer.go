// internal/form/renderer.go
//
// Forms subsystem: HTML renderer.
//
// Context
//   Converts a bound or unbound *Form into safe, accessible HTML markup.
//   HTML5 validation attributes are applied, errors are rendered next to
//   their fields, and the hidden inputs that must round-trip (CSRF token,
//   form_cfg, preview success message) are emitted.
//
// Workflow
//   •  Render writes the <form> element (unless Fields-only), every field
//      via writeField, the hidden inputs, and the actions block.
//   •  RenderFormset writes the management field and each prefixed form.
//   •  The caller receives template.HTML so the surrounding template does
//      not double-escape the markup.
//
// Style
//   Output HTML is plain, with no framework classes, so themes style via
//   element selectors or class hooks.  Each input gets id="fld-{key}" and
//   is wrapped in <div class="form-field">.
//
//------------------------------------------------------------------------------

package form

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Render returns the complete <form> markup for f.
func Render(f *Form) template.HTML {
	var buf bytes.Buffer
	h := f.Helper()

	class := "ajax-form"
	if h.FormClass != "" {
		class += " " + h.FormClass
	}
	buf.WriteString(`<form method="post" class="` + html.EscapeString(class) + `" data-async=""`)
	if h.FormAction != "" {
		buf.WriteString(` action="` + html.EscapeString(h.FormAction) + `"`)
	}
	buf.WriteString(">\n")

	writeFields(&buf, f)
	writeActions(&buf, h)

	buf.WriteString("</form>")
	return template.HTML(buf.String())
}

// RenderFormset returns the markup of every form plus the management field.
// The surrounding <form> element belongs to the page template.
func RenderFormset(fs *Formset) template.HTML {
	var buf bytes.Buffer
	buf.WriteString(`<input type="hidden" name="` + totalFormsKey + `" value="` + strconv.Itoa(len(fs.Forms)) + `">` + "\n")
	for _, e := range fs.Errors {
		buf.WriteString(`<p class="error">` + html.EscapeString(e.Message) + "</p>\n")
	}
	for _, f := range fs.Forms {
		buf.WriteString(`<fieldset class="formset-form">` + "\n")
		writeFields(&buf, f)
		buf.WriteString("</fieldset>\n")
	}
	if len(fs.Forms) > 0 {
		writeActions(&buf, fs.Forms[0].Helper())
	}
	return template.HTML(buf.String())
}

func writeFields(buf *bytes.Buffer, f *Form) {
	for _, msg := range f.ErrorsFor("") {
		buf.WriteString(`<p class="error">` + html.EscapeString(msg) + "</p>\n")
	}
	for i := range f.Def.Fields {
		writeField(buf, f, &f.Def.Fields[i])
	}

	kw := f.Kwargs()
	if kw.CSRFToken != "" {
		hidden(buf, "csrf_token", kw.CSRFToken)
	}
	if raw, err := f.Cfg.Encode(); err == nil && raw != "" {
		hidden(buf, f.key("form_cfg"), raw)
	}
	if kw.SuccessMessage != "" {
		hidden(buf, "success_message", kw.SuccessMessage)
	}
	names := lo.Keys(kw.Helper.Hidden)
	slices.Sort(names)
	for _, name := range names {
		hidden(buf, name, kw.Helper.Hidden[name])
	}
}

func hidden(buf *bytes.Buffer, name, value string) {
	buf.WriteString(`<input type="hidden" name="` + html.EscapeString(name) + `" value="` + html.EscapeString(value) + `">` + "\n")
}

// writeField emits HTML for an individual field, applying the display value
// and validation attributes.
func writeField(buf *bytes.Buffer, f *Form, fd *FieldDef) {
	key := f.key(fd.Name)
	val := f.Value(fd.Name)

	if fd.Type == "hidden" {
		hidden(buf, key, val)
		return
	}

	buf.WriteString(`<div class="form-field">` + "\n")

	idAttr := `id="fld-` + html.EscapeString(key) + `"`
	nameAttr := `name="` + html.EscapeString(key) + `"`

	buf.WriteString(`<label for="fld-` + html.EscapeString(key) + `">` + html.EscapeString(fd.Label) + `</label>` + "\n")

	switch fd.Type {
	case "text", "email", "password", "number", "decimal", "date", "file":
		typ := fd.Type
		switch typ {
		case "decimal":
			typ = "number"
		case "file":
			typ = "text"
		}
		buf.WriteString(`<input ` + idAttr + ` ` + nameAttr + ` type="` + typ + `"`)
		if fd.Type == "decimal" {
			buf.WriteString(` step="any"`)
		}
		attrs(buf, fd)
		if val != "" && fd.Type != "password" {
			buf.WriteString(` value="` + html.EscapeString(val) + `"`)
		}
		buf.WriteString(`>` + "\n")

	case "textarea":
		buf.WriteString(`<textarea ` + idAttr + ` ` + nameAttr)
		attrs(buf, fd)
		buf.WriteString(`>` + html.EscapeString(val) + `</textarea>` + "\n")

	case "select":
		writeSelect(buf, idAttr, nameAttr, fd, val, optionChoices(fd.Options))

	case "fk":
		writeSelect(buf, idAttr, nameAttr, fd, val, f.Kwargs().Choices[fd.Name])

	case "checkbox":
		checked := ""
		if checkboxOn(val) {
			checked = ` checked`
		}
		buf.WriteString(`<input ` + idAttr + ` ` + nameAttr + ` type="checkbox"` + checked)
		if fd.Required {
			buf.WriteString(` required`)
		}
		buf.WriteString(`>` + "\n")

	case "radio":
		for i, opt := range fd.Options {
			radioID := fmt.Sprintf("fld-%s-%d", key, i)
			checked := ""
			if val == opt {
				checked = ` checked`
			}
			buf.WriteString(`<div class="radio-option">` + "\n")
			buf.WriteString(`<input id="` + html.EscapeString(radioID) + `" ` + nameAttr + ` type="radio" value="` + html.EscapeString(opt) + `"` + checked)
			if fd.Required {
				buf.WriteString(` required`)
			}
			buf.WriteString(`>` + "\n")
			buf.WriteString(`<label for="` + html.EscapeString(radioID) + `">` + html.EscapeString(opt) + `</label>` + "\n")
			buf.WriteString(`</div>` + "\n")
		}
	}

	for _, msg := range f.ErrorsFor(fd.Name) {
		buf.WriteString(`<span class="error">` + html.EscapeString(msg) + `</span>` + "\n")
	}
	buf.WriteString(`</div>` + "\n")
}

func attrs(buf *bytes.Buffer, fd *FieldDef) {
	if fd.Placeholder != "" {
		buf.WriteString(` placeholder="` + html.EscapeString(fd.Placeholder) + `"`)
	}
	if fd.Required {
		buf.WriteString(` required`)
	}
	if fd.MinLength > 0 {
		buf.WriteString(` minlength="` + strconv.Itoa(fd.MinLength) + `"`)
	}
	if fd.MaxLength > 0 {
		buf.WriteString(` maxlength="` + strconv.Itoa(fd.MaxLength) + `"`)
	}
	if fd.Pattern != "" {
		buf.WriteString(` pattern="` + html.EscapeString(fd.Pattern) + `"`)
	}
}

func optionChoices(opts []string) []Choice {
	out := make([]Choice, len(opts))
	for i, o := range opts {
		out[i] = Choice{Value: o, Label: o}
	}
	return out
}

func writeSelect(buf *bytes.Buffer, idAttr, nameAttr string, fd *FieldDef, val string, choices []Choice) {
	buf.WriteString(`<select ` + idAttr + ` ` + nameAttr + ` class="chosen-select"`)
	if fd.Required {
		buf.WriteString(` required`)
	}
	buf.WriteString(`>` + "\n")
	if !fd.Required {
		buf.WriteString(`<option value="">---------</option>` + "\n")
	}
	for _, c := range choices {
		sel := ""
		if val == c.Value {
			sel = ` selected`
		}
		buf.WriteString(`<option value="` + html.EscapeString(c.Value) + `"` + sel + `>` + html.EscapeString(c.Label) + `</option>` + "\n")
	}
	buf.WriteString(`</select>` + "\n")
}

// writeActions renders save, cancel / back / close, and delete controls.
func writeActions(buf *bytes.Buffer, h Helper) {
	buf.WriteString(`<div class="form-actions">` + "\n")
	buf.WriteString(`<button type="submit" name="save">` + html.EscapeString(h.SaveButtonName) + `</button>` + "\n")

	successURL := h.SuccessURL
	if successURL == "" {
		successURL = "#"
	}
	cancelClass, cancelName := "", "Cancel"
	cancelAttr := `href="` + html.EscapeString(successURL) + `"`
	switch {
	case h.BackButton:
		cancelClass, cancelName = " preview-back", "Back"
	case h.ModalForm:
		cancelName, cancelAttr = "Close", `data-dismiss="modal"`
	}
	buf.WriteString(`<a role="button" class="cancel-btn` + cancelClass + `" ` + cancelAttr + `>` + cancelName + `</a>` + "\n")

	if h.DeleteURL != "" {
		del := h.DeleteURL
		if successURL != "#" {
			sep := "?"
			if strings.Contains(del, "?") {
				sep = "&"
			}
			del += sep + "success_url=" + template.URLQueryEscaper(successURL)
		}
		buf.WriteString(`<a role="button" class="delete-btn" data-toggle="confirmation" href="` + html.EscapeString(del) + `">Delete</a>` + "\n")
	}
	buf.WriteString(`</div>` + "\n")
}
