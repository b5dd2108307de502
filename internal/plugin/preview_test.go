package plugin

import (
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/yanizio/ajaxviews/internal/form"
)

const insertPreviewBook = "INSERT INTO `book` (`pages`, `title`) VALUES (?, ?)"

func previewView(t *testing.T, h *harness) *View {
	return h.view(t, View{
		Name:            "preview_book",
		Plugin:          MustSelect("formpreview", "create"),
		Form:            bookForm,
		PreviewForm:     confirmForm,
		PreviewTemplate: "preview.html",
	})
}

// previewPayload runs the INITIAL stage and returns the sealed primary form.
func previewPayload(t *testing.T, h *harness, v *View) string {
	t.Helper()
	body := url.Values{"title": {"Dune"}, "pages": {"412"}}
	_, p, err := serve(v, post("/books/preview/", body, false), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.(*PreviewPlugin).Stage(); got != StagePreview {
		t.Fatalf("stage = %d", got)
	}
	f := h.rend.data["form"].(*form.Form)
	hidden := f.Helper().Hidden
	if hidden["preview_stage"] != "1" || hidden["preview_model_form"] == "" {
		t.Fatalf("hidden = %v", hidden)
	}
	return hidden["preview_model_form"]
}

func TestPreviewInitialShowsConfirmation(t *testing.T) {
	h := newHarness(t)
	v := previewView(t, h)
	payload := previewPayload(t, h, v)

	if h.rend.page != "preview.html" {
		t.Errorf("template = %q", h.rend.page)
	}
	if h.rend.data["headline"] != "Preview Book" {
		t.Errorf("headline = %v", h.rend.data["headline"])
	}
	md := h.rend.data["model_data"].(map[string]any)
	if md["title"] != "Dune" || md["pages"] != int64(412) {
		t.Errorf("model_data = %v", md)
	}
	f := h.rend.data["form"].(*form.Form)
	if f.SuccessMessage() != "Saved Dune." {
		t.Errorf("success message = %q", f.SuccessMessage())
	}
	if !strings.Contains(f.Helper().SuccessURL, "preview_back=1") {
		t.Errorf("back link = %q", f.Helper().SuccessURL)
	}
	if raw, err := h.env.Signer.Open(payload); err != nil || string(raw) != "pages=412&title=Dune" {
		t.Errorf("payload = %q, %v", raw, err)
	}
}

// The confirmed path and the skip_preview path write the same row.
func TestPreviewConfirmMatchesSkip(t *testing.T) {
	t.Run("confirm", func(t *testing.T) {
		h := newHarness(t)
		v := previewView(t, h)
		payload := previewPayload(t, h, v)
		h.mock.ExpectExec(regexp.QuoteMeta(insertPreviewBook)).
			WithArgs(int64(412), "Dune").
			WillReturnResult(sqlmock.NewResult(42, 1))

		body := url.Values{"preview_stage": {"1"}, "preview_model_form": {payload}, "confirm": {"on"}}
		w, p, err := serve(v, post("/books/preview/", body, false), nil)
		if err != nil {
			t.Fatal(err)
		}
		if p.(*PreviewPlugin).Stage() != StageDone {
			t.Errorf("stage = %d", p.(*PreviewPlugin).Stage())
		}
		if w.Code != http.StatusFound || w.Header().Get("Location") != "/books/42/" {
			t.Fatalf("got %d %q", w.Code, w.Header().Get("Location"))
		}
	})
	t.Run("skip", func(t *testing.T) {
		h := newHarness(t)
		v := previewView(t, h)
		h.mock.ExpectExec(regexp.QuoteMeta(insertPreviewBook)).
			WithArgs(int64(412), "Dune").
			WillReturnResult(sqlmock.NewResult(42, 1))

		body := url.Values{"title": {"Dune"}, "pages": {"412"}, "skip_preview": {"on"}}
		w, _, err := serve(v, post("/books/preview/", body, false), nil)
		if err != nil {
			t.Fatal(err)
		}
		if w.Header().Get("Location") != "/books/42/" {
			t.Fatalf("location = %q", w.Header().Get("Location"))
		}
		if len(h.flash.msgs) != 1 || h.flash.msgs[0] != "Saved Dune." {
			t.Errorf("flash = %v", h.flash.msgs)
		}
	})
}

func TestPreviewPostedMessageWins(t *testing.T) {
	h := newHarness(t)
	v := previewView(t, h)
	payload := previewPayload(t, h, v)
	h.mock.ExpectExec("INSERT INTO `book`").WillReturnResult(sqlmock.NewResult(42, 1))

	body := url.Values{
		"preview_stage":      {"1"},
		"preview_model_form": {payload},
		"confirm":            {"on"},
		"success_message":    {"Dune is on the shelf."},
	}
	if _, _, err := serve(v, post("/books/preview/", body, false), nil); err != nil {
		t.Fatal(err)
	}
	if len(h.flash.msgs) != 1 || h.flash.msgs[0] != "Dune is on the shelf." {
		t.Fatalf("flash = %v", h.flash.msgs)
	}
}

func TestPreviewInvalidConfirmationRerenders(t *testing.T) {
	h := newHarness(t)
	v := previewView(t, h)
	payload := previewPayload(t, h, v)

	body := url.Values{"preview_stage": {"1"}, "preview_model_form": {payload}}
	_, p, err := serve(v, post("/books/preview/", body, false), nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.(*PreviewPlugin).Stage() != StagePreview || h.rend.page != "preview.html" {
		t.Fatalf("stage %d, page %q", p.(*PreviewPlugin).Stage(), h.rend.page)
	}
	if f := h.rend.data["form"].(*form.Form); len(f.ErrorsFor("confirm")) == 0 {
		t.Fatalf("errors = %+v", f.Errors)
	}
}

func TestPreviewTampered(t *testing.T) {
	h := newHarness(t)
	v := previewView(t, h)
	payload := previewPayload(t, h, v)
	raw, _ := base64.RawURLEncoding.DecodeString(payload)
	raw[len(raw)-1] ^= 0xff
	invalid, err := h.env.Signer.Seal([]byte("pages=lots"))
	if err != nil {
		t.Fatal(err)
	}

	forged := []string{
		base64.RawURLEncoding.EncodeToString(raw),
		h.env.Signer.Sign([]byte("pages=1&title=Evil")),
		invalid,
		"",
	}
	for _, f := range forged {
		body := url.Values{"preview_stage": {"1"}, "preview_model_form": {f}, "confirm": {"on"}}
		_, _, err := serve(v, post("/books/preview/", body, false), nil)
		if !errors.Is(err, ErrPreviewTampered) {
			t.Errorf("payload %q: err = %v", f, err)
		}
	}
}

func TestPreviewPayloadHidesPassword(t *testing.T) {
	h := newHarness(t)
	withPassword := &form.FormDef{
		ID:    "pt/protected_book",
		Model: "pt_book",
		Meta:  form.Meta{Headline: "Book"},
		Fields: []form.FieldDef{
			{Name: "title", Type: "text", Required: true},
			{Name: "secret", Type: "password", Required: true},
		},
	}
	v := h.view(t, View{
		Name:        "preview_protected",
		Plugin:      MustSelect("formpreview", "create"),
		Form:        withPassword,
		PreviewForm: confirmForm,
	})
	body := url.Values{"title": {"Dune"}, "secret": {"hunter2"}}
	if _, _, err := serve(v, post("/books/preview/", body, false), nil); err != nil {
		t.Fatal(err)
	}
	payload := h.rend.data["form"].(*form.Form).Helper().Hidden["preview_model_form"]
	raw, _ := base64.RawURLEncoding.DecodeString(payload)
	if strings.Contains(payload, "hunter2") || strings.Contains(string(raw), "hunter2") {
		t.Fatalf("password visible in payload %q", payload)
	}
	if data, err := h.env.Signer.Open(payload); err != nil || !strings.Contains(string(data), "secret=hunter2") {
		t.Fatalf("Open = %q, %v", data, err)
	}
}

func TestPreviewBadStage(t *testing.T) {
	h := newHarness(t)
	v := previewView(t, h)
	for _, stage := range []string{"2", "x"} {
		_, _, err := serve(v, post("/books/preview/", url.Values{"preview_stage": {stage}}, false), nil)
		if !errors.Is(err, ErrBadRequest) {
			t.Errorf("stage %q: err = %v", stage, err)
		}
	}
}

func TestPreviewBackRebindsPrimary(t *testing.T) {
	h := newHarness(t)
	v := previewView(t, h)
	payload := previewPayload(t, h, v)

	q := url.Values{"preview_back": {"1"}, "preview_model_form": {payload}}
	_, p, err := serve(v, get("/books/preview/?"+q.Encode(), true), nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.(*PreviewPlugin).Stage() != StageInitial || h.rend.page != v.Template {
		t.Fatalf("stage %d, page %q", p.(*PreviewPlugin).Stage(), h.rend.page)
	}
	if f := h.rend.data["form"].(*form.Form); f.Value("title") != "Dune" {
		t.Errorf("title = %q", f.Value("title"))
	}
	if h.rend.data["generic_template"] != h.env.Views.AjaxBaseTemplate {
		t.Errorf("layout = %v", h.rend.data["generic_template"])
	}
}

func TestPreviewAjaxDoneAnswersRedirect(t *testing.T) {
	h := newHarness(t)
	v := previewView(t, h)
	payload := previewPayload(t, h, v)
	h.mock.ExpectExec("INSERT INTO `book`").WillReturnResult(sqlmock.NewResult(42, 1))

	body := url.Values{"preview_stage": {"1"}, "preview_model_form": {payload}, "confirm": {"on"}}
	w, _, err := serve(v, post("/books/preview/", body, true), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := decode(t, w.Body.String()); got["redirect"] != "/books/42/" {
		t.Fatalf("body = %s", w.Body.String())
	}
}
