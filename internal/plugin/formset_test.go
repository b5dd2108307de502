package plugin

import (
	"html/template"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestFormsetUpdateListsRows(t *testing.T) {
	h := newHarness(t)
	v := h.view(t, View{Name: "edit_books", Plugin: MustSelect("formset", "update"), Form: bookForm, FormsetExtra: 1})
	h.mock.ExpectQuery(regexp.QuoteMeta("SELECT `book`.* FROM `book`")).
		WillReturnRows(bookRows(1, "Dune").AddRow(int64(2), "Emma", int64(200), "draft", int64(8)))

	_, p, err := serve(v, get("/books/edit/", false), nil)
	if err != nil {
		t.Fatal(err)
	}
	fs := p.(*FormsetPlugin).Formset()
	if len(fs.Forms) != 3 {
		t.Fatalf("forms = %d", len(fs.Forms))
	}
	if fs.Forms[1].Value("title") != "Emma" || fs.Forms[2].Value("title") != "" {
		t.Errorf("values = %q / %q", fs.Forms[1].Value("title"), fs.Forms[2].Value("title"))
	}
	if html := h.rend.data["form_html"].(template.HTML); !strings.Contains(string(html), "form-TOTAL_FORMS") {
		t.Error("no formset markup")
	}
	if h.rend.page != "ajaxviews/generic_formset.html" {
		t.Errorf("template = %q", h.rend.page)
	}
}

func TestFormsetCreateSavesChangedForms(t *testing.T) {
	h := newHarness(t)
	v := h.view(t, View{
		Name:           "add_books",
		Plugin:         MustSelect("formset", "create"),
		Form:           bookForm,
		SuccessURL:     "/books/",
		SuccessMessage: "Saved {count} books.",
	})
	insert := regexp.QuoteMeta("INSERT INTO `book` (`pages`, `title`) VALUES (?, ?)")
	h.mock.ExpectBegin()
	h.mock.ExpectExec(insert).WithArgs(nil, "Dune").WillReturnResult(sqlmock.NewResult(10, 1))
	h.mock.ExpectExec(insert).WithArgs(int64(90), "Emma").WillReturnResult(sqlmock.NewResult(11, 1))
	h.mock.ExpectCommit()

	body := url.Values{
		"form-TOTAL_FORMS": {"3"},
		"form-0-title":     {"Dune"},
		"form-1-title":     {"Emma"},
		"form-1-pages":     {"90"},
	}
	w, _, err := serve(v, post("/books/add/", body, false), nil)
	if err != nil {
		t.Fatal(err)
	}
	if w.Header().Get("Location") != "/books/" {
		t.Fatalf("location = %q", w.Header().Get("Location"))
	}
	if len(h.flash.msgs) != 1 || h.flash.msgs[0] != "Saved 2 books." {
		t.Errorf("flash = %v", h.flash.msgs)
	}
}

func TestFormsetInvalidRerenders(t *testing.T) {
	h := newHarness(t)
	v := h.view(t, View{Name: "add_books", Plugin: MustSelect("formset", "create"), Form: bookForm, SuccessURL: "/books/"})

	body := url.Values{"form-TOTAL_FORMS": {"1"}, "form-0-pages": {"x"}}
	_, p, err := serve(v, post("/books/add/", body, false), nil)
	if err != nil {
		t.Fatal(err)
	}
	fs := p.(*FormsetPlugin).Formset()
	if fs.IsValid() {
		t.Fatal("formset should be invalid")
	}
	if !strings.Contains(string(h.rend.data["form_html"].(template.HTML)), "error") {
		t.Error("errors not rendered")
	}
}
