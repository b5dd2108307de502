package plugin

import (
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/samber/lo"
)

const (
	selectBook = "SELECT `book`.* FROM `book` WHERE (`book`.`id` = ?) LIMIT 1 OFFSET 0"
	deleteBook = "DELETE FROM `book` WHERE `id` = ?"
)

func coverRows(cover string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "cover"}).AddRow(int64(5), "Dune", cover)
}

func TestDeleteRemovesFilePermAndRow(t *testing.T) {
	h := newHarness(t)
	h.env.MediaRoot = t.TempDir()
	cover := filepath.Join(h.env.MediaRoot, "covers", "dune.jpg")
	if err := os.MkdirAll(filepath.Dir(cover), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cover, []byte("jpg"), 0o644); err != nil {
		t.Fatal(err)
	}
	v := h.view(t, View{
		Name:            "delete_book",
		Plugin:          MustSelect("delete"),
		Model:           ptBook,
		SuccessURL:      "/books/",
		SuccessMessage:  "Deleted {title}.",
		DeleteFileField: "cover",
		RevokePerm:      true,
	})
	h.mock.ExpectQuery(regexp.QuoteMeta(selectBook)).WithArgs(int64(5)).WillReturnRows(coverRows("covers/dune.jpg"))
	h.mock.ExpectExec(regexp.QuoteMeta(deleteBook)).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))

	w, _, err := serve(v, get("/books/5/delete/", false), map[string]string{"pk": "5"})
	if err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/books/" {
		t.Fatalf("got %d %q", w.Code, w.Header().Get("Location"))
	}
	if _, err := os.Stat(cover); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file still present: %v", err)
	}
	if len(h.perms.removed) != 1 || h.perms.removed[0] != int64(5) {
		t.Errorf("removed = %v", h.perms.removed)
	}
	if len(h.flash.msgs) != 1 || h.flash.msgs[0] != "Deleted Dune." {
		t.Errorf("flash = %v", h.flash.msgs)
	}
}

func TestDeleteConfirmationPage(t *testing.T) {
	h := newHarness(t)
	v := h.view(t, View{
		Name:               "delete_book",
		Plugin:             MustSelect("delete"),
		Model:              ptBook,
		SuccessURL:         "/books/",
		DeleteConfirmation: lo.ToPtr(true),
	})
	h.mock.ExpectQuery(regexp.QuoteMeta(selectBook)).WithArgs(int64(5)).WillReturnRows(coverRows(""))

	_, _, err := serve(v, get("/books/5/delete/?modal_id=m3", true), map[string]string{"pk": "5"})
	if err != nil {
		t.Fatal(err)
	}
	if h.rend.page != "ajaxviews/confirm_delete.html" {
		t.Errorf("template = %q", h.rend.page)
	}
	if h.rend.data["modal_id"] != "m3" || h.rend.data["generic_template"] != v.ModalBaseTemplate {
		t.Errorf("modal context = %v / %v", h.rend.data["modal_id"], h.rend.data["generic_template"])
	}
	if h.rend.data["success_url"] != "/books/" {
		t.Errorf("success_url = %v", h.rend.data["success_url"])
	}
}

func TestDeleteAjaxAnswersJSON(t *testing.T) {
	h := newHarness(t)
	h.env.MediaRoot = t.TempDir()
	v := h.view(t, View{Name: "delete_book", Plugin: MustSelect("delete"), Model: ptBook, SuccessURL: "/books/", DeleteFileField: "cover"})
	h.mock.ExpectQuery(regexp.QuoteMeta(selectBook)).WithArgs(int64(5)).WillReturnRows(coverRows("gone.jpg"))
	h.mock.ExpectExec(regexp.QuoteMeta(deleteBook)).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))

	w, _, err := serve(v, post("/books/5/delete/", url.Values{}, true), map[string]string{"pk": "5"})
	if err != nil {
		t.Fatal(err)
	}
	if got := decode(t, w.Body.String()); got["success"] != true {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestDeleteSuccessURLParam(t *testing.T) {
	h := newHarness(t)
	v := h.view(t, View{Name: "delete_book", Plugin: MustSelect("delete"), Model: ptBook, SuccessURL: "/books/"})
	h.mock.ExpectQuery(regexp.QuoteMeta(selectBook)).WithArgs(int64(5)).WillReturnRows(coverRows(""))
	h.mock.ExpectExec(regexp.QuoteMeta(deleteBook)).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))

	w, _, err := serve(v, post("/books/5/delete/?success_url=/authors/7/", url.Values{}, false), map[string]string{"pk": "5"})
	if err != nil {
		t.Fatal(err)
	}
	if w.Header().Get("Location") != "/authors/7/" {
		t.Fatalf("location = %q", w.Header().Get("Location"))
	}
}

func TestDeleteCSRF(t *testing.T) {
	h := newHarness(t)
	v := h.view(t, View{Name: "delete_book", Plugin: MustSelect("delete"), Model: ptBook, SuccessURL: "/books/", CSRF: true})
	_, _, err := serve(v, post("/books/5/delete/", url.Values{"csrf_token": {"forged"}}, false), map[string]string{"pk": "5"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v", err)
	}
}

func TestDeleteGetWithCSRFOnlyConfirms(t *testing.T) {
	h := newHarness(t)
	v := h.view(t, View{Name: "delete_book", Plugin: MustSelect("delete"), Model: ptBook, SuccessURL: "/books/", CSRF: true})
	if *v.DeleteConfirmation {
		t.Fatal("confirmation should default off")
	}
	h.mock.ExpectQuery(regexp.QuoteMeta(selectBook)).WithArgs(int64(5)).WillReturnRows(coverRows(""))

	w, _, err := serve(v, get("/books/5/delete/", false), map[string]string{"pk": "5"})
	if err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusOK || h.rend.page != "ajaxviews/confirm_delete.html" {
		t.Fatalf("got %d, template %q", w.Code, h.rend.page)
	}
	if tok, _ := h.rend.data["csrf_token"].(string); !h.env.Signer.VerifyToken(tok) {
		t.Errorf("csrf_token = %q", tok)
	}
	if len(h.flash.msgs) != 0 {
		t.Errorf("flashed %v", h.flash.msgs)
	}
}

func TestDeleteUnresolvableSuccessURLKeepsRow(t *testing.T) {
	h := newHarness(t)
	v := h.view(t, View{Name: "delete_book", Plugin: MustSelect("delete"), Model: ptBook, SuccessURL: "/books/", RevokePerm: true})
	v.SuccessURL = ""
	h.mock.ExpectQuery(regexp.QuoteMeta(selectBook)).WithArgs(int64(5)).WillReturnRows(coverRows(""))

	_, _, err := serve(v, post("/books/5/delete/", url.Values{}, false), map[string]string{"pk": "5"})
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigError", err)
	}
	if len(h.perms.removed) != 0 {
		t.Errorf("permission revoked before the redirect was known: %v", h.perms.removed)
	}
}
