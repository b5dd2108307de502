package requestinfo

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEnrichAjaxFlag(t *testing.T) {
	var got *RequestInfo
	h := Enrich(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/books/", nil)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Accept-Language", "de-CH;q=0.9, en")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("RequestInfo not stored")
	}
	if !got.Ajax {
		t.Error("Ajax = false, want true")
	}
	if got.UA.PrimaryLang != "de-ch" {
		t.Errorf("PrimaryLang = %q", got.UA.PrimaryLang)
	}
}

func TestIsAjaxWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if IsAjax(req) {
		t.Fatal("plain request reported as AJAX")
	}
	req.Header.Set("X-Requested-With", "xmlhttprequest")
	if !IsAjax(req) {
		t.Fatal("header check should be case-insensitive")
	}
}
