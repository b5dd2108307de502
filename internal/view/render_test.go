package view

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yanizio/ajaxviews/internal/requestinfo"
)

type fakeURLs map[string]string

func (f fakeURLs) Reverse(name string, _ ...any) (string, error) {
	if u, ok := f[name]; ok {
		return u, nil
	}
	return "", errors.New("no route " + name)
}

func write(t *testing.T, root, rel, body string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestRenderer(t *testing.T, reload bool) (*Renderer, string) {
	t.Helper()
	root := t.TempDir()
	write(t, root, "templates/ajaxviews/base.html",
		`<body>{{ block "content" . }}default{{ end }}</body>`)
	write(t, root, "templates/ajaxviews/__modal_base.html",
		`<div class="modal" id="{{ .modal_id }}">{{ block "content" . }}{{ end }}</div>`)
	write(t, root, "components/library/templates/book_list.html",
		`{{ define "content" }}{{ .headline }} <a href="{{ url "book_add" }}">add</a> `+
			`<script src="{{ static "/js/list.js" }}"></script> {{ browser .request }}{{ end }}`)
	return New(Options{
		TemplatesDir:  filepath.Join(root, "templates"),
		ComponentsDir: filepath.Join(root, "components"),
		StaticURL:     "/static/",
		URLs:          fakeURLs{"book_add": "/books/add/"},
		Reload:        reload,
	}), root
}

func TestRenderDefaultLayout(t *testing.T) {
	r, _ := newTestRenderer(t, false)
	var buf bytes.Buffer
	info := &requestinfo.RequestInfo{UA: requestinfo.UA{Browser: "Firefox"}}
	err := r.Render(&buf, "library/book_list.html", map[string]any{"headline": "Books", "request": info})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := `<body>Books <a href="/books/add/">add</a> <script src="/static/js/list.js"></script> Firefox</body>`
	if buf.String() != want {
		t.Fatalf("got  %s\nwant %s", buf.String(), want)
	}
}

func TestRenderGenericTemplate(t *testing.T) {
	r, _ := newTestRenderer(t, false)
	var buf bytes.Buffer
	err := r.Render(&buf, "library/book_list.html", map[string]any{
		"generic_template": "ajaxviews/__modal_base.html",
		"modal_id":         "m1",
		"headline":         "Books",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(buf.String(), `<div class="modal" id="m1">Books`) {
		t.Fatalf("modal layout not used: %s", buf.String())
	}
}

func TestRenderCachesUnlessReload(t *testing.T) {
	for _, reload := range []bool{false, true} {
		r, root := newTestRenderer(t, reload)
		data := map[string]any{"headline": "v1"}
		if err := r.Render(&bytes.Buffer{}, "library/book_list.html", data); err != nil {
			t.Fatal(err)
		}
		write(t, root, "components/library/templates/book_list.html", `{{ define "content" }}v2{{ end }}`)

		var buf bytes.Buffer
		if err := r.Render(&buf, "library/book_list.html", data); err != nil {
			t.Fatal(err)
		}
		edited := strings.Contains(buf.String(), "v2")
		if edited != reload {
			t.Fatalf("reload=%v: edit visible=%v", reload, edited)
		}
	}
}

func TestRenderTemplatesDirWins(t *testing.T) {
	r, root := newTestRenderer(t, false)
	write(t, root, "templates/library/book_list.html", `{{ define "content" }}override{{ end }}`)
	var buf bytes.Buffer
	if err := r.Render(&buf, "library/book_list.html", map[string]any{}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "<body>override</body>" {
		t.Fatalf("got %s", buf.String())
	}
}

func TestRenderMissingTemplate(t *testing.T) {
	r, _ := newTestRenderer(t, false)
	err := r.Render(&bytes.Buffer{}, "library/../../etc/passwd", map[string]any{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}
