package vault

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeKV map[string]string

func (f fakeKV) GetKV(_ context.Context, path, key string, _ time.Duration) (string, error) {
	if v, ok := f[path+"#"+key]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func TestResolve(t *testing.T) {
	kv := fakeKV{"secret/ajaxviews#db_password": "s3cret"}
	cases := []struct {
		in      string
		kv      KV
		want    string
		wantErr bool
	}{
		{"plain", nil, "plain", false},
		{"", nil, "", false},
		{"vault:secret/ajaxviews#db_password", kv, "s3cret", false},
		{"vault:secret/ajaxviews#missing", kv, "", true},
		{"vault:secret/ajaxviews", kv, "", true},
		{"vault:#key", kv, "", true},
		{"vault:secret/ajaxviews#db_password", nil, "", true},
	}
	for _, c := range cases {
		got, err := Resolve(context.Background(), c.kv, c.in)
		if (err != nil) != c.wantErr {
			t.Fatalf("Resolve(%q) err = %v, wantErr %v", c.in, err, c.wantErr)
		}
		if !c.wantErr && got != c.want {
			t.Fatalf("Resolve(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSplitMount(t *testing.T) {
	m, rel := splitMount("secret/ajaxviews/db")
	if m != "secret" || rel != "ajaxviews/db" {
		t.Fatalf("splitMount = %q, %q", m, rel)
	}
}
