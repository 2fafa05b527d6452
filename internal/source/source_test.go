package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"noxmap/core-go/internal/sqlcgen"
)

func TestFile_Fetch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metadata.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	mtime := time.Unix(1718000000, 0)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	doc, err := File{Path: path}.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(doc.Body) != "[]" {
		t.Fatalf("unexpected body %q", doc.Body)
	}
	if doc.Token != "1718000000" {
		t.Fatalf("expected mtime token, got %q", doc.Token)
	}
}

func TestFile_Missing(t *testing.T) {
	_, err := File{Path: filepath.Join(t.TempDir(), "nope.json")}.Fetch(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHTTP_Fetch(t *testing.T) {
	lastMod := time.Unix(1700000000, 0).UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/js/metadata.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Last-Modified", lastMod.Format(http.TimeFormat))
		_, _ = w.Write([]byte(`[{"id":"a"}]`))
	}))
	defer srv.Close()

	doc, err := HTTP{URL: srv.URL + "/js/metadata.json"}.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(doc.Body) != `[{"id":"a"}]` {
		t.Fatalf("unexpected body %q", doc.Body)
	}
	if doc.Token != strconv.FormatInt(lastMod.Unix(), 10) {
		t.Fatalf("expected last-modified token, got %q", doc.Token)
	}

	_, err = HTTP{URL: srv.URL + "/missing.json"}.Fetch(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHTTP_ServerErrorAndETag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("ETag", `W/"abc123"`)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if _, err := (HTTP{URL: srv.URL + "/broken"}).Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for 502")
	}

	doc, err := HTTP{URL: srv.URL + "/pois.json"}.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Token != "abc123" {
		t.Fatalf("expected etag token, got %q", doc.Token)
	}
}

type fakeDocumentQueries struct {
	getFn func(ctx context.Context, name string) (sqlcgen.MapDocument, error)
}

func (f fakeDocumentQueries) GetMapDocument(ctx context.Context, name string) (sqlcgen.MapDocument, error) {
	return f.getFn(ctx, name)
}

func TestPostgres_Fetch(t *testing.T) {
	updated := time.Unix(1690000000, 0)
	q := fakeDocumentQueries{getFn: func(ctx context.Context, name string) (sqlcgen.MapDocument, error) {
		if name != "annotations" {
			return sqlcgen.MapDocument{}, pgx.ErrNoRows
		}
		return sqlcgen.MapDocument{Name: name, Body: []byte(`{"pois":[]}`), UpdatedAt: updated}, nil
	}}

	doc, err := Postgres{Queries: q, Name: "annotations"}.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Token != "1690000000" || string(doc.Body) != `{"pois":[]}` {
		t.Fatalf("unexpected document %+v", doc)
	}

	_, err = Postgres{Queries: q, Name: "submaps"}.Fetch(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	q := fakeDocumentQueries{}

	cases := []struct {
		loc  string
		want string
	}{
		{"https://example.test/js/metadata.json", "https://example.test/js/metadata.json"},
		{"pg:submaps", "pg:submaps"},
		{"./html/js/metadata.json", "file:./html/js/metadata.json"},
		{"file:/srv/pois.json", "file:/srv/pois.json"},
	}
	for _, tc := range cases {
		src, err := Open(tc.loc, q)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.loc, err)
		}
		if src.String() != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.loc, tc.want, src.String())
		}
	}

	if _, err := Open("", q); err == nil {
		t.Fatalf("expected error for empty location")
	}
	if _, err := Open("pg:submaps", nil); err == nil {
		t.Fatalf("expected error for pg source without database")
	}
}
