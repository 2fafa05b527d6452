// Package source fetches the raw map documents from a file, an HTTP endpoint
// or the map_documents table.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"noxmap/core-go/internal/sqlcgen"
)

var ErrNotFound = errors.New("document not found")

// Document is a fetched document. Token is an opaque cache-busting value
// derived from the document's modification time when one is known.
type Document struct {
	Name  string
	Body  []byte
	Token string
}

type Source interface {
	Fetch(ctx context.Context) (Document, error)
	String() string
}

// File reads a document from disk; the token is the file's mtime in unix
// seconds.
type File struct {
	Path string
}

func (f File) Fetch(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	st, err := os.Stat(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Document{}, fmt.Errorf("%w: %s", ErrNotFound, f.Path)
		}
		return Document{}, err
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return Document{}, err
	}
	return Document{Name: f.Path, Body: b, Token: unixToken(st.ModTime())}, nil
}

func (f File) String() string { return "file:" + f.Path }

// HTTP fetches a document with GET. The token comes from Last-Modified, or
// the ETag when Last-Modified is missing.
type HTTP struct {
	URL    string
	Client *http.Client
}

const maxDocumentBytes = 32 << 20

func (h HTTP) Fetch(ctx context.Context) (Document, error) {
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return Document{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return Document{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, h.URL)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Document{}, fmt.Errorf("fetch %s: unexpected status %d", h.URL, resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return Document{}, err
	}
	if len(b) > maxDocumentBytes {
		return Document{}, fmt.Errorf("fetch %s: document exceeds %d bytes", h.URL, maxDocumentBytes)
	}

	return Document{Name: h.URL, Body: b, Token: httpToken(resp.Header)}, nil
}

func (h HTTP) String() string { return h.URL }

func httpToken(hdr http.Header) string {
	if lm := hdr.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			return unixToken(t)
		}
	}
	etag := strings.TrimPrefix(hdr.Get("ETag"), "W/")
	return strings.Trim(etag, `"`)
}

// DocumentQueries is the subset of sqlcgen the Postgres source needs.
// *sqlcgen.Queries satisfies it.
type DocumentQueries interface {
	GetMapDocument(ctx context.Context, name string) (sqlcgen.MapDocument, error)
}

// Postgres reads a named row from map_documents; the token is updated_at.
type Postgres struct {
	Queries DocumentQueries
	Name    string
}

func (p Postgres) Fetch(ctx context.Context) (Document, error) {
	if p.Queries == nil {
		return Document{}, errors.New("postgres source: database not configured")
	}
	row, err := p.Queries.GetMapDocument(ctx, p.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, fmt.Errorf("%w: map_documents/%s", ErrNotFound, p.Name)
		}
		return Document{}, err
	}
	return Document{Name: row.Name, Body: row.Body, Token: unixToken(row.UpdatedAt)}, nil
}

func (p Postgres) String() string { return "pg:" + p.Name }

// Open picks a source from a location string: http(s) URLs, "pg:<name>" rows
// in map_documents, or a file path.
func Open(location string, q DocumentQueries) (Source, error) {
	loc := strings.TrimSpace(location)
	switch {
	case loc == "":
		return nil, errors.New("empty document location")
	case strings.HasPrefix(loc, "http://"), strings.HasPrefix(loc, "https://"):
		return HTTP{URL: loc}, nil
	case strings.HasPrefix(loc, "pg:"):
		name := strings.TrimPrefix(loc, "pg:")
		if name == "" {
			return nil, fmt.Errorf("missing document name in %q", loc)
		}
		if q == nil {
			return nil, fmt.Errorf("%q requires DATABASE_URL", loc)
		}
		return Postgres{Queries: q, Name: name}, nil
	default:
		return File{Path: strings.TrimPrefix(loc, "file:")}, nil
	}
}

func unixToken(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.Unix(), 10)
}
