package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

type openAPIDoc struct {
	Servers []struct {
		URL string `yaml:"url"`
	} `yaml:"servers"`
	Paths map[string]map[string]any `yaml:"paths"`
}

var routeMethods = map[string]struct{}{
	http.MethodGet: {}, http.MethodPost: {}, http.MethodPut: {}, http.MethodPatch: {}, http.MethodDelete: {},
}

func TestOpenAPIMatchesRouter(t *testing.T) {
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "api", "openapi.yaml")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %q: %v", path, err)
	}
	var doc openAPIDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		t.Fatalf("parse %q: %v", path, err)
	}

	documented := documentedRoutes(doc)
	registered := registeredRoutes(t)

	missing := setDiff(documented, registered)
	extra := setDiff(registered, documented)
	if len(missing) > 0 || len(extra) > 0 {
		var sb strings.Builder
		for _, k := range missing {
			sb.WriteString("  documented but not routed: " + k + "\n")
		}
		for _, k := range extra {
			sb.WriteString("  routed but not documented: " + k + "\n")
		}
		t.Fatalf("api/openapi.yaml and the router disagree:\n%s", sb.String())
	}
}

func documentedRoutes(doc openAPIDoc) map[string]struct{} {
	base := ""
	if len(doc.Servers) > 0 {
		base = strings.TrimSuffix(doc.Servers[0].URL, "/")
	}

	out := make(map[string]struct{})
	for p, ops := range doc.Paths {
		for m := range ops {
			method := strings.ToUpper(m)
			if _, ok := routeMethods[method]; !ok {
				continue
			}
			out[method+" "+trimRoute(base+p)] = struct{}{}
		}
	}
	return out
}

func registeredRoutes(t *testing.T) map[string]struct{} {
	t.Helper()

	mux, ok := NewHandler(testLogger(), nil, nil, nil, nil).Router().(*chi.Mux)
	if !ok {
		t.Fatalf("expected *chi.Mux from Router()")
	}

	out := make(map[string]struct{})
	err := chi.Walk(mux, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if _, ok := routeMethods[method]; !ok {
			return nil
		}
		route = trimRoute(route)
		if strings.HasPrefix(route, "/api/") {
			out[method+" "+route] = struct{}{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk router: %v", err)
	}
	return out
}

func trimRoute(route string) string {
	if len(route) > 1 {
		return strings.TrimSuffix(route, "/")
	}
	return route
}

func setDiff(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
