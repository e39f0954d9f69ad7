package retriever

import (
	"context"
	"testing"

	"github.com/edward-ap/radiowatch/internal/catalog"
)

func TestRegistryResolveByKind(t *testing.T) {
	reg := NewRegistry(nil, NewBackendSource(fakeTags{title: "fallback"}), testLogger{})

	cases := []struct {
		kind string
		want any
	}{
		{"icy", &icySource{}},
		{"icecast", &icecastSource{}},
		{"somafm", &somafmSource{}},
		{"scrape", &scrapeSource{}},
		{"backend", &backendSource{}},
	}
	for _, tc := range cases {
		src := reg.Resolve(catalog.Station{Name: "X", URL: "http://s", Retriever: tc.kind})
		if src == nil {
			t.Fatalf("Resolve(%q) = nil", tc.kind)
		}
		switch tc.kind {
		case "icy":
			if _, ok := src.(*icySource); !ok {
				t.Errorf("Resolve(icy) = %T", src)
			}
		case "icecast":
			if _, ok := src.(*icecastSource); !ok {
				t.Errorf("Resolve(icecast) = %T", src)
			}
		case "somafm":
			if _, ok := src.(*somafmSource); !ok {
				t.Errorf("Resolve(somafm) = %T", src)
			}
		case "scrape":
			if _, ok := src.(*scrapeSource); !ok {
				t.Errorf("Resolve(scrape) = %T", src)
			}
		case "backend":
			if _, ok := src.(*backendSource); !ok {
				t.Errorf("Resolve(backend) = %T", src)
			}
		}
	}
}

func TestRegistryFallback(t *testing.T) {
	backend := NewBackendSource(fakeTags{title: "A - B"})
	reg := NewRegistry(nil, backend, testLogger{})

	// empty kind and unknown kind both fall back to the backend source
	for _, kind := range []string{"", "shortwave"} {
		src := reg.Resolve(catalog.Station{Name: "X", URL: "http://s", Retriever: kind})
		snap, err := src.Fetch(context.Background(), catalog.Station{})
		if err != nil || snap.Title != "B" {
			t.Fatalf("kind %q: fallback not used, snap=%+v err=%v", kind, snap, err)
		}
	}
}

func TestRegistryStationOverride(t *testing.T) {
	reg := NewRegistry(nil, NewBackendSource(nil), testLogger{})
	override := NewBackendSource(fakeTags{title: "Override - Hit"})
	reg.RegisterStation("Special FM", override)

	st := catalog.Station{Name: "special fm", URL: "http://s", Retriever: "icy"}
	snap, err := reg.Resolve(st).Fetch(context.Background(), st)
	if err != nil || snap.Title != "Hit" {
		t.Fatalf("override not used: snap=%+v err=%v", snap, err)
	}
}
