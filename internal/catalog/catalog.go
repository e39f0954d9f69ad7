// Package catalog holds the static station list mapping a station name to
// its stream URL and the metadata retriever that works for it.
package catalog

import (
	"fmt"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// Station describes a single radio station entry. Entries are immutable
// after loading.
type Station struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	// Retriever selects the metadata strategy ("icy", "somafm", "icecast",
	// "scrape", "backend"). Empty means the player-backend fallback.
	Retriever string `yaml:"retriever,omitempty"`
	// MetadataURL overrides the endpoint the retriever polls (API endpoint,
	// now-playing page, or sibling stream).
	MetadataURL string `yaml:"metadataUrl,omitempty"`
}

// Catalog is a read-only station collection with case-insensitive lookup.
type Catalog struct {
	stations []Station
	index    map[string]int
}

type fileFormat struct {
	Stations []Station `yaml:"stations"`
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes YAML catalog data and validates the entries.
func Parse(b []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("catalog parse error: %w", err)
	}
	return New(f.Stations)
}

// New builds a catalog from already-decoded stations.
func New(stations []Station) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int, len(stations))}
	for _, st := range stations {
		st.Name = strings.TrimSpace(st.Name)
		st.URL = strings.TrimSpace(st.URL)
		if st.Name == "" {
			return nil, fmt.Errorf("catalog entry without a name")
		}
		if st.URL == "" {
			return nil, fmt.Errorf("station %q has no stream url", st.Name)
		}
		key := strings.ToLower(st.Name)
		if _, dup := c.index[key]; dup {
			return nil, fmt.Errorf("duplicate station %q", st.Name)
		}
		c.index[key] = len(c.stations)
		c.stations = append(c.stations, st)
	}
	return c, nil
}

// Default returns the built-in station list used when no catalog file is
// configured.
func Default() *Catalog {
	c, err := New([]Station{
		{Name: "Radio Sidewinder", URL: "https://radiosidewinder.out.airtime.pro:8000/radiosidewinder_b", Retriever: "icy"},
		{Name: "Hutton Orbital Radio", URL: "https://quincy.torontocast.com/hutton", Retriever: "icy"},
		{Name: "SomaFM Deep Space One", URL: "https://ice.somafm.com/deepspaceone", Retriever: "somafm"},
		{Name: "SomaFM Groove Salad", URL: "https://ice.somafm.com/groovesalad", Retriever: "somafm"},
		{Name: "GalNET Radio", URL: "http://listen.radionomy.com/galnet"},
	})
	if err != nil {
		panic(err) // built-in list is static
	}
	return c
}

// List returns the stations in file order. The returned slice is a copy.
func (c *Catalog) List() []Station {
	out := make([]Station, len(c.stations))
	copy(out, c.stations)
	return out
}

// Lookup finds a station by name (case-insensitive exact match).
func (c *Catalog) Lookup(name string) (Station, bool) {
	i, ok := c.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Station{}, false
	}
	return c.stations[i], true
}

// Len reports the number of stations.
func (c *Catalog) Len() int { return len(c.stations) }
