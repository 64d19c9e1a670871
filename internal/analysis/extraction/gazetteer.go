package extraction

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed gazetteer.yaml
var defaultGazetteerYAML []byte

// Gazetteer holds the fixed lists of known city and crop names.
type Gazetteer struct {
	cities map[string]string
	crops  map[string]string
	// longest entry, in words, so phrase scans stay bounded
	maxCityWords int
}

type gazetteerFile struct {
	Cities []string `yaml:"cities"`
	Crops  []string `yaml:"crops"`
}

// ParseGazetteer decodes a YAML gazetteer with `cities` and `crops` lists.
func ParseGazetteer(data []byte) (*Gazetteer, error) {
	var file gazetteerFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode gazetteer: %w", err)
	}

	g := &Gazetteer{
		cities: make(map[string]string, len(file.Cities)),
		crops:  make(map[string]string, len(file.Crops)),
	}
	for _, c := range file.Cities {
		key := normalizeKey(c)
		if key == "" {
			continue
		}
		g.cities[key] = strings.TrimSpace(c)
		if n := len(strings.Fields(key)); n > g.maxCityWords {
			g.maxCityWords = n
		}
	}
	for _, c := range file.Crops {
		key := normalizeKey(c)
		if key == "" {
			continue
		}
		g.crops[key] = key
	}
	return g, nil
}

var (
	defaultGazetteer     *Gazetteer
	defaultGazetteerOnce sync.Once
)

// DefaultGazetteer returns the embedded gazetteer.
func DefaultGazetteer() *Gazetteer {
	defaultGazetteerOnce.Do(func() {
		g, err := ParseGazetteer(defaultGazetteerYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded gazetteer is invalid: %v", err))
		}
		defaultGazetteer = g
	})
	return defaultGazetteer
}

// City returns the canonical spelling when text is exactly a known city.
func (g *Gazetteer) City(text string) (string, bool) {
	c, ok := g.cities[normalizeKey(text)]
	return c, ok
}

// IsCrop reports whether text is a known crop.
func (g *Gazetteer) IsCrop(text string) bool {
	_, ok := g.crops[normalizeKey(text)]
	return ok
}

// FindCity returns the first known city mentioned anywhere in text, trying
// longer phrases first at every position.
func (g *Gazetteer) FindCity(text string) (string, bool) {
	words := strings.Fields(text)
	for i := range words {
		for n := g.maxCityWords; n >= 1; n-- {
			if i+n > len(words) {
				continue
			}
			if c, ok := g.City(strings.Join(words[i:i+n], " ")); ok {
				return c, true
			}
		}
	}
	return "", false
}

// FindCrops returns every known crop mentioned in text, in order.
func (g *Gazetteer) FindCrops(text string) []string {
	words := strings.Fields(text)
	var found []string
	seen := make(map[string]bool)
	for i := 0; i < len(words); i++ {
		if i+1 < len(words) {
			if pair := normalizeKey(words[i] + " " + words[i+1]); g.crops[pair] != "" && !seen[pair] {
				found = append(found, pair)
				seen[pair] = true
				i++
				continue
			}
		}
		if key := normalizeKey(words[i]); g.crops[key] != "" && !seen[key] {
			found = append(found, key)
			seen[key] = true
		}
	}
	return found
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ".,!?;:\"'()")
	return strings.Join(strings.Fields(s), " ")
}
