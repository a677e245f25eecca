package hexgrid

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

var ErrUnknownAlphabet = errors.New("unknown alphabet")

//go:embed alphabets.yaml
var alphabetsYAML []byte

type Alphabet struct {
	Name    string   `yaml:"name"`
	Letters []string `yaml:"letters"`
}

type catalog struct {
	Alphabets []Alphabet `yaml:"alphabets"`
}

// DefaultAlphabet is the name of the first alphabet in the catalog.
const DefaultAlphabet = "arabic"

// LoadAlphabets parses a catalog in the alphabets.yaml format.
func LoadAlphabets(data []byte) (map[string]Alphabet, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse alphabets: %w", err)
	}
	out := make(map[string]Alphabet, len(c.Alphabets))
	for _, a := range c.Alphabets {
		if a.Name == "" {
			return nil, errors.New("parse alphabets: entry without a name")
		}
		if len(a.Letters) == 0 {
			return nil, fmt.Errorf("parse alphabets: %s: %w", a.Name, ErrEmptyAlphabet)
		}
		out[a.Name] = a
	}
	return out, nil
}

// LookupAlphabet returns a built-in alphabet by name.
func LookupAlphabet(name string) (Alphabet, error) {
	all, err := LoadAlphabets(alphabetsYAML)
	if err != nil {
		return Alphabet{}, err
	}
	a, ok := all[name]
	if !ok {
		return Alphabet{}, fmt.Errorf("%w: %q", ErrUnknownAlphabet, name)
	}
	return a, nil
}
