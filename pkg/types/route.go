package types

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validation errors
var (
	ErrEmptyName       = errors.New("name cannot be empty")
	ErrEmptyUtterances = errors.New("utterances cannot be empty")
	ErrEmptyUtterance  = errors.New("utterance cannot be blank")
	ErrNoRoutes        = errors.New("no routes defined")
	ErrDuplicateName   = errors.New("duplicate route name")
)

// Route is a named group of example utterances.
type Route struct {
	Name       string   `json:"name" yaml:"name" mapstructure:"name"`
	Utterances []string `json:"utterances" yaml:"utterances" mapstructure:"utterances"`
}

// Validate checks if the Route has all required fields set.
func (r *Route) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if len(r.Utterances) == 0 {
		return ErrEmptyUtterances
	}
	for _, u := range r.Utterances {
		if strings.TrimSpace(u) == "" {
			return fmt.Errorf("route %q: %w", r.Name, ErrEmptyUtterance)
		}
	}
	return nil
}

// Utterances flattens the utterances of all routes, preserving route order
// and then utterance order within each route.
func Utterances(routes []Route) []string {
	total := 0
	for _, r := range routes {
		total += len(r.Utterances)
	}
	docs := make([]string, 0, total)
	for _, r := range routes {
		docs = append(docs, r.Utterances...)
	}
	return docs
}

// ParseRoutes decodes a YAML list of routes and validates each one.
func ParseRoutes(data []byte) ([]Route, error) {
	var routes []Route
	if err := yaml.Unmarshal(data, &routes); err != nil {
		return nil, fmt.Errorf("failed to parse routes: %w", err)
	}
	if err := ValidateRoutes(routes); err != nil {
		return nil, err
	}
	return routes, nil
}

// ValidateRoutes validates every route and rejects duplicate names.
func ValidateRoutes(routes []Route) error {
	if len(routes) == 0 {
		return ErrNoRoutes
	}
	seen := make(map[string]struct{}, len(routes))
	for i := range routes {
		if err := routes[i].Validate(); err != nil {
			return fmt.Errorf("route %d: %w", i, err)
		}
		if _, dup := seen[routes[i].Name]; dup {
			return fmt.Errorf("route %d: %w %q", i, ErrDuplicateName, routes[i].Name)
		}
		seen[routes[i].Name] = struct{}{}
	}
	return nil
}

// LoadRoutes reads and parses a YAML route file.
func LoadRoutes(path string) ([]Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes file: %w", err)
	}
	return ParseRoutes(data)
}
