package report

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownDefinition is returned when a saved report name is not defined.
var ErrUnknownDefinition = errors.New("unknown report definition")

// Definition is a saved report layout that can be run against any property.
type Definition struct {
	Name        string   `yaml:"-" json:"name"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Metrics     []string `yaml:"metrics" json:"metrics"`
	Dimensions  []string `yaml:"dimensions" json:"dimensions,omitempty"`
	JoinKey     string   `yaml:"join_key" json:"join_key,omitempty"`
	DateRange   string   `yaml:"date_range" json:"date_range,omitempty"`
	Limit       int      `yaml:"limit" json:"limit,omitempty"`
}

// Definitions maps report names to definitions.
type Definitions map[string]Definition

type definitionsFile struct {
	Reports map[string]Definition `yaml:"reports"`
}

// LoadDefinitions parses a YAML document with a top-level "reports" map.
func LoadDefinitions(data []byte) (Definitions, error) {
	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse report definitions: %w", err)
	}

	defs := make(Definitions, len(file.Reports))
	for name, def := range file.Reports {
		if len(def.Metrics) == 0 {
			return nil, fmt.Errorf("report %q: at least one metric is required", name)
		}
		def.Name = name
		defs[name] = def
	}
	return defs, nil
}

// LoadDefinitionsFile reads definitions from path.
func LoadDefinitionsFile(path string) (Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadDefinitions(data)
}

// Get returns the named definition.
func (d Definitions) Get(name string) (Definition, error) {
	def, ok := d[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s (known: %s)", ErrUnknownDefinition, name, strings.Join(d.Names(), ", "))
	}
	return def, nil
}

// Names returns the sorted definition names.
func (d Definitions) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Request binds the definition to a property and date range.
func (d Definition) Request(propertyID, startDate, endDate string) Request {
	return Request{
		PropertyID: propertyID,
		StartDate:  startDate,
		EndDate:    endDate,
		Metrics:    slices.Clone(d.Metrics),
		Dimensions: slices.Clone(d.Dimensions),
		JoinKey:    d.JoinKey,
		Limit:      d.Limit,
	}
}
