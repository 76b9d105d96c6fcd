package normalize

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/wakala/divrecon/internal/domain"
)

//go:embed schema.yaml
var defaultSchemaYAML []byte

// SideSchema holds the ordered column aliases for one booking source.
type SideSchema struct {
	Aliases      map[string][]string `yaml:"aliases"`
	LoanQuantity []string            `yaml:"loan_quantity,omitempty"`
}

// Schema maps both sources onto the canonical field set.
type Schema struct {
	Owner     SideSchema `yaml:"owner"`
	Custodian SideSchema `yaml:"custodian"`
}

// For returns the schema of one side.
func (s *Schema) For(side domain.Side) SideSchema {
	if side == domain.SideOwner {
		return s.Owner
	}
	return s.Custodian
}

// DefaultSchema returns the embedded alias schema.
func DefaultSchema() *Schema {
	s, err := ParseSchema(defaultSchemaYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded schema: %v", err))
	}
	return s
}

// LoadSchema reads an alias schema from a YAML file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return ParseSchema(data)
}

// ParseSchema decodes and validates a YAML alias schema.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects aliases for fields outside the canonical set and
// schemas that cannot produce a pair key.
func (s *Schema) Validate() error {
	known := make(map[string]bool, len(domain.CanonicalFields))
	for _, f := range domain.CanonicalFields {
		known[f] = true
	}
	for _, side := range []domain.Side{domain.SideOwner, domain.SideCustodian} {
		ss := s.For(side)
		for field := range ss.Aliases {
			if !known[field] {
				return fmt.Errorf("schema %s: unknown canonical field %q", side, field)
			}
		}
		for _, f := range []string{domain.FieldEventKey, domain.FieldISIN} {
			if len(ss.Aliases[f]) == 0 {
				return fmt.Errorf("schema %s: no aliases for key field %s", side, f)
			}
		}
	}
	return nil
}

// consumed lists every raw column a side's schema reads, upper-cased.
func (ss SideSchema) consumed() map[string]bool {
	m := make(map[string]bool)
	for _, cols := range ss.Aliases {
		for _, c := range cols {
			m[strings.ToUpper(c)] = true
		}
	}
	for _, c := range ss.LoanQuantity {
		m[strings.ToUpper(c)] = true
	}
	return m
}
