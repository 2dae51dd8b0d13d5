package models

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadTableSpec reads a YAML table file on top of DefaultTableSpec.
//
// Map entries in the file are merged into the defaults; lists and scalars that
// are present replace them.
//
// Arguments:
//   - path: Path to the YAML file.
//
// Returns:
//   - TableSpec: The merged spec.
//   - error: Error if the file cannot be read or parsed.
func LoadTableSpec(path string) (TableSpec, error) {
	spec := DefaultTableSpec()

	data, err := os.ReadFile(path)
	if err != nil {
		return spec, errors.Wrap(err, "read reference table file")
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return spec, errors.Wrapf(err, "parse reference table file %s", path)
	}
	return spec, nil
}

// LoadReferenceTables loads and validates a table file. An empty path yields
// the defaults.
func LoadReferenceTables(path string) (*ReferenceTables, error) {
	if path == "" {
		return DefaultReferenceTables(), nil
	}
	spec, err := LoadTableSpec(path)
	if err != nil {
		return nil, err
	}
	return NewReferenceTables(spec)
}
