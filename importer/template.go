package importer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ColumnTemplate describes a source system's column naming when it strays
// from the built-in aliases. Colunas maps the exact header text (already
// folded or not, folding is applied at match time) to the logical field name.
type ColumnTemplate struct {
	Nome    string            `yaml:"nome"`
	Colunas map[string]string `yaml:"colunas"`
}

// LoadTemplate reads a column-mapping template from a YAML file.
func LoadTemplate(path string) (*ColumnTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tpl ColumnTemplate
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("invalid column template %s: %v", path, err)
	}
	if len(tpl.Colunas) == 0 {
		return nil, fmt.Errorf("column template %s maps no columns", path)
	}
	return &tpl, nil
}

// aliases layers the template's named columns over the defaults, so a
// template only needs to list the headers that differ.
func (t *ColumnTemplate) aliases() map[string]string {
	merged := make(map[string]string, len(headerAliases)+len(t.Colunas))
	for k, v := range headerAliases {
		merged[k] = v
	}
	for header, field := range t.Colunas {
		merged[foldHeader(header)] = field
	}
	return merged
}
