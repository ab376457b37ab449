package assistant

import (
	_ "embed"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yml
var defaultTaxonomyRaw []byte

// Taxonomy is the closed category set the draft extractor is allowed to
// assign.
type Taxonomy struct {
	Categories []TaxonomyCategory `yaml:"categories"`
}

type TaxonomyCategory struct {
	Name     string   `yaml:"name"`
	Examples []string `yaml:"examples"`
}

// LoadTaxonomy reads a category taxonomy from path, or the built-in default
// when path is empty.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	raw := defaultTaxonomyRaw
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read taxonomy file", goerr.V("path", path))
		}
		raw = data
	}

	var t Taxonomy
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, goerr.Wrap(err, "failed to parse taxonomy")
	}
	if len(t.Categories) == 0 {
		return nil, goerr.New("taxonomy has no categories")
	}

	return &t, nil
}

// PromptSection renders the taxonomy as a prompt constraint block.
func (t *Taxonomy) PromptSection() string {
	var b strings.Builder
	b.WriteString("Use ONLY the following categories:\n")
	for _, c := range t.Categories {
		b.WriteString("- " + c.Name)
		if len(c.Examples) > 0 {
			b.WriteString(" (e.g. " + strings.Join(c.Examples, ", ") + ")")
		}
		b.WriteString("\n")
	}
	b.WriteString("If no category fits, use \"other\".")
	return b.String()
}

// Names returns the category names in declaration order.
func (t *Taxonomy) Names() []string {
	names := make([]string, 0, len(t.Categories))
	for _, c := range t.Categories {
		names = append(names, c.Name)
	}
	return names
}
