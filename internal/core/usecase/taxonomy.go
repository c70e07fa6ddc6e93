package usecase

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/askbase/internal/core/domain"
)

//go:embed taxonomy.yaml
var taxonomyYAML []byte

type taxonomyCategory struct {
	Name     string   `yaml:"name"`
	Aliases  []string `yaml:"aliases"`
	Keywords []string `yaml:"keywords"`
}

// Taxonomy is the closed category set plus the lexical rules the fallback
// classifier and follow-up override run on.
type Taxonomy struct {
	Categories     []taxonomyCategory `yaml:"categories"`
	Stopwords      []string           `yaml:"stopwords"`
	TechnicalTerms []string           `yaml:"technical_terms"`

	aliasIndex   map[string]domain.Category
	keywordIndex map[string]domain.Category
	stopwordSet  map[string]struct{}
	technicalSet map[string]struct{}
}

func LoadTaxonomy() (*Taxonomy, error) {
	var tax Taxonomy
	if err := yaml.Unmarshal(taxonomyYAML, &tax); err != nil {
		return nil, fmt.Errorf("parse taxonomy yaml: %w", err)
	}
	if len(tax.Categories) == 0 {
		return nil, fmt.Errorf("taxonomy has no categories")
	}
	tax.buildIndexes()
	return &tax, nil
}

// MustLoadTaxonomy is for wiring paths where the embedded file is the only
// source; a broken embed is a programmer error.
func MustLoadTaxonomy() *Taxonomy {
	tax, err := LoadTaxonomy()
	if err != nil {
		panic(err)
	}
	return tax
}

func (t *Taxonomy) buildIndexes() {
	t.aliasIndex = make(map[string]domain.Category)
	t.keywordIndex = make(map[string]domain.Category)
	for _, cat := range t.Categories {
		category := domain.Category(cat.Name)
		t.aliasIndex[strings.ToLower(cat.Name)] = category
		for _, alias := range cat.Aliases {
			t.aliasIndex[strings.ToLower(strings.TrimSpace(alias))] = category
		}
		for _, kw := range cat.Keywords {
			t.keywordIndex[strings.ToLower(strings.TrimSpace(kw))] = category
		}
	}
	t.stopwordSet = make(map[string]struct{}, len(t.Stopwords))
	for _, w := range t.Stopwords {
		t.stopwordSet[strings.ToLower(w)] = struct{}{}
	}
	t.technicalSet = make(map[string]struct{}, len(t.TechnicalTerms))
	for _, w := range t.TechnicalTerms {
		t.technicalSet[strings.ToLower(w)] = struct{}{}
	}
}

func (t *Taxonomy) isStopword(token string) bool {
	_, ok := t.stopwordSet[token]
	return ok
}

func (t *Taxonomy) isTechnicalTerm(token string) bool {
	_, ok := t.technicalSet[token]
	return ok
}

func (t *Taxonomy) categoryForKeyword(token string) (domain.Category, bool) {
	cat, ok := t.keywordIndex[token]
	return cat, ok
}
