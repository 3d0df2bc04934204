package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FoodGlossary maps the model's category spellings onto the app's canonical
// categories (the extraction reply tends to come back in English, the
// inventory UI is Norwegian) and optionally pins units for known item names.
type FoodGlossary struct {
	CategoryAliases []CategoryAlias `yaml:"category_aliases"`
	UnitHints       []UnitHint      `yaml:"unit_hints"`
}

type CategoryAlias struct {
	Alias    string `yaml:"alias"`
	Category string `yaml:"category"`
}

type UnitHint struct {
	Phrase string `yaml:"phrase"`
	Unit   string `yaml:"unit"`
}

func LoadFoodGlossary(path string) (*FoodGlossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read glossary: %w", err)
	}
	var g FoodGlossary
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse glossary yaml: %w", err)
	}
	return &g, nil
}

func normalizeTextToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ApplyGlossary rewrites candidate categories and units in place. It never
// adds or drops items; an empty glossary is a no-op.
func ApplyGlossary(items []CandidateItem, glossary *FoodGlossary) {
	if glossary == nil {
		return
	}

	aliasMap := make(map[string]string, len(glossary.CategoryAliases))
	for _, a := range glossary.CategoryAliases {
		alias := normalizeTextToken(a.Alias)
		category := strings.TrimSpace(a.Category)
		if alias != "" && category != "" {
			aliasMap[alias] = category
		}
	}

	for i := range items {
		if category, ok := aliasMap[normalizeTextToken(items[i].Category)]; ok {
			items[i].Category = category
		}
		name := normalizeTextToken(items[i].Name)
		for _, hint := range glossary.UnitHints {
			phrase := normalizeTextToken(hint.Phrase)
			if phrase != "" && strings.Contains(name, phrase) && strings.TrimSpace(hint.Unit) != "" {
				items[i].Unit = strings.TrimSpace(hint.Unit)
				break
			}
		}
	}
}
