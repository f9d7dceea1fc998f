package pipeline

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Rules are the string tables behind the line classifier and the candidate
// scorer. Prefix matching is case-sensitive; keyword matching is not.
type Rules struct {
	TerminatorPrefixes []string `toml:"terminator_prefixes"`
	ScoreKeywords      []string `toml:"score_keywords"`
	EnsembleKeywords   []string `toml:"ensemble_keywords"`
}

func DefaultRules() Rules {
	return Rules{
		TerminatorPrefixes: []string{"Libreto:", "Esiettekanne:", "Tellija:", "Kirjastaja:", "Tekst:", "CD", "Levitaja:", "Eestikeelne tõlge"},
		ScoreKeywords:      []string{"flööt", "klaver", "orkester", "viiul", "sopran", "koor", "keelpillid", "löökpillid"},
		EnsembleKeywords:   []string{"orkester", "ansambel", "koor", "kvartett", "kvintett", "trio", "duo"},
	}
}

// LoadRules reads a TOML file on top of the defaults. A table left out of the
// file keeps its default; an empty list in the file clears it.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, err
	}
	if err := toml.Unmarshal(blob, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse heuristics %s: %w", path, err)
	}
	return rules, nil
}
