package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRulesDefaultsWithoutPath(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rules)
}

func TestLoadRulesOverridesTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heuristics.toml")
	body := `
score_keywords = ["tšello", "kannel"]
terminator_prefixes = ["Märkus:"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"tšello", "kannel"}, rules.ScoreKeywords)
	assert.Equal(t, []string{"Märkus:"}, rules.TerminatorPrefixes)
	assert.Equal(t, DefaultRules().EnsembleKeywords, rules.EnsembleKeywords)

	s := NewScorer(rules)
	cand, ok := s.Select([]string{"Kontsert", "Kannel"})
	require.True(t, ok)
	assert.Equal(t, "Kannel", cand.Text)
}

func TestLoadRulesRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heuristics.toml")
	require.NoError(t, os.WriteFile(path, []byte("score_keywords = ["), 0o644))
	_, err := LoadRules(path)
	assert.Error(t, err)
}
