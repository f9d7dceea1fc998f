package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"koosseis/internal"
)

func TestStripFence(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
		"```json{\"a\":1}```":     `{"a":1}`,
	}
	for in, want := range cases {
		assert.Equal(t, want, StripFence(in), in)
	}
}

func TestParseBareObject(t *testing.T) {
	doc := `{"original_text":"sümfooniaorkester: 2222, 4231, 1+2, keelpillid","category":"orchestra","total_player_count":null,"has_electronics":false,"has_vocal":false,"ensembles":["keelpillid"],"parts":[],"orchestral_layout":{"woodwinds":[2,2,2,2],"brass":[4,2,3,1],"percussion_players":2,"timpani":true,"strings":true,"other":[]}}`
	inst, raw, err := Parse("```json\n" + doc + "\n```")
	require.NoError(t, err)
	assert.Equal(t, internal.CategoryOrchestra, inst.Category)
	assert.Nil(t, inst.TotalPlayerCount)
	require.NotNil(t, inst.OrchestralLayout)
	assert.Equal(t, []int{4, 2, 3, 1}, inst.OrchestralLayout.Brass)
	assert.Equal(t, doc, string(raw))
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"empty":          "   ",
		"not json":       "flööt ja klaver",
		"array":          `[{"category":"solo"}]`,
		"missing":        `{"parts":[]}`,
		"bad role":       `{"category":"solo","parts":[{"instrument_id":"piano","count":1,"role":"lead"}]}`,
		"short layout":   `{"category":"orchestra","orchestral_layout":{"woodwinds":[2,2,2],"percussion_players":0}}`,
		"negative count": `{"category":"chamber","parts":[{"instrument_id":"violin","count":-1}]}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Parse(in)
			assert.Error(t, err)
		})
	}
}
