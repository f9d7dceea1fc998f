package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contentOf(lines []string) []string {
	return NewExtractor(DefaultRules()).Extract(lines).Content
}

func TestClassifyMetadataLines(t *testing.T) {
	c := NewClassifier(DefaultRules())
	cases := []struct {
		line string
		kind MetadataKind
	}{
		{line: "2010", kind: MetadataYear},
		{line: "2010-2012", kind: MetadataYear},
		{line: "12'", kind: MetadataDuration},
		{line: "5 min", kind: MetadataDuration},
		{line: "40", kind: MetadataDuration},
	}
	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			got := c.Classify([]string{tc.line})
			require.Len(t, got, 1)
			assert.Equal(t, LabelMetadata, got[0].Label)
			assert.Equal(t, tc.kind, got[0].Kind)
			assert.Empty(t, contentOf([]string{tc.line}))
		})
	}
}

func TestClassifyNearMissesAreContent(t *testing.T) {
	c := NewClassifier(DefaultRules())
	for _, line := range []string{"2010-12", "5 mins", "12' 30\"", "ca 2010", "sopran, 2222"} {
		got := c.Classify([]string{line})
		require.Len(t, got, 1)
		assert.Equal(t, LabelContent, got[0].Label, line)
	}
}

func TestClassifyStopsAtTerminator(t *testing.T) {
	c := NewClassifier(DefaultRules())
	lines := []string{
		"Ooper",
		"2010",
		"sopran, bariton, orkester",
		"Libreto: Jaan Kross",
		"flööt, klaver",
		"Esiettekanne: 2011",
	}
	got := c.Classify(lines)
	require.Len(t, got, 4)
	assert.Equal(t, LabelTerminator, got[3].Label)
	assert.Equal(t, []string{"Ooper", "sopran, bariton, orkester"}, contentOf(lines))
}

func TestClassifyTerminatorIsCaseSensitivePrefix(t *testing.T) {
	lines := []string{"libreto: lowercase is content", "keelpillid", "CD: Estonian Record Productions", "viiul"}
	assert.Equal(t, []string{"libreto: lowercase is content", "keelpillid"}, contentOf(lines))
}

func TestClassifyMetadataBeforeTerminatorCheck(t *testing.T) {
	rules := DefaultRules()
	rules.TerminatorPrefixes = []string{"20"}
	c := NewClassifier(rules)
	// "2010" is a year before it is a terminator; "20 pillimängijat" terminates.
	lines := []string{"2010", "flööt", "20 pillimängijat", "klaver"}
	got := c.Classify(lines)
	require.Len(t, got, 3)
	assert.Equal(t, LabelMetadata, got[0].Label)
	assert.Equal(t, LabelTerminator, got[2].Label)
}

func TestClassifyPrefixProperty(t *testing.T) {
	c := NewClassifier(DefaultRules())
	inputs := [][]string{
		{},
		{"Tekst: Marie Under"},
		{"Kontsert", "1998", "20'", "viiul, orkester", "Tellija: ERSO", "koor"},
		{"Sümfoonia", "sümfooniaorkester: 2222, 4231, 1+2, keelpillid", "CD ERP 1234", "Levitaja: EMIC"},
	}
	for _, lines := range inputs {
		content := contentOf(lines)
		assert.LessOrEqual(t, len(content), len(lines))

		stop := len(lines)
		for i, line := range lines {
			if c.isTerminator(line) && !yearLine.MatchString(line) && !durationLine.MatchString(line) {
				stop = i
				break
			}
		}
		for _, line := range content {
			assert.Contains(t, lines[:stop], line)
		}
	}
}
