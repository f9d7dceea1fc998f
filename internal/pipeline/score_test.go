package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	s := NewScorer(DefaultRules())
	cases := []struct {
		line string
		want int
	}{
		{line: "Ooper", want: 0},
		{line: "I Un, II Deux", want: 1},
		{line: "2222, 4231", want: 3},
		{line: "Flööt", want: 3},
		{line: "flööt, klaver", want: 4},
		{line: "sümfooniaorkester: 2222, 4231, 1+2, keelpillid", want: 6},
	}
	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			assert.Equal(t, tc.want, s.Score(tc.line))
		})
	}
}

func TestSelectPrefersHigherScore(t *testing.T) {
	s := NewScorer(DefaultRules())
	cand, ok := s.Select([]string{"Ooper", "flööt, klaver"})
	require.True(t, ok)
	assert.Equal(t, "flööt, klaver", cand.Text)
	assert.Equal(t, 1, cand.Index)
}

func TestSelectMovementsThenInstrumentation(t *testing.T) {
	s := NewScorer(DefaultRules())
	cand, ok := s.Select([]string{"flöödikontsert", "I Un", "II Deux", "flööt, sopran, keelpillid"})
	require.True(t, ok)
	// "flöödikontsert" scores 0: the keyword is "flööt", not "flööd".
	assert.Equal(t, "flööt, sopran, keelpillid", cand.Text)
	assert.Equal(t, 4, cand.Score)
}

func TestSelectTiesKeepFirst(t *testing.T) {
	s := NewScorer(DefaultRules())
	cand, ok := s.Select([]string{"Ooper", "viiul", "klaver"})
	require.True(t, ok)
	assert.Equal(t, "viiul", cand.Text)
}

// Known quirk: with no scoring signal the second line is returned even when it
// is a movement title rather than instrumentation.
func TestSelectFallsBackToSecondLineWithoutSignal(t *testing.T) {
	s := NewScorer(DefaultRules())
	cand, ok := s.Select([]string{"Ooper", "I Un", "II Deux"})
	require.True(t, ok)
	assert.Equal(t, "I Un", cand.Text)
	assert.Equal(t, 1, cand.Index)
	assert.Equal(t, 0, cand.Score)
}

func TestSelectSingleLine(t *testing.T) {
	s := NewScorer(DefaultRules())
	cases := []struct {
		line string
		ok   bool
	}{
		{line: "keelpilliorkester", ok: true},
		{line: "Ooper", ok: false},
		{line: "flööt ja klaver", ok: true},
		{line: "flööt,klaver", ok: true},
		{line: "Duo", ok: true},
		{line: "Flööt", ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			cand, ok := s.Select([]string{tc.line})
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.line, cand.Text)
			}
		})
	}
}

func TestSelectEmpty(t *testing.T) {
	s := NewScorer(DefaultRules())
	_, ok := s.Select(nil)
	assert.False(t, ok)
}

func TestExtractorEndToEnd(t *testing.T) {
	e := NewExtractor(DefaultRules())
	x := e.Extract([]string{"Ooper", "2010-2012", "95'", "solistid, segakoor, sümfooniaorkester", "Libreto: Jaan Kross"})
	require.NotNil(t, x.Candidate)
	assert.Equal(t, "solistid, segakoor, sümfooniaorkester", x.Candidate.Text)
	assert.Equal(t, map[string]string{"year": "2010-2012", "duration": "95'"}, x.Metadata())

	x = e.Extract([]string{"Ooper", "2010"})
	assert.Nil(t, x.Candidate)
}
