package pipeline

import (
	"regexp"
	"strings"

	"koosseis/internal/util"
)

var shorthandRun = regexp.MustCompile(`\d{4}`)

type Candidate struct {
	Text  string
	Score int
	Index int
}

type Scorer struct {
	scoreKeywords    []string
	ensembleKeywords []string
}

func NewScorer(rules Rules) *Scorer {
	return &Scorer{
		scoreKeywords:    append([]string(nil), rules.ScoreKeywords...),
		ensembleKeywords: append([]string(nil), rules.EnsembleKeywords...),
	}
}

func (s *Scorer) Score(line string) int {
	score := 0
	if strings.Contains(line, ",") {
		score++
	}
	if shorthandRun.MatchString(line) {
		score += 2
	}
	if util.ContainsAny(line, s.scoreKeywords) {
		score += 3
	}
	return score
}

// Select picks the instrumentation line out of the content lines.
//
// With two or more lines the strictly highest score wins and ties keep the
// earlier line. When nothing scores, the line at index 1 is returned as is,
// even if it is a movement title: the first line is usually the work type.
func (s *Scorer) Select(content []string) (Candidate, bool) {
	switch {
	case len(content) >= 2:
		best := -1
		maxScore := 0
		for i, line := range content {
			if score := s.Score(line); score > maxScore {
				maxScore = score
				best = i
			}
		}
		if best >= 0 {
			return Candidate{Text: content[best], Score: maxScore, Index: best}, true
		}
		return Candidate{Text: content[1], Score: 0, Index: 1}, true
	case len(content) == 1:
		line := content[0]
		if strings.Contains(line, " ") || strings.Contains(line, ",") || util.ContainsAny(line, s.ensembleKeywords) {
			return Candidate{Text: line, Score: s.Score(line), Index: 0}, true
		}
		return Candidate{}, false
	default:
		return Candidate{}, false
	}
}

type Extraction struct {
	Lines     []ClassifiedLine
	Content   []string
	Candidate *Candidate
}

// Extractor chains the classifier and the scorer for one description.
type Extractor struct {
	classifier *Classifier
	scorer     *Scorer
}

func NewExtractor(rules Rules) *Extractor {
	return &Extractor{classifier: NewClassifier(rules), scorer: NewScorer(rules)}
}

func (e *Extractor) Extract(lines []string) Extraction {
	classified := e.classifier.Classify(lines)
	out := Extraction{Lines: classified}
	for _, cl := range classified {
		if cl.Label == LabelContent {
			out.Content = append(out.Content, cl.Text)
		}
	}
	if cand, ok := e.scorer.Select(out.Content); ok {
		out.Candidate = &cand
	}
	return out
}

func (x Extraction) Metadata() map[string]string {
	meta := map[string]string{}
	for _, cl := range x.Lines {
		if cl.Label != LabelMetadata {
			continue
		}
		if _, ok := meta[string(cl.Kind)]; !ok {
			meta[string(cl.Kind)] = cl.Text
		}
	}
	return meta
}
