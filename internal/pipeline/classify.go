package pipeline

import (
	"regexp"
	"strings"
)

type Label string

const (
	LabelContent    Label = "content"
	LabelMetadata   Label = "metadata"
	LabelTerminator Label = "terminator"
)

type MetadataKind string

const (
	MetadataYear     MetadataKind = "year"
	MetadataDuration MetadataKind = "duration"
)

type ClassifiedLine struct {
	Text  string
	Label Label
	Kind  MetadataKind
}

var (
	yearLine     = regexp.MustCompile(`^(\d{4}|\d{4}-\d{4})$`)
	durationLine = regexp.MustCompile(`^\d+('?| min)$`)
)

type Classifier struct {
	terminators []string
}

func NewClassifier(rules Rules) *Classifier {
	return &Classifier{terminators: append([]string(nil), rules.TerminatorPrefixes...)}
}

// Classify labels lines in order and stops after the first terminator, which
// is included in the output with LabelTerminator.
func (c *Classifier) Classify(lines []string) []ClassifiedLine {
	out := make([]ClassifiedLine, 0, len(lines))
	for _, line := range lines {
		switch {
		case yearLine.MatchString(line):
			out = append(out, ClassifiedLine{Text: line, Label: LabelMetadata, Kind: MetadataYear})
		case durationLine.MatchString(line):
			out = append(out, ClassifiedLine{Text: line, Label: LabelMetadata, Kind: MetadataDuration})
		case c.isTerminator(line):
			return append(out, ClassifiedLine{Text: line, Label: LabelTerminator})
		default:
			out = append(out, ClassifiedLine{Text: line, Label: LabelContent})
		}
	}
	return out
}

func (c *Classifier) isTerminator(line string) bool {
	for _, prefix := range c.terminators {
		if prefix != "" && strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
