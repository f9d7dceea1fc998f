package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"koosseis/internal"
	"koosseis/internal/util"
)

// WorkLister is the sqlite works table.
type WorkLister interface {
	ListWorks() ([]internal.WorkRow, error)
}

// TextLister is a database table of pre-extracted instrumentation text.
type TextLister interface {
	ListTexts(ctx context.Context) ([]internal.SourceRecord, error)
}

type Options struct {
	Kind  internal.SourceKind
	Path  string
	Works WorkLister
	Texts TextLister
}

// Load reads every record of the configured source in its stable order.
func Load(ctx context.Context, opts Options) ([]internal.SourceRecord, error) {
	switch opts.Kind {
	case internal.SourceComposersJSON:
		return LoadComposersJSON(opts.Path)
	case internal.SourceTableJSON:
		return LoadTableJSON(opts.Path)
	case internal.SourceSQLite:
		if opts.Works == nil {
			return nil, errors.New("sqlite source needs a works store")
		}
		rows, err := opts.Works.ListWorks()
		if err != nil {
			return nil, err
		}
		return FromWorkRows(rows), nil
	case internal.SourceMySQL:
		if opts.Texts == nil {
			return nil, errors.New("mysql source needs a text store")
		}
		return opts.Texts.ListTexts(ctx)
	default:
		return nil, fmt.Errorf("unsupported source kind: %s", opts.Kind)
	}
}

// WorkID is the key used for scraped works.
func WorkID(composer, title string) string {
	return composer + "_" + title
}

func LoadComposersJSON(path string) ([]internal.SourceRecord, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var composers []internal.Composer
	if err := json.Unmarshal(blob, &composers); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return FlattenComposers(composers), nil
}

// FlattenComposers walks composers, categories and works in document order.
func FlattenComposers(composers []internal.Composer) []internal.SourceRecord {
	var out []internal.SourceRecord
	for _, c := range composers {
		name := c.Composer
		if strings.TrimSpace(name) == "" {
			name = "Unknown"
		}
		for _, group := range c.Compositions {
			for _, w := range group.Works {
				title := w.Title
				if strings.TrimSpace(title) == "" {
					title = "Untitled"
				}
				out = append(out, internal.SourceRecord{
					ID:          WorkID(name, title),
					Composer:    name,
					Category:    group.Category,
					Title:       title,
					Description: util.SplitLines(w.Description),
				})
			}
		}
	}
	return out
}

type tableRow struct {
	ID       flexibleID `json:"id"`
	Pealkiri string     `json:"pealkiri"`
	Title    string     `json:"title"`
	Koosseis *string    `json:"koosseis"`
}

// flexibleID accepts both numeric and string ids from database exports.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexibleID(n.String())
	return nil
}

func LoadTableJSON(path string) ([]internal.SourceRecord, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rows []tableRow
	if err := json.Unmarshal(blob, &rows); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make([]internal.SourceRecord, 0, len(rows))
	for _, row := range rows {
		title := row.Pealkiri
		if title == "" {
			title = row.Title
		}
		text := ""
		if row.Koosseis != nil {
			text = strings.TrimSpace(*row.Koosseis)
		}
		out = append(out, internal.SourceRecord{
			ID:                  string(row.ID),
			Title:               title,
			InstrumentationText: util.StringPtr(text),
		})
	}
	return out, nil
}

// FromWorkRows maps stored works to records. A stored koosseis column takes
// the place of the heuristic extraction.
func FromWorkRows(rows []internal.WorkRow) []internal.SourceRecord {
	out := make([]internal.SourceRecord, 0, len(rows))
	for _, row := range rows {
		rec := internal.SourceRecord{
			ID:          row.ID,
			Composer:    row.Composer,
			Category:    row.Category,
			Title:       row.Title,
			Description: util.SplitLines(row.Description),
		}
		if row.Koosseis != nil {
			rec.InstrumentationText = util.StringPtr(strings.TrimSpace(*row.Koosseis))
		}
		out = append(out, rec)
	}
	return out
}

// ToWorkRows is the inverse used when storing scraped composers.
func ToWorkRows(composers []internal.Composer) []internal.WorkRow {
	var out []internal.WorkRow
	for _, rec := range FlattenComposers(composers) {
		out = append(out, internal.WorkRow{
			ID:          rec.ID,
			Composer:    rec.Composer,
			Category:    rec.Category,
			Title:       rec.Title,
			Description: rec.DescriptionText(),
		})
	}
	return out
}
