package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"koosseis/internal"
	"koosseis/internal/normalizer"
)

const (
	resultsSheet  = "instrumentations"
	failuresSheet = "failed"
)

// ExportCheckpointToXLSX writes results and failures into one workbook with a
// sheet each. Result rows that no longer decode keep only the raw JSON.
func ExportCheckpointToXLSX(results []internal.Success, failed []internal.Failure, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), resultsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(failuresSheet); err != nil {
		return err
	}

	writeHeader(f, resultsSheet, []string{
		"id", "composer", "title", "original_text", "category", "total_player_count",
		"has_electronics", "has_vocal", "ensembles", "parts", "persist_error", "instrumentation_json",
	})
	for i, s := range results {
		r := i + 2
		set := rowSetter(f, resultsSheet, r)
		set(1, s.ID)
		set(2, s.Composer)
		set(3, s.Title)
		set(4, s.OriginalText)
		if inst, _, err := normalizer.Parse(string(s.Instrumentation)); err == nil {
			set(5, string(inst.Category))
			set(6, derefInt(inst.TotalPlayerCount))
			set(7, inst.HasElectronics)
			set(8, inst.HasVocal)
			set(9, strings.Join(inst.Ensembles, ", "))
			set(10, partsSummary(inst.Parts))
		}
		set(11, s.PersistError)
		set(12, string(s.Instrumentation))
	}

	writeHeader(f, failuresSheet, []string{"id", "composer", "title", "kind", "error", "extracted_text", "description"})
	for i, fl := range failed {
		set := rowSetter(f, failuresSheet, i+2)
		set(1, fl.ID)
		set(2, fl.Composer)
		set(3, fl.Title)
		set(4, string(fl.Kind))
		set(5, fl.Error)
		set(6, fl.ExtractedText)
		set(7, fl.Description)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func writeHeader(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func rowSetter(f *excelize.File, sheet string, row int) func(col int, value any) {
	return func(col int, value any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, value)
	}
}

func partsSummary(parts []internal.Part) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		name := p.NameEN
		if name == "" {
			name = p.InstrumentID
		}
		entry := fmt.Sprintf("%d× %s", p.Count, name)
		if p.Role != "" && p.Role != internal.RoleNormal {
			entry += " (" + string(p.Role) + ")"
		}
		out = append(out, entry)
	}
	return strings.Join(out, "; ")
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}
