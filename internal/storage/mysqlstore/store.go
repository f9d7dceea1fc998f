// Package mysqlstore reads pre-extracted instrumentation text from the
// catalogue's MySQL database and writes normalized results back to it.
package mysqlstore

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"koosseis/internal"
	"koosseis/internal/util"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Store struct {
	db          *gorm.DB
	sourceTable string
	targetTable string
}

type textRow struct {
	ID       string  `gorm:"column:id"`
	Pealkiri string  `gorm:"column:pealkiri"`
	Koosseis *string `gorm:"column:koosseis"`
}

type instrumentationRow struct {
	ID              string `gorm:"column:id;primaryKey"`
	Title           string `gorm:"column:title"`
	OriginalText    string `gorm:"column:original_text"`
	Instrumentation string `gorm:"column:instrumentation"`
}

func Open(dsn, sourceTable, targetTable string) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}
	return New(db, sourceTable, targetTable)
}

func New(db *gorm.DB, sourceTable, targetTable string) (*Store, error) {
	for _, name := range []string{sourceTable, targetTable} {
		if err := checkIdentifier(name); err != nil {
			return nil, err
		}
	}
	return &Store{db: db, sourceTable: sourceTable, targetTable: targetTable}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListTexts returns the source table ordered by id. A NULL koosseis reads as
// empty text so the record still gets an outcome.
func (s *Store) ListTexts(ctx context.Context) ([]internal.SourceRecord, error) {
	var rows []textRow
	err := s.db.WithContext(ctx).
		Table(s.sourceTable).
		Select("id", "pealkiri", "koosseis").
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.sourceTable, err)
	}
	out := make([]internal.SourceRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out, nil
}

func (r textRow) record() internal.SourceRecord {
	text := ""
	if r.Koosseis != nil {
		text = strings.TrimSpace(*r.Koosseis)
	}
	return internal.SourceRecord{
		ID:                  r.ID,
		Title:               r.Pealkiri,
		InstrumentationText: util.StringPtr(text),
	}
}

// Save upserts one result into the target table keyed by id.
func (s *Store) Save(ctx context.Context, success internal.Success) error {
	return s.upsert(s.db.WithContext(ctx), success).Error
}

func (s *Store) upsert(db *gorm.DB, success internal.Success) *gorm.DB {
	row := instrumentationRow{
		ID:              success.ID,
		Title:           success.Title,
		OriginalText:    success.OriginalText,
		Instrumentation: string(success.Instrumentation),
	}
	return db.Table(s.targetTable).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "original_text", "instrumentation"}),
	}).Create(&row)
}

type Change struct {
	ID     string
	Before string
	After  string
}

type CleanReport struct {
	Updated   int
	Unchanged int
	Changes   []Change
}

type fieldRow struct {
	ID    string  `gorm:"column:id"`
	Value *string `gorm:"column:value"`
}

// CleanField strips markup and collapses whitespace in table.field. With
// dryRun the changes are reported but not written.
func (s *Store) CleanField(ctx context.Context, table, field string, dryRun bool) (CleanReport, error) {
	if err := checkIdentifier(table); err != nil {
		return CleanReport{}, err
	}
	if err := checkIdentifier(field); err != nil {
		return CleanReport{}, err
	}

	var rows []fieldRow
	err := s.db.WithContext(ctx).
		Table(table).
		Select("id, ? AS value", clause.Column{Name: field}).
		Where("? IS NOT NULL", clause.Column{Name: field}).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return CleanReport{}, fmt.Errorf("read %s.%s: %w", table, field, err)
	}

	changes := planClean(rows)
	report := CleanReport{Updated: len(changes), Unchanged: len(rows) - len(changes), Changes: changes}
	if dryRun {
		return report, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ch := range changes {
			if err := tx.Table(table).Where("id = ?", ch.ID).Update(field, ch.After).Error; err != nil {
				return fmt.Errorf("update %s id=%s: %w", table, ch.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return CleanReport{}, err
	}
	return report, nil
}

func planClean(rows []fieldRow) []Change {
	var changes []Change
	for _, row := range rows {
		if row.Value == nil {
			continue
		}
		cleaned := util.CleanHTML(*row.Value)
		if cleaned != *row.Value {
			changes = append(changes, Change{ID: row.ID, Before: *row.Value, After: cleaned})
		}
	}
	return changes
}

func checkIdentifier(name string) error {
	if !identifier.MatchString(name) {
		return fmt.Errorf("invalid table or column name: %q", name)
	}
	return nil
}
