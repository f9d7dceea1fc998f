package internal

import (
	"encoding/json"
	"strings"
)

type SourceKind string

const (
	SourceComposersJSON SourceKind = "composers_json"
	SourceTableJSON     SourceKind = "table_json"
	SourceSQLite        SourceKind = "sqlite"
	SourceMySQL         SourceKind = "mysql"
)

// SourceRecord is one work read from a source. Description holds the raw
// scraped lines; the table-backed variants carry InstrumentationText instead.
type SourceRecord struct {
	ID                  string
	Composer            string
	Category            string
	Title               string
	Description         []string
	InstrumentationText *string
}

func (r SourceRecord) HasInstrumentationText() bool {
	return r.InstrumentationText != nil
}

func (r SourceRecord) DescriptionText() string {
	return strings.Join(r.Description, "\n")
}

type FailureKind string

const (
	FailureNoCandidate FailureKind = "no_candidate_text"
	FailureRateLimited FailureKind = "rate_limited"
	FailureTransport   FailureKind = "normalization_transport"
	FailureParse       FailureKind = "response_parse"
	FailurePersistence FailureKind = "persistence"
)

type Success struct {
	ID              string          `json:"id"`
	Composer        string          `json:"composer,omitempty"`
	Title           string          `json:"title"`
	WorkID          string          `json:"work_id,omitempty"`
	OriginalText    string          `json:"original_text"`
	Instrumentation json.RawMessage `json:"instrumentation"`
	PersistError    string          `json:"persist_error,omitempty"`
}

type Failure struct {
	ID            string      `json:"id"`
	Composer      string      `json:"composer,omitempty"`
	Title         string      `json:"title"`
	Description   string      `json:"description,omitempty"`
	ExtractedText string      `json:"extracted_text,omitempty"`
	Kind          FailureKind `json:"kind"`
	Error         string      `json:"error"`
}

// Outcome has exactly one of Success or Failure set.
type Outcome struct {
	Success *Success
	Failure *Failure
}

func (o Outcome) Key() string {
	if o.Success != nil {
		return o.Success.ID
	}
	if o.Failure != nil {
		return o.Failure.ID
	}
	return ""
}

type Category string

const (
	CategorySolo      Category = "solo"
	CategoryChamber   Category = "chamber"
	CategoryEnsemble  Category = "ensemble"
	CategoryOrchestra Category = "orchestra"
	CategoryChoir     Category = "choir"
	CategoryVocal     Category = "vocal"
	CategoryOpen      Category = "open"
)

type Role string

const (
	RoleNormal    Role = "normal"
	RoleSoloist   Role = "soloist"
	RoleObbligato Role = "obbligato"
)

type Instrumentation struct {
	OriginalText     string            `json:"original_text"`
	Category         Category          `json:"category" validate:"required,oneof=solo chamber ensemble orchestra choir vocal open"`
	TotalPlayerCount *int              `json:"total_player_count" validate:"omitempty,gte=0"`
	HasElectronics   bool              `json:"has_electronics"`
	HasVocal         bool              `json:"has_vocal"`
	Ensembles        []string          `json:"ensembles"`
	Parts            []Part            `json:"parts" validate:"dive"`
	OrchestralLayout *OrchestralLayout `json:"orchestral_layout" validate:"omitempty"`
}

type Part struct {
	InstrumentID string   `json:"instrument_id"`
	NameET       string   `json:"name_et"`
	NameEN       string   `json:"name_en"`
	Count        int      `json:"count" validate:"gte=0"`
	Doubles      []string `json:"doubles"`
	Role         Role     `json:"role" validate:"omitempty,oneof=normal soloist obbligato"`
	Family       string   `json:"family"`
}

type OrchestralLayout struct {
	Woodwinds         []int    `json:"woodwinds" validate:"omitempty,len=4,dive,gte=0"`
	Brass             []int    `json:"brass" validate:"omitempty,len=4,dive,gte=0"`
	PercussionPlayers int      `json:"percussion_players" validate:"gte=0"`
	Timpani           bool     `json:"timpani"`
	Strings           bool     `json:"strings"`
	Other             []string `json:"other"`
}

type WorkRow struct {
	ID          string
	Composer    string
	Category    string
	Title       string
	Description string
	Koosseis    *string
}

type Composer struct {
	Composer     string             `json:"composer"`
	Compositions []CompositionGroup `json:"compositions"`
}

type CompositionGroup struct {
	Category string `json:"category"`
	Works    []Work `json:"works"`
}

type Work struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}
