// Package knowledge holds the table of known trap codes and the normalizer
// that maps firmware variants of a code onto the table's canonical form.
package knowledge

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"ups_trap_gateway/internal/models"
)

//go:embed events.yml
var defaultTable []byte

// ErrInvalidTable is returned when an event table fails validation.
var ErrInvalidTable = errors.New("invalid event table")

type table struct {
	Base   string  `yaml:"base"`
	Events []entry `yaml:"events"`
}

type entry struct {
	Number      int    `yaml:"number"`
	Name        string `yaml:"name"`
	Severity    string `yaml:"severity"`
	Role        string `yaml:"role"`
	Description string `yaml:"description"`
	ClearsWith  string `yaml:"clears_with"`
	Test        bool   `yaml:"test"`
}

// KnowledgeBase is immutable after construction and safe for concurrent reads.
type KnowledgeBase struct {
	base    string
	byCode  map[string]*models.EventRecord
	byName  map[string]*models.EventRecord
	ordered []*models.EventRecord
}

// Default returns the built-in ATS table.
func Default() (*KnowledgeBase, error) {
	return Parse(defaultTable)
}

// Load reads a YAML table from path. An empty path yields the built-in table.
func Load(path string) (*KnowledgeBase, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event table %q: %w", path, err)
	}
	kb, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("event table %q: %w", path, err)
	}
	return kb, nil
}

// Parse builds a knowledge base from YAML. Both trigger → resumption and the
// inverted resumption → triggers pairings are resolved here.
func Parse(raw []byte) (*KnowledgeBase, error) {
	var t table
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode event table: %w", err)
	}
	return build(t)
}

func build(t table) (*KnowledgeBase, error) {
	base := strings.Trim(strings.TrimSpace(t.Base), ".")
	if base == "" {
		return nil, fmt.Errorf("%w: base is empty", ErrInvalidTable)
	}
	if len(t.Events) == 0 {
		return nil, fmt.Errorf("%w: no events", ErrInvalidTable)
	}

	kb := &KnowledgeBase{
		base:    base,
		byCode:  make(map[string]*models.EventRecord, 2*len(t.Events)),
		byName:  make(map[string]*models.EventRecord, len(t.Events)),
		ordered: make([]*models.EventRecord, 0, len(t.Events)),
	}

	seenNumbers := make(map[int]struct{}, len(t.Events))
	for _, e := range t.Events {
		if e.Number <= 0 {
			return nil, fmt.Errorf("%w: event %q has number %d", ErrInvalidTable, e.Name, e.Number)
		}
		if _, dup := seenNumbers[e.Number]; dup {
			return nil, fmt.Errorf("%w: number %d listed twice", ErrInvalidTable, e.Number)
		}
		seenNumbers[e.Number] = struct{}{}

		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: event %d has no name", ErrInvalidTable, e.Number)
		}
		if _, dup := kb.byName[name]; dup {
			return nil, fmt.Errorf("%w: name %q listed twice", ErrInvalidTable, name)
		}
		sev, err := models.ParseSeverity(e.Severity)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidTable, name, err)
		}
		role, err := models.ParseRole(e.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidTable, name, err)
		}

		rec := &models.EventRecord{
			Code:        base + "." + strconv.Itoa(e.Number),
			Name:        name,
			Description: e.Description,
			Severity:    sev,
			Role:        role,
			Test:        e.Test,
		}
		kb.byName[name] = rec
		kb.byCode[rec.Code] = rec
		kb.byCode[base+".0."+strconv.Itoa(e.Number)] = rec
		kb.ordered = append(kb.ordered, rec)
	}

	// Pairings are resolved after every record exists.
	for _, e := range t.Events {
		if e.ClearsWith == "" {
			continue
		}
		trigger := kb.byName[strings.TrimSpace(e.Name)]
		if trigger.Role != models.RoleTrigger {
			return nil, fmt.Errorf("%w: %s has clears_with but role %s", ErrInvalidTable, trigger.Name, trigger.Role)
		}
		resumption, ok := kb.byName[strings.TrimSpace(e.ClearsWith)]
		if !ok {
			return nil, fmt.Errorf("%w: %s clears with unknown event %q", ErrInvalidTable, trigger.Name, e.ClearsWith)
		}
		if resumption.Role != models.RoleResumption {
			return nil, fmt.Errorf("%w: %s clears with %s which is a %s", ErrInvalidTable, trigger.Name, resumption.Name, resumption.Role)
		}
		trigger.Paired = append(trigger.Paired, resumption.Code)
		resumption.Paired = append(resumption.Paired, trigger.Code)
	}
	for _, rec := range kb.ordered {
		sort.Strings(rec.Paired)
	}

	return kb, nil
}

// Base is the canonical code prefix of the table.
func (kb *KnowledgeBase) Base() string { return kb.base }

// Len is the number of distinct events.
func (kb *KnowledgeBase) Len() int { return len(kb.ordered) }

// Lookup resolves a canonical code, in either the <base>.N or <base>.0.N form.
// The returned record's Code is always <base>.N.
func (kb *KnowledgeBase) Lookup(code string) (models.EventRecord, bool) {
	rec, ok := kb.byCode[strings.TrimPrefix(code, ".")]
	if !ok {
		return models.EventRecord{}, false
	}
	return clone(rec), true
}

// PairedCodes returns the counterpart codes of code, or nil.
func (kb *KnowledgeBase) PairedCodes(code string) []string {
	rec, ok := kb.byCode[strings.TrimPrefix(code, ".")]
	if !ok || len(rec.Paired) == 0 {
		return nil
	}
	return append([]string(nil), rec.Paired...)
}

// Severity of code; unknown codes are info.
func (kb *KnowledgeBase) Severity(code string) models.Severity {
	if rec, ok := kb.byCode[strings.TrimPrefix(code, ".")]; ok {
		return rec.Severity
	}
	return models.SeverityInfo
}

func (kb *KnowledgeBase) ByName(name string) (models.EventRecord, bool) {
	rec, ok := kb.byName[strings.TrimSpace(name)]
	if !ok {
		return models.EventRecord{}, false
	}
	return clone(rec), true
}

// Records lists every event in table order.
func (kb *KnowledgeBase) Records() []models.EventRecord {
	out := make([]models.EventRecord, 0, len(kb.ordered))
	for _, rec := range kb.ordered {
		out = append(out, clone(rec))
	}
	return out
}

// clone keeps callers from mutating the shared Paired slice.
func clone(rec *models.EventRecord) models.EventRecord {
	out := *rec
	if rec.Paired != nil {
		out.Paired = append([]string(nil), rec.Paired...)
	}
	return out
}
