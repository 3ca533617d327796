package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/retrolearn/internal/learning"
)

// marshalTags stores normalized tags as a JSON array.
func marshalTags(tags []string) (string, error) {
	norm := learning.NormalizeTags(tags)
	if norm == nil {
		norm = []string{}
	}
	data, err := json.Marshal(norm)
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}
	return string(data), nil
}

func unmarshalTags(s string) ([]string, error) {
	if s == "" || s == "[]" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return tags, nil
}

func toUnixNano(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const learningColumns = `id, description, category, tags, scale_level, project_type, phase,
	base_relevance, application_count, successes, success_rate, confidence_score,
	decay_factor, indexed_at, active, replaced_by`

func scanLearning(row scanner) (learning.Learning, error) {
	var (
		l          learning.Learning
		category   int
		tags       string
		scale      int
		indexedAt  int64
		active     int
		replacedBy sql.NullString
	)
	err := row.Scan(
		&l.ID, &l.Description, &category, &tags, &scale, &l.ProjectType, &l.Phase,
		&l.BaseRelevance, &l.ApplicationCount, &l.Successes, &l.SuccessRate, &l.ConfidenceScore,
		&l.DecayFactor, &indexedAt, &active, &replacedBy,
	)
	if err != nil {
		return learning.Learning{}, err
	}

	l.Category = learning.Category(category)
	l.ScaleLevel = learning.ScaleLevel(scale)
	l.IndexedAt = fromUnixNano(indexedAt)
	l.Active = active != 0
	l.ReplacedBy = replacedBy.String
	if l.Tags, err = unmarshalTags(tags); err != nil {
		return learning.Learning{}, err
	}
	return l, nil
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// isUniqueViolation reports whether err is a SQLite primary key or unique
// constraint failure.
func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			serr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
