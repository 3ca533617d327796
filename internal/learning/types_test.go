package learning

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseCategory(t *testing.T) {
	for _, c := range Categories {
		parsed, err := ParseCategory(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}

	c, err := ParseCategory("  Architecture ")
	require.NoError(t, err)
	assert.Equal(t, CategoryArchitectural, c)

	_, err = ParseCategory("vibes")
	assert.Error(t, err)
}

func TestCategory_TextEncoding(t *testing.T) {
	type doc struct {
		Category Category `json:"category" yaml:"category"`
	}

	out, err := json.Marshal(doc{Category: CategoryProcess})
	require.NoError(t, err)
	assert.JSONEq(t, `{"category":"process"}`, string(out))

	var fromYAML doc
	require.NoError(t, yaml.Unmarshal([]byte("category: quality\n"), &fromYAML))
	assert.Equal(t, CategoryQuality, fromYAML.Category)

	_, err = json.Marshal(doc{})
	assert.Error(t, err, "zero category must not serialize")
}

func TestParseOutcome(t *testing.T) {
	o, err := ParseOutcome("SUCCESS")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, o)

	_, err = ParseOutcome("meh")
	assert.Error(t, err)
}

func TestNew_InitialStatistics(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New("l-1", "add contract tests", CategoryQuality, now)

	assert.True(t, l.Active)
	assert.Equal(t, InitialConfidence, l.ConfidenceScore)
	assert.Equal(t, 1.0, l.DecayFactor)
	assert.Equal(t, ScaleAny, l.ScaleLevel)
	assert.Zero(t, l.ApplicationCount)
	require.NoError(t, l.Validate())
}

func TestLearning_Validate(t *testing.T) {
	base := New("l-1", "desc", CategoryProcess, time.Now())

	bad := base
	bad.ConfidenceScore = 0.99
	assert.Error(t, bad.Validate(), "confidence above cap")

	bad = base
	bad.DecayFactor = 0.4
	assert.Error(t, bad.Validate(), "decay below floor")

	bad = base
	bad.Category = 0
	assert.Error(t, bad.Validate(), "missing category")

	bad = base
	bad.ScaleLevel = 9
	assert.Error(t, bad.Validate(), "scale out of range")
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" API", "api", "Auth", "", "café"})
	assert.Equal(t, []string{"api", "auth", "café"}, got)
	assert.Nil(t, NormalizeTags(nil))
	assert.Equal(t, []string{"api", "db"}, ParseTags("db, API,,"))
	assert.Nil(t, ParseTags("  "))
}
