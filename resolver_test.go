package gsheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSpreadsheet_URL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantKey string
		wantGID int64
	}{
		{
			name:    "edit URL",
			raw:     "https://docs.google.com/spreadsheets/d/ABC123/edit",
			wantKey: "ABC123",
			wantGID: -1,
		},
		{
			name:    "edit URL with gid fragment",
			raw:     "https://docs.google.com/spreadsheets/d/ABC123/edit#gid=424242",
			wantKey: "ABC123",
			wantGID: 424242,
		},
		{
			name:    "share URL with gid query parameter",
			raw:     "https://docs.google.com/spreadsheets/d/ABC123/view?gid=7&usp=sharing",
			wantKey: "ABC123",
			wantGID: 7,
		},
		{
			name:    "fragment gid wins over query gid",
			raw:     "https://docs.google.com/spreadsheets/d/ABC123/edit?gid=1#gid=2",
			wantKey: "ABC123",
			wantGID: 2,
		},
		{
			name:    "long real-world key",
			raw:     "https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms/edit",
			wantKey: "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms",
			wantGID: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := resolveSpreadsheet(tt.raw, false)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, ref.Key())
			assert.False(t, ref.ByName())
			assert.Equal(t, tt.wantGID, ref.gid)
		})
	}
}

func TestResolveSpreadsheet_URLAndExtractedKeyShareCacheKey(t *testing.T) {
	fromURL, err := resolveSpreadsheet("https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms/edit", false)
	require.NoError(t, err)

	// Re-resolving the extracted key is idempotent and hits the same
	// cache entry.
	fromKey, err := resolveSpreadsheet(fromURL.Key(), false)
	require.NoError(t, err)
	assert.Equal(t, fromURL.CacheKey(), fromKey.CacheKey())
}

func TestResolveSpreadsheet_BareKey(t *testing.T) {
	ref, err := resolveSpreadsheet("1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms", false)
	require.NoError(t, err)
	assert.False(t, ref.ByName())
	assert.Equal(t, "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms", ref.Key())
}

func TestResolveSpreadsheet_NameRequiresServiceAccount(t *testing.T) {
	_, err := resolveSpreadsheet("Quarterly Numbers", false)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	ref, err := resolveSpreadsheet("Quarterly Numbers", true)
	require.NoError(t, err)
	assert.True(t, ref.ByName())
	assert.Equal(t, "Quarterly Numbers", ref.Key())
}

func TestResolveSpreadsheet_Invalid(t *testing.T) {
	_, err := resolveSpreadsheet("", false)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = resolveSpreadsheet("https://docs.google.com/spreadsheets/", false)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestResolveWorksheet_NumericMeaningDependsOnMode(t *testing.T) {
	ref := SpreadsheetRef{kind: spreadsheetByKey, value: "ABC123", gid: -1}

	// Public mode: number is a gid.
	ws := resolveWorksheet("5", ref, false)
	assert.Equal(t, WorksheetGID(5), ws)

	// Service-account mode: number is a tab index.
	ws = resolveWorksheet("5", ref, true)
	assert.Equal(t, WorksheetIndex(5), ws)
}

func TestResolveWorksheet_Title(t *testing.T) {
	ref := SpreadsheetRef{kind: spreadsheetByKey, value: "ABC123", gid: -1}
	ws := resolveWorksheet("Example 1", ref, true)
	assert.Equal(t, WorksheetTitle("Example 1"), ws)
}

func TestResolveWorksheet_Default(t *testing.T) {
	ref := SpreadsheetRef{kind: spreadsheetByKey, value: "ABC123", gid: -1}
	ws := resolveWorksheet("", ref, false)
	assert.True(t, ws.IsDefault())
}

func TestResolveWorksheet_URLGIDBecomesDefault(t *testing.T) {
	ref, err := resolveSpreadsheet("https://docs.google.com/spreadsheets/d/ABC123/edit#gid=99", false)
	require.NoError(t, err)

	ws := resolveWorksheet("", ref, false)
	assert.Equal(t, WorksheetGID(99), ws)

	// An explicit worksheet still beats the URL's gid.
	ws = resolveWorksheet("7", ref, false)
	assert.Equal(t, WorksheetGID(7), ws)
}

func TestWorksheetRef_CacheKeys(t *testing.T) {
	assert.Equal(t, "title:Data", WorksheetTitle("Data").CacheKey())
	assert.Equal(t, "gid:42", WorksheetGID(42).CacheKey())
	assert.Equal(t, "index:0", WorksheetIndex(0).CacheKey())
	assert.NotEqual(t, WorksheetGID(1).CacheKey(), WorksheetIndex(1).CacheKey())
}
