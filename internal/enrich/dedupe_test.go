package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelmap-ja/stations-cli/internal/model"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "shell station", NormalizeName("Shell Station"))
	assert.Equal(t, "shell station", NormalizeName("  shell   STATION "))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestDedupe_CaseAndWhitespaceVariants(t *testing.T) {
	records := []model.RawStation{
		{Name: "Shell Station", AddressHint: "Kingston"},
		{Name: "shell   station", AddressHint: "somewhere else"},
		{Name: "Texaco Spanish Town"},
	}

	kept, dupCounts := Dedupe(records)

	require.Len(t, kept, 2)
	// First occurrence wins, including its fields.
	assert.Equal(t, "Shell Station", kept[0].Name)
	assert.Equal(t, "Kingston", kept[0].AddressHint)
	assert.Equal(t, "Texaco Spanish Town", kept[1].Name)

	assert.Equal(t, []int{1, 0}, dupCounts)
}

func TestDedupe_NoDuplicates(t *testing.T) {
	records := []model.RawStation{
		{Name: "A"}, {Name: "B"}, {Name: "C"},
	}

	kept, dupCounts := Dedupe(records)

	assert.Len(t, kept, 3)
	assert.Equal(t, []int{0, 0, 0}, dupCounts)
}

func TestDedupe_Empty(t *testing.T) {
	kept, dupCounts := Dedupe(nil)
	assert.Empty(t, kept)
	assert.Empty(t, dupCounts)
}
