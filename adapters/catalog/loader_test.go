package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	snap, err := Load("testdata")
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Len())
	assert.False(t, snap.Version().IsEmpty())

	glucose, ok := snap.Resolve("Blood Glucose")
	require.True(t, ok, "synonyms resolve case-insensitively")
	assert.Equal(t, "mmol/L", glucose.CanonicalUnit)

	converted, err := snap.Convert(glucose.ID, 90, "mg/dL", "mmol/L")
	require.NoError(t, err)
	assert.InDelta(t, 4.995, converted, 0.001)

	ferritin, ok := snap.Resolve("ferritin")
	require.True(t, ok)
	assert.Len(t, ferritin.ReferenceRanges, 2)
}

func TestLoadVersionTracksContent(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile(filepath.Join("testdata", "basic.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "basic.yaml"), src, 0o644))

	first, err := Load(dir)
	require.NoError(t, err)
	second, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, first.Version(), second.Version(), "unchanged content keeps the version")

	edited := append(src, []byte("\n# annotation\n")...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "basic.yaml"), edited, 0o644))
	third, err := Load(dir)
	require.NoError(t, err)
	assert.NotEqual(t, first.Version(), third.Version())
}

func TestLoadRejectsEmptyDir(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	doc := []byte(`biomarkers:
  - id: glucose
    canonical_name: Glucose
    canonical_unit: mmol/L
  - id: glucose
    canonical_name: Glucose Again
    canonical_unit: mmol/L
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dup.yaml"), doc, 0o644))

	_, err := Load(dir)
	assert.ErrorContains(t, err, "duplicate biomarker id")
}
