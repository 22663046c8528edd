package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flomentum/domain/core"
	"flomentum/domain/measurement"
	"flomentum/domain/normalize"
)

type measurementFixture struct {
	service      *MeasurementService
	sessions     *fakeSessions
	measurements *fakeMeasurements
	profiles     *fakeProfiles
}

func newMeasurementFixture(t *testing.T) *measurementFixture {
	t.Helper()
	f := &measurementFixture{
		sessions:     newFakeSessions(),
		measurements: newFakeMeasurements(),
		profiles:     newFakeProfiles(),
	}
	f.service = NewMeasurementService(testCatalog(t), f.sessions, f.measurements, f.profiles, 0.01, testLogger())
	return f
}

func TestCreateManualPartialBatch(t *testing.T) {
	f := newMeasurementFixture(t)
	testDate := time.Now().UTC().AddDate(0, 0, -1)

	outcome, err := f.service.CreateManual(context.Background(), "user-1", []normalize.Input{
		{Name: "blood glucose", Value: 95, Unit: "mg/dL"},
		{Name: "Ferritin", Value: 85, Unit: "ng/mL"},
		{Name: "Unobtainium", Value: 1, Unit: "mg/dL"},
	}, testDate, "Acme Labs")
	require.NoError(t, err)

	assert.True(t, outcome.Partial())
	assert.Len(t, outcome.Persisted, 2)
	require.Len(t, outcome.Failed, 1)
	assert.Equal(t, 2, outcome.Failed[0].Index)
	assert.Equal(t, "Unobtainium", outcome.Failed[0].Name)

	// Synonym resolved and unit converted to canonical
	glucose := outcome.Persisted[0]
	assert.Equal(t, core.BiomarkerID("glucose"), glucose.BiomarkerID)
	assert.Equal(t, "mmol/L", glucose.UnitCanonical)
	assert.InDelta(t, 95*0.0555, glucose.ValueCanonical, 0.01)
	assert.Equal(t, measurement.SourceManual, glucose.Source)

	_, err = f.sessions.GetSession(context.Background(), "user-1", outcome.Session.ID)
	assert.NoError(t, err)
}

func TestCreateManualRejectsIntraBatchDuplicate(t *testing.T) {
	f := newMeasurementFixture(t)

	outcome, err := f.service.CreateManual(context.Background(), "user-1", []normalize.Input{
		{Name: "Glucose", Value: 95, Unit: "mg/dL"},
		{Name: "blood glucose", Value: 100, Unit: "mg/dL"},
	}, time.Now().UTC(), "")
	require.NoError(t, err)

	assert.Len(t, outcome.Persisted, 1)
	require.Len(t, outcome.Failed, 1)
	assert.Equal(t, 1, outcome.Failed[0].Index)
	assert.True(t, core.IsDuplicateError(core.NewDuplicateError("Glucose", 0)))
}

func TestCreateManualRejectsHistoricalDuplicate(t *testing.T) {
	f := newMeasurementFixture(t)
	testDate := time.Now().UTC().AddDate(0, 0, -1)

	first, err := f.service.CreateManual(context.Background(), "user-1", []normalize.Input{
		{Name: "Ferritin", Value: 85, Unit: "ng/mL"},
	}, testDate, "")
	require.NoError(t, err)
	require.Len(t, first.Persisted, 1)

	// Same biomarker, same day, value within the dedup epsilon
	second, err := f.service.CreateManual(context.Background(), "user-1", []normalize.Input{
		{Name: "Ferritin", Value: 85.3, Unit: "ng/mL"},
	}, testDate, "")
	require.NoError(t, err)
	assert.Empty(t, second.Persisted)
	require.Len(t, second.Failed, 1)

	// No session row for an all-failed batch
	_, err = f.sessions.GetSession(context.Background(), "user-1", second.Session.ID)
	assert.True(t, core.IsNotFoundError(err))
}

func TestCreateManualEmptyBatch(t *testing.T) {
	f := newMeasurementFixture(t)
	_, err := f.service.CreateManual(context.Background(), "user-1", nil, time.Now().UTC(), "")
	assert.True(t, core.IsValidationError(err))
}

func TestUpdateMarksAIExtractedAsCorrected(t *testing.T) {
	f := newMeasurementFixture(t)
	m := &measurement.Measurement{
		ID:             core.MeasurementID(core.NewID()),
		UserID:         "user-1",
		BiomarkerID:    "glucose",
		ValueCanonical: 5.2,
		UnitCanonical:  "mmol/L",
		Source:         measurement.SourceAIExtracted,
		TestDate:       time.Now().UTC().AddDate(0, 0, -3),
	}
	require.NoError(t, f.measurements.CreateMeasurement(context.Background(), m))

	updated, err := f.service.Update(context.Background(), "user-1", m.ID, normalize.Input{
		Name: "Glucose", Value: 102, Unit: "mg/dL",
	})
	require.NoError(t, err)
	assert.Equal(t, measurement.SourceCorrected, updated.Source)
	assert.InDelta(t, 102*0.0555, updated.ValueCanonical, 0.01)
}

func TestDeleteCollapsesEmptySession(t *testing.T) {
	f := newMeasurementFixture(t)

	outcome, err := f.service.CreateManual(context.Background(), "user-1", []normalize.Input{
		{Name: "Glucose", Value: 95, Unit: "mg/dL"},
	}, time.Now().UTC(), "")
	require.NoError(t, err)
	require.Len(t, outcome.Persisted, 1)

	require.NoError(t, f.service.Delete(context.Background(), "user-1", outcome.Persisted[0].ID))
	assert.Contains(t, f.sessions.deleted, outcome.Session.ID)
	assert.Empty(t, f.measurements.rows)
}

func TestImportSpreadsheetCSV(t *testing.T) {
	f := newMeasurementFixture(t)
	csv := strings.Join([]string{
		"biomarker,value,unit,test_date",
		"Glucose,95,mg/dL,2026-08-20",
		"Ferritin,85,ng/mL,2026-08-20",
		"Mystery,1,,2026-08-20",
	}, "\n")

	outcome, err := f.service.ImportSpreadsheet(context.Background(), "user-1", strings.NewReader(csv), "results.csv")
	require.NoError(t, err)

	assert.Len(t, outcome.Persisted, 2)
	assert.NotEmpty(t, outcome.Failed)
	assert.Equal(t, measurement.SourceImport, outcome.Persisted[0].Source)
}

func TestHistoryClampsLimit(t *testing.T) {
	f := newMeasurementFixture(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.measurements.CreateMeasurement(context.Background(), &measurement.Measurement{
			ID:          core.MeasurementID(core.NewID()),
			UserID:      "user-1",
			BiomarkerID: "glucose",
			TestDate:    time.Now().UTC().AddDate(0, 0, -i),
		}))
	}
	history, err := f.service.History(context.Background(), "user-1", "glucose", -5)
	require.NoError(t, err)
	assert.Len(t, history, 3)
	// Newest first
	assert.True(t, history[0].TestDate.After(history[1].TestDate))
}
