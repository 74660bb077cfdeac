package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsendx/data-gateway/pkg/model"
)

// TestSyntheticSource_GeneratesOneRecordPerProfile verifies each fleet
// profile yields exactly one record on its own station.
func TestSyntheticSource_GeneratesOneRecordPerProfile(t *testing.T) {
	profiles := DefaultFleetProfiles()
	src := NewSyntheticSource(profiles, 16, 1)

	records, err := src.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, len(profiles))

	for i, rec := range records {
		assert.Equal(t, profiles[i].StationID, rec.StationID)
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, 16*16, rec.PixelCount())
	}
}

// TestSyntheticSource_PixelsReproducibleForSeed verifies two sources
// sharing a seed generate identical pixel data.
func TestSyntheticSource_PixelsReproducibleForSeed(t *testing.T) {
	profiles := DefaultFleetProfiles()
	ctx := context.Background()

	a, err := NewSyntheticSource(profiles, 8, 42).Records(ctx)
	require.NoError(t, err)
	b, err := NewSyntheticSource(profiles, 8, 42).Records(ctx)
	require.NoError(t, err)

	for i := range a {
		assert.Equal(t, a[i].Pixels, b[i].Pixels, "record %d pixel data diverged", i)
	}
}

// TestSyntheticSource_PixelsWithinScannerRange verifies every value
// stays inside the 12-bit intensity range.
func TestSyntheticSource_PixelsWithinScannerRange(t *testing.T) {
	records, err := NewSyntheticSource(DefaultFleetProfiles(), 32, 7).Records(context.Background())
	require.NoError(t, err)

	for _, rec := range records {
		for _, row := range rec.Pixels {
			for _, v := range row {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 4095.0)
			}
		}
	}
}

// TestSyntheticSource_CarriesNominalPHI verifies generated records hold
// identity fields for the sanitization pipeline to strip.
func TestSyntheticSource_CarriesNominalPHI(t *testing.T) {
	records, err := NewSyntheticSource(DefaultFleetProfiles(), 8, 1).Records(context.Background())
	require.NoError(t, err)

	for _, rec := range records {
		assert.True(t, rec.Meta.Has("PatientName"))
		assert.True(t, rec.Meta.Has("PatientID"))
		station, ok := rec.Meta.Get("StationName")
		require.True(t, ok)
		assert.Equal(t, rec.StationID, station)
	}
}

func TestSyntheticSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSyntheticSource(DefaultFleetProfiles(), 8, 1).Records(ctx)
	assert.Error(t, err)
}

func TestDefaultFleetProfiles_Composition(t *testing.T) {
	profiles := DefaultFleetProfiles()
	require.Len(t, profiles, 10)

	lowDose := 0
	for _, p := range profiles {
		if p.Mean < 500 {
			lowDose++
		}
	}
	assert.Equal(t, 2, lowDose, "fleet carries exactly two low-dose outlier scans")
}

func TestSliceSource_CopiesRecords(t *testing.T) {
	original := []model.Record{
		{ID: "a", Meta: model.NewMetadata()},
		{ID: "b", Meta: model.NewMetadata()},
	}
	src := NewSliceSource(original)

	records, err := src.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Reordering the returned slice must not disturb the source
	records[0], records[1] = records[1], records[0]
	again, err := src.Records(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", again[0].ID)
}
