// pkg/source/synthetic.go
package source

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/medsendx/data-gateway/pkg/model"
)

// ScanProfile describes one synthetic scan: which station produced it
// and the intensity distribution of its pixel grid.
type ScanProfile struct {
	StationID string
	Mean      float64
	StdDev    float64
	Note      string
}

// DefaultFleetProfiles models a small fleet: seven healthy head-CT
// scans, two from a miscalibrated low-dose unit, and one high-contrast
// bone phantom. The two faulty-unit scans should land in the outlier
// cluster of any reasonable QC run.
func DefaultFleetProfiles() []ScanProfile {
	return []ScanProfile{
		{StationID: "MOBILE_CLINIC_01", Mean: 1050, StdDev: 180, Note: "normal head CT"},
		{StationID: "MOBILE_CLINIC_01", Mean: 1020, StdDev: 175, Note: "normal head CT"},
		{StationID: "MOBILE_CLINIC_02", Mean: 1080, StdDev: 190, Note: "normal head CT"},
		{StationID: "MOBILE_CLINIC_02", Mean: 1010, StdDev: 165, Note: "normal head CT"},
		{StationID: "MOBILE_CLINIC_03", Mean: 1060, StdDev: 185, Note: "normal head CT"},
		{StationID: "MOBILE_CLINIC_03", Mean: 1030, StdDev: 170, Note: "normal head CT"},
		{StationID: "MOBILE_CLINIC_01", Mean: 1070, StdDev: 195, Note: "normal head CT"},
		{StationID: "MOBILE_CLINIC_04", Mean: 400, StdDev: 45, Note: "low-dose / possible miscalibration"},
		{StationID: "MOBILE_CLINIC_04", Mean: 380, StdDev: 40, Note: "low-dose / possible miscalibration"},
		{StationID: "MOBILE_CLINIC_05", Mean: 2200, StdDev: 600, Note: "high-contrast bone phantom"},
	}
}

// SyntheticSource generates synthetic scan records from a set of
// profiles. The pixel values follow a normal distribution clipped to
// the scanner's 12-bit range, with a bright square simulating bone.
// Records carry nominal PHI fields so the sanitization pipeline has
// something real to strip.
type SyntheticSource struct {
	profiles []ScanProfile
	gridSize int
	seed     int64
}

// NewSyntheticSource creates a generator over the given profiles. The
// seed makes the pixel data reproducible; record IDs are fresh UUIDs
// on every call.
func NewSyntheticSource(profiles []ScanProfile, gridSize int, seed int64) *SyntheticSource {
	if gridSize <= 0 {
		gridSize = 64
	}
	return &SyntheticSource{
		profiles: profiles,
		gridSize: gridSize,
		seed:     seed,
	}
}

// Records implements Source
func (s *SyntheticSource) Records(ctx context.Context) ([]model.Record, error) {
	rng := rand.New(rand.NewSource(s.seed))
	records := make([]model.Record, 0, len(s.profiles))

	for i, profile := range s.profiles {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		records = append(records, model.Record{
			ID:        uuid.New().String(),
			Meta:      syntheticMeta(i, profile),
			Pixels:    s.pixelGrid(rng, profile),
			StationID: profile.StationID,
		})
	}

	return records, nil
}

// pixelGrid draws a gridSize x gridSize intensity grid from the
// profile's distribution, clipped to [0, 4095], with a bright square
// standing in for dense bone.
func (s *SyntheticSource) pixelGrid(rng *rand.Rand, profile ScanProfile) [][]float64 {
	grid := make([][]float64, s.gridSize)
	for y := range grid {
		row := make([]float64, s.gridSize)
		for x := range row {
			v := rng.NormFloat64()*profile.StdDev + profile.Mean
			if v < 0 {
				v = 0
			} else if v > 4095 {
				v = 4095
			}
			row[x] = v
		}
		grid[y] = row
	}

	bone := profile.Mean * 1.8
	if bone > 4095 {
		bone = 4095
	}
	sq := s.gridSize / 4
	for y := sq; y < sq*2; y++ {
		for x := sq; x < sq*2; x++ {
			grid[y][x] = bone
		}
	}

	return grid
}

// syntheticMeta fills in the nominal PHI header of a generated scan.
func syntheticMeta(index int, profile ScanProfile) *model.Metadata {
	return model.MetadataFromPairs(
		"PatientName", fmt.Sprintf("Test^Patient%02d", index+1),
		"PatientID", fmt.Sprintf("PID%05d", index+1),
		"PatientBirthDate", "19651003",
		"ReferringPhysicianName", "Doe^Jane",
		"InstitutionName", "Mobile Screening Programme",
		"AccessionNumber", fmt.Sprintf("ACC%06d", index+1),
		"StudyDate", "20260815",
		"StudyTime", "142530",
		"Modality", "CT",
		"StationName", profile.StationID,
	)
}
