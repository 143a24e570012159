package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/synchro/internal/sim"
)

type ExportData struct {
	Run     RunMetadata `json:"run"`
	Steps   int         `json:"steps"`
	Samples []Point     `json:"samples"`
}

// Point is the flattened JSON form of one telemetry row.
type Point struct {
	Time          float64 `json:"t"`
	Mode          string  `json:"mode"`
	RPMMain       float64 `json:"rpm_main"`
	RPMFollower   float64 `json:"rpm_follower"`
	RhoMain       float64 `json:"rho_main"`
	RhoFollower   float64 `json:"rho_follower"`
	PhaseError    float64 `json:"phase_error"`
	SpeedErrorRPM float64 `json:"speed_error_rpm"`
	Correction    float64 `json:"correction_rpm"`
	BeatFrequency float64 `json:"beat_hz"`
}

func NewExportData(meta RunMetadata, samples []sim.Sample) ExportData {
	data := ExportData{Run: meta, Steps: len(samples), Samples: make([]Point, len(samples))}
	for i, s := range samples {
		data.Samples[i] = Point{
			Time:          s.Time,
			Mode:          string(s.Mode),
			RPMMain:       s.Main.RPM,
			RPMFollower:   s.Follower.RPM,
			RhoMain:       s.Main.Density,
			RhoFollower:   s.Follower.Density,
			PhaseError:    s.PhaseError,
			SpeedErrorRPM: s.SpeedErrorRPM,
			Correction:    s.Correction,
			BeatFrequency: s.BeatFrequency,
		}
	}
	return data
}

func WriteJSON(w io.Writer, meta RunMetadata, samples []sim.Sample) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewExportData(meta, samples))
}

// ExportJSON writes a stored run to path, or to stdout when path is "" or "-".
func (s *Store) ExportJSON(runID, path string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	samples, err := s.LoadSamples(meta.ID)
	if err != nil {
		return err
	}

	if path == "" || path == "-" {
		return WriteJSON(os.Stdout, *meta, samples)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, *meta, samples)
}
