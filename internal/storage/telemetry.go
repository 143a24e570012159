package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/synchro/internal/sim"
)

// telemetry columns, in file order
var columns = []struct {
	name string
	get  func(s *sim.Sample) float64
	set  func(s *sim.Sample, v float64)
}{
	{"time", func(s *sim.Sample) float64 { return s.Time }, func(s *sim.Sample, v float64) { s.Time = v }},
	{"rpm_main", func(s *sim.Sample) float64 { return s.Main.RPM }, func(s *sim.Sample, v float64) { s.Main.RPM = v }},
	{"rpm_follower", func(s *sim.Sample) float64 { return s.Follower.RPM }, func(s *sim.Sample, v float64) { s.Follower.RPM = v }},
	{"theta_main", func(s *sim.Sample) float64 { return s.Main.Theta }, func(s *sim.Sample, v float64) { s.Main.Theta = v }},
	{"theta_follower", func(s *sim.Sample) float64 { return s.Follower.Theta }, func(s *sim.Sample, v float64) { s.Follower.Theta = v }},
	{"rho_main", func(s *sim.Sample) float64 { return s.Main.Density }, func(s *sim.Sample, v float64) { s.Main.Density = v }},
	{"rho_follower", func(s *sim.Sample) float64 { return s.Follower.Density }, func(s *sim.Sample, v float64) { s.Follower.Density = v }},
	{"target_rpm_follower", func(s *sim.Sample) float64 { return s.Follower.TargetRPM }, func(s *sim.Sample, v float64) { s.Follower.TargetRPM = v }},
	{"phase_error", func(s *sim.Sample) float64 { return s.PhaseError }, func(s *sim.Sample, v float64) { s.PhaseError = v }},
	{"speed_error_rpm", func(s *sim.Sample) float64 { return s.SpeedErrorRPM }, func(s *sim.Sample, v float64) { s.SpeedErrorRPM = v }},
	{"correction_rpm", func(s *sim.Sample) float64 { return s.Correction }, func(s *sim.Sample, v float64) { s.Correction = v }},
	{"p", func(s *sim.Sample) float64 { return s.Control.P }, func(s *sim.Sample, v float64) { s.Control.P = v }},
	{"i", func(s *sim.Sample) float64 { return s.Control.I }, func(s *sim.Sample, v float64) { s.Control.I = v }},
	{"d", func(s *sim.Sample) float64 { return s.Control.D }, func(s *sim.Sample, v float64) { s.Control.D = v }},
	{"frequency_term", func(s *sim.Sample) float64 { return s.Control.FrequencyTerm }, func(s *sim.Sample, v float64) { s.Control.FrequencyTerm = v }},
	{"bpf_main", func(s *sim.Sample) float64 { return s.BPFMain }, func(s *sim.Sample, v float64) { s.BPFMain = v }},
	{"bpf_follower", func(s *sim.Sample) float64 { return s.BPFFollower }, func(s *sim.Sample, v float64) { s.BPFFollower = v }},
	{"beat_hz", func(s *sim.Sample) float64 { return s.BeatFrequency }, func(s *sim.Sample, v float64) { s.BeatFrequency = v }},
}

// WriteTelemetry writes samples as CSV with a header row: step, mode, then
// the numeric columns.
func WriteTelemetry(w io.Writer, samples []sim.Sample) error {
	cw := csv.NewWriter(w)

	header := []string{"step", "mode"}
	for _, c := range columns {
		header = append(header, c.name)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for i := range samples {
		s := &samples[i]
		row[0] = strconv.Itoa(s.Step)
		row[1] = string(s.Mode)
		for j, c := range columns {
			row[j+2] = strconv.FormatFloat(c.get(s), 'f', 6, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadTelemetry parses CSV written by WriteTelemetry. Columns are matched
// by header name; unknown columns are ignored and missing ones stay zero.
// A cell that does not parse is an error naming its line and column.
func ReadTelemetry(r io.Reader) ([]sim.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []sim.Sample{}, nil
	}

	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[name] = i
	}
	if _, ok := index["time"]; !ok {
		return nil, fmt.Errorf("telemetry: missing time column")
	}

	samples := make([]sim.Sample, 0, len(records)-1)
	for n, record := range records[1:] {
		line := n + 2
		var s sim.Sample
		if i, ok := index["step"]; ok && i < len(record) {
			step, err := strconv.Atoi(record[i])
			if err != nil {
				return nil, fmt.Errorf("telemetry: line %d, column step: %w", line, err)
			}
			s.Step = step
		}
		if i, ok := index["mode"]; ok && i < len(record) {
			s.Mode = sim.Mode(record[i])
		}
		for _, c := range columns {
			i, ok := index[c.name]
			if !ok || i >= len(record) {
				continue
			}
			v, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, fmt.Errorf("telemetry: line %d, column %s: %w", line, c.name, err)
			}
			c.set(&s, v)
		}
		samples = append(samples, s)
	}
	return samples, nil
}
