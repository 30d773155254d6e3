// Package occupancy answers statistical queries over historical per-building
// occupancy records stored as CSV files with date, time and occupancy columns.
package occupancy

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	ErrBuildingNotFound = errors.New("building data not found")
	ErrMissingColumn    = errors.New("missing column")
	ErrNoData           = errors.New("no data")
	ErrInvalidBuilding  = errors.New("invalid building name")
)

// Record is one row of a building file.
type Record struct {
	Date      string
	Time      string
	Occupancy float64
}

// FileName maps a building name to its CSV file.
func FileName(building string) string {
	if strings.EqualFold(building, "calit2") {
		return "CalIt2_net_occupancy.csv"
	}
	return building + ".csv"
}

// ValidBuilding reports whether building names a file directly inside the
// data directory.
func ValidBuilding(building string) bool {
	if building == "" || building == "." || strings.Contains(building, "..") {
		return false
	}
	return !strings.ContainsAny(building, `/\`) && filepath.Base(building) == building
}

// Load reads the records of building from dataDir.
func Load(dataDir, building string) ([]Record, error) {
	if !ValidBuilding(building) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBuilding, building)
	}
	path := filepath.Join(dataDir, FileName(building))
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: could not find data for %q", ErrBuildingNotFound, building)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes CSV records. Header names are matched case-insensitively;
// occupancy values that are not numbers count as zero.
func Parse(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrNoData)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	dateCol, ok := cols["date"]
	if !ok {
		return nil, fmt.Errorf("%w: expected 'date' column", ErrMissingColumn)
	}
	timeCol, hasTime := cols["time"]
	occCol, hasOcc := cols["occupancy"]
	if !hasOcc {
		return nil, fmt.Errorf("%w: 'occupancy' column not found", ErrMissingColumn)
	}

	var records []Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		rec := Record{Date: field(row, dateCol), Occupancy: parseOccupancy(field(row, occCol))}
		if hasTime {
			rec.Time = field(row, timeCol)
		}
		records = append(records, rec)
	}
	return records, nil
}

func field(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseOccupancy(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return v
}

// Query selects records for one date and an optional time window. The window
// only applies when both Start and End are set; times compare as HH:MM:SS
// strings.
type Query struct {
	Building string
	Date     string
	Start    string
	End      string
}

// Report summarizes the selected records.
type Report struct {
	Query
	Total    float64
	Average  float64
	Peak     float64
	PeakTime string
	Minimum  float64
	Points   int
}

// Summarize computes a Report over records. Negative occupancy is clipped to
// zero before aggregation.
func Summarize(records []Record, q Query) (Report, error) {
	var daily []Record
	for _, r := range records {
		if r.Date == q.Date {
			daily = append(daily, r)
		}
	}
	if len(daily) == 0 {
		return Report{}, fmt.Errorf("%w for %s on %s", ErrNoData, q.Building, q.Date)
	}

	selected := daily
	if q.Start != "" && q.End != "" {
		selected = selected[:0:0]
		for _, r := range daily {
			if r.Time >= q.Start && r.Time <= q.End {
				selected = append(selected, r)
			}
		}
		if len(selected) == 0 {
			return Report{}, fmt.Errorf("%w between %s and %s", ErrNoData, q.Start, q.End)
		}
	}

	rep := Report{Query: q, Points: len(selected), Peak: math.Inf(-1), Minimum: math.Inf(1)}
	for _, r := range selected {
		v := math.Max(0, r.Occupancy)
		rep.Total += v
		if v > rep.Peak {
			rep.Peak = v
			rep.PeakTime = r.Time
		}
		if v < rep.Minimum {
			rep.Minimum = v
		}
	}
	rep.Average = rep.Total / float64(rep.Points)
	return rep, nil
}

// Statistics loads building data from dataDir and summarizes it.
func Statistics(dataDir string, q Query) (Report, error) {
	records, err := Load(dataDir, q.Building)
	if err != nil {
		return Report{}, err
	}
	return Summarize(records, q)
}

func (r Report) String() string {
	start, end := "Full Day", "End of Day"
	if r.Start != "" {
		start = r.Start
	}
	if r.End != "" {
		end = r.End
	}
	var b strings.Builder
	fmt.Fprintf(&b, "--- Data Report: %s ---\n", r.Building)
	fmt.Fprintf(&b, "Date: %s\n", r.Date)
	fmt.Fprintf(&b, "Time Range: %s to %s\n", start, end)
	fmt.Fprintf(&b, "Total Count (Sum): %d\n", int64(r.Total))
	fmt.Fprintf(&b, "Average Occupancy: %.1f\n", r.Average)
	fmt.Fprintf(&b, "Peak Occupancy: %s at %s\n", formatCount(r.Peak), r.PeakTime)
	fmt.Fprintf(&b, "Minimum Occupancy: %s\n", formatCount(r.Minimum))
	fmt.Fprintf(&b, "Data Points: %d\n", r.Points)
	return b.String()
}

func formatCount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
