// internal/core/domain/detection.go
package domain

import (
	"fmt"
	"sort"
)

// Detection is one finding produced by an artifact's CheckIndicators. It is
// owned by the artifact that created it.
type Detection struct {
	Level   AlertLevel    `json:"level"`
	Title   string        `json:"title"`
	Message string        `json:"message"`
	Type    IndicatorType `json:"type,omitempty"`
	IOC     string        `json:"ioc,omitempty"`
	Context string        `json:"context,omitempty"`
	Record  *Record       `json:"record,omitempty"`
}

// NewIndicatorDetection builds the CRITICAL detection emitted for an IOC hit.
func NewIndicatorDetection(t IndicatorType, keyword, value string) Detection {
	return Detection{
		Level:   AlertCritical,
		Title:   fmt.Sprintf("%s indicator match", t),
		Message: fmt.Sprintf("%s %q matched indicator %q", t, value, keyword),
		Type:    t,
		IOC:     keyword,
		Context: value,
	}
}

// WithRecord returns a copy of d pointing at the record that triggered it.
func (d Detection) WithRecord(r *Record) Detection {
	d.Record = r
	return d
}

func (d Detection) String() string {
	return fmt.Sprintf("[%s] %s: %s", d.Level, d.Title, d.Message)
}

// SortDetections orders by level, most severe first. Equal levels keep their order.
func SortDetections(ds []Detection) {
	sort.SliceStable(ds, func(i, j int) bool {
		return ds[i].Level > ds[j].Level
	})
}

// CountByLevel returns how many detections fall into each level.
func CountByLevel(ds []Detection) map[AlertLevel]int {
	out := make(map[AlertLevel]int)
	for _, d := range ds {
		out[d.Level]++
	}
	return out
}
