// pkg/model/record.go
package model

// Metadata is an ordered mapping of DICOM-style field names to values.
// Field order is preserved across Clone/Set/Delete so that records
// round-trip deterministically. Values are strings, dates or opaque
// binary blobs depending on the field.
type Metadata struct {
	keys   []string
	values map[string]interface{}
}

// NewMetadata creates an empty metadata mapping.
func NewMetadata() *Metadata {
	return &Metadata{
		keys:   make([]string, 0),
		values: make(map[string]interface{}),
	}
}

// MetadataFromPairs builds a metadata mapping from alternating
// name/value pairs, preserving the given order.
func MetadataFromPairs(pairs ...interface{}) *Metadata {
	m := NewMetadata()
	for i := 0; i+1 < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			continue
		}
		m.Set(name, pairs[i+1])
	}
	return m
}

// Get returns the value for a field and whether it is present.
func (m *Metadata) Get(name string) (interface{}, bool) {
	v, ok := m.values[name]
	return v, ok
}

// Has reports whether a field is present.
func (m *Metadata) Has(name string) bool {
	_, ok := m.values[name]
	return ok
}

// Set stores a value for a field. A new field is appended at the end;
// an existing field keeps its position.
func (m *Metadata) Set(name string, value interface{}) {
	if _, exists := m.values[name]; !exists {
		m.keys = append(m.keys, name)
	}
	m.values[name] = value
}

// Delete removes a field entirely.
func (m *Metadata) Delete(name string) {
	if _, exists := m.values[name]; !exists {
		return
	}
	delete(m.values, name)
	for i, k := range m.keys {
		if k == name {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Fields returns the field names in insertion order.
func (m *Metadata) Fields() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of fields.
func (m *Metadata) Len() int {
	return len(m.keys)
}

// Clone returns an independent copy of the metadata. Sanitization
// always works on a clone so the source record is never mutated.
func (m *Metadata) Clone() *Metadata {
	c := &Metadata{
		keys:   make([]string, len(m.keys)),
		values: make(map[string]interface{}, len(m.values)),
	}
	copy(c.keys, m.keys)
	for k, v := range m.values {
		c.values[k] = v
	}
	return c
}

// Record is a single scan as produced by the ingestion boundary:
// an identifier, the metadata header, the raw pixel grid and the
// station that captured it. Records are treated as immutable —
// every transformation produces a new Record.
type Record struct {
	ID        string
	Meta      *Metadata
	Pixels    [][]float64
	StationID string
}

// PixelCount returns the number of pixels in the grid.
func (r *Record) PixelCount() int {
	n := 0
	for _, row := range r.Pixels {
		n += len(row)
	}
	return n
}

// SanitizedRecord is a Record after policy application. Sanitized is
// always true for values produced by the sanitizer; Provenance carries
// the stamped origin value so downstream systems can attribute the scan.
type SanitizedRecord struct {
	Record
	Sanitized  bool
	Provenance string
}

// FeatureVector is the fixed-size numeric summary of one delivered
// record, used for fleet-level quality control.
type FeatureVector struct {
	RecordID   string
	AvgDensity float64 // mean pixel intensity — overall brightness
	Contrast   float64 // population std dev — sharpness / dynamic range
	PeakValue  float64 // max pixel value — densest structure
}
