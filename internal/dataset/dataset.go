// Package dataset holds the record and sample types shared by the corpus
// pipeline: raw per-source records as they are read, and the canonical
// samples the unifier produces from them.
package dataset

import "strings"

// Label is a canonical binary diagnosis.
type Label string

const (
	Benign    Label = "benign"
	Malignant Label = "malignant"
	// Unmapped marks a raw label that has no entry in its source's table.
	Unmapped Label = "unmapped"
)

// Unknown is substituted for any demographic value that is missing or not
// recognised by the harmonisation tables.
const Unknown = "unknown"

// Classes lists the trainable labels in their canonical order.
func Classes() []Label { return []Label{Benign, Malignant} }

func (l Label) String() string { return string(l) }

// Valid reports whether l is one of the three canonical labels.
func (l Label) Valid() bool {
	switch l {
	case Benign, Malignant, Unmapped:
		return true
	}
	return false
}

// Trainable reports whether l may contribute to class weights.
func (l Label) Trainable() bool { return l == Benign || l == Malignant }

// ParseLabel converts s into a trainable label. Anything else yields
// Unmapped and false.
func ParseLabel(s string) (Label, bool) {
	switch Label(strings.ToLower(strings.TrimSpace(s))) {
	case Benign:
		return Benign, true
	case Malignant:
		return Malignant, true
	}
	return Unmapped, false
}

// Record is one raw entry from a source dataset. Records are read-only:
// nothing in the pipeline mutates them after they are read.
type Record struct {
	SourceID string `json:"source_id" yaml:"source_id"`
	// ID is the source's own primary identifier (image id, md5 hash, ...).
	ID       string `json:"id" yaml:"id"`
	RawLabel string `json:"raw_label" yaml:"raw_label"`
	// ImageRef is an opaque handle to the image, never the pixels.
	ImageRef     string            `json:"image_ref" yaml:"image_ref"`
	Demographics map[string]string `json:"demographics,omitempty" yaml:"demographics,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// PrimaryID returns the identifier used to derive the sample id.
func (r Record) PrimaryID() string {
	if id := strings.TrimSpace(r.ID); id != "" {
		return id
	}
	return strings.TrimSpace(r.ImageRef)
}

// Sample is a record after label and attribute harmonisation.
type Sample struct {
	ID           string            `json:"sample_id" yaml:"sample_id"`
	ImageRef     string            `json:"image_ref" yaml:"image_ref"`
	Label        Label             `json:"binary_label" yaml:"binary_label"`
	Demographics map[string]string `json:"demographics" yaml:"demographics"`
	SourceID     string            `json:"source_id" yaml:"source_id"`
}

// Attribute returns the harmonised value of name, or Unknown.
func (s Sample) Attribute(name string) string {
	if v, ok := s.Demographics[name]; ok && v != "" {
		return v
	}
	return Unknown
}

// SampleID derives the stable sample id for a source and primary id.
// Whitespace inside the identifier is replaced so ids stay single tokens.
func SampleID(sourceID, primaryID string) string {
	clean := strings.Join(strings.Fields(primaryID), "_")
	return strings.TrimSpace(sourceID) + ":" + clean
}
