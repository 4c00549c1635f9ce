// Package model contains the core data types shared across the scoring engine.
package model

import "time"

// GeoPoint is a coordinate in degrees.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PathPoint is one point of an entry's ordered path. Coordinate and offset are
// decoded independently so each axis can fail on its own.
type PathPoint struct {
	Point     *GeoPoint
	Offset    *float64
	RawPoint  string
	RawOffset string
	// Timed is false for dialects without a per-point offset; the offset axis
	// then follows the coordinate axis.
	Timed bool
}

// PointValid reports whether the coordinate decoded.
func (p PathPoint) PointValid() bool {
	return p.Point != nil
}

// OffsetValid reports whether the offset axis is valid.
func (p PathPoint) OffsetValid() bool {
	if !p.Timed {
		return p.Point != nil
	}
	return p.Offset != nil
}

// Probability is one probability occurrence inside an entry.
type Probability struct {
	Source string
	Value  Number
}

// LevelKind distinguishes the two ways dialects grade a visit.
type LevelKind string

const (
	// LevelHierarchy is an integer hierarchy level.
	LevelHierarchy LevelKind = "hierarchyLevel"
	// LevelConfidence is a location confidence in [0,1].
	LevelConfidence LevelKind = "locationConfidence"
)

// LevelField is the visit grading field for an entry.
type LevelField struct {
	Kind  LevelKind
	Value Number
}

// Activity is a movement sub-record.
type Activity struct {
	From          *GeoPoint
	To            *GeoPoint
	Distance      Number
	Probabilities []Probability
}

// Visit is a stay sub-record.
type Visit struct {
	Level         *LevelField
	Probabilities []Probability
}

// TravelMode carries what is needed to check a claimed mode against speed.
type TravelMode struct {
	StartTime *time.Time
	EndTime   *time.Time
	Label     string
	Distance  Number
}

// LocationEntry is one normalized trip, visit or path segment.
type LocationEntry struct {
	StartTime     *time.Time
	EndTime       *time.Time
	Activity      *Activity
	Visit         *Visit
	Mode          *TravelMode
	RawStart      string
	RawEnd        string
	Path          []PathPoint
	Index         int
	HasPath       bool
	PathMalformed bool
}

// Probabilities returns every probability occurrence in the entry.
func (e LocationEntry) Probabilities() []Probability {
	var out []Probability
	if e.Activity != nil {
		out = append(out, e.Activity.Probabilities...)
	}
	if e.Visit != nil {
		out = append(out, e.Visit.Probabilities...)
	}
	return out
}
