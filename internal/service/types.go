// Package service contains business logic for the plat-velo platform:
// loading the cycling network, style configuration and map sessions.
package service

import (
	"errors"

	"github.com/joeblew999/plat-velo/internal/mapview"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrLayerNotFound   = errors.New("layer style not found")
)

// SourceFile represents a source data file.
type SourceFile struct {
	Name     string `json:"name" doc:"File name relative to the data directory" example:"sources/ligne-1.geojson"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	FileType string `json:"fileType" doc:"File type: GeoJSON or Counter" example:"GeoJSON"`
	Features int    `json:"features" doc:"Number of features loaded from the file" example:"42"`
}

// CounterRecord is one counter file as produced by the content pipeline.
type CounterRecord struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	IDPdc       int             `json:"idPdc" yaml:"idPdc"`
	Coordinates [2]float64      `json:"coordinates" yaml:"coordinates"`
	Neighbor    *int            `json:"neighbor,omitempty" yaml:"neighbor,omitempty"`
	Path        string          `json:"path,omitempty" yaml:"path,omitempty"`
	Type        string          `json:"type,omitempty" yaml:"type,omitempty"`
	Counts      []mapview.Count `json:"counts" yaml:"counts"`
}

// FeatureFilter narrows the feature collection handed to the composer.
type FeatureFilter struct {
	Status []string `query:"status" json:"status,omitempty" doc:"Keep only sections with these statuses (points are kept)"`
	Line   []int    `query:"line" json:"line,omitempty" doc:"Keep only features of these lines (counters and hazards are kept)"`
}

// Empty reports whether the filter keeps everything.
func (f FeatureFilter) Empty() bool {
	return len(f.Status) == 0 && len(f.Line) == 0
}

// LayerStyle is a per-layer style override.
type LayerStyle struct {
	ID string `json:"id,omitempty" yaml:"-" doc:"Layer identifier" example:"done-sections"`
	mapview.LayerOverride `yaml:",inline"`
}

// LinesConfig configures route colors and paint order.
type LinesConfig struct {
	Colors   []string `json:"colors,omitempty" yaml:"colors,omitempty" doc:"Palette indexed by line number, 1-based"`
	Priority []int    `json:"priority,omitempty" yaml:"priority,omitempty" doc:"Lines from most to least important"`
}

// CountersConfig configures counter ranking.
type CountersConfig struct {
	Top int `json:"top,omitempty" yaml:"top,omitempty" doc:"How many counters get the emphasised style" example:"10"`
}

// StyleConfig is the content of styles.yaml.
type StyleConfig struct {
	Lines    LinesConfig           `json:"lines" yaml:"lines"`
	Counters CountersConfig        `json:"counters" yaml:"counters"`
	Layers   map[string]LayerStyle `json:"layers,omitempty" yaml:"layers,omitempty"`
}

// SessionInfo describes a live map session.
type SessionInfo struct {
	ID        string        `json:"id" doc:"Session identifier" example:"4b0c7f5e-4a8c-4a36-9d59-1c6f0ad3b2a1"`
	Filter    FeatureFilter `json:"filter" doc:"Filter of the last plot"`
	Layers    int           `json:"layers" doc:"Number of layers on the map"`
	Sources   int           `json:"sources" doc:"Number of sources on the map"`
	Animating bool          `json:"animating" doc:"Whether the work-in-progress animation runs"`
	Version   uint64        `json:"version" doc:"Style version, increases on every change"`
}
