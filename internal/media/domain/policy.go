package domain

import (
	"strings"

	"musicaldb_backend/platform/config"
)

// GeometryMode selects how the transcoder shapes output.
type GeometryMode int

const (
	// GeometryFit scales down to fit a bounding box, preserving aspect ratio.
	GeometryFit GeometryMode = iota
	// GeometrySquare center-crops to a square of a fixed edge.
	GeometrySquare
)

// Geometry is the output shape for a purpose.
type Geometry struct {
	Mode      GeometryMode
	MaxWidth  int
	MaxHeight int
	Edge      int
}

// Policy describes everything that differs between purposes.
type Policy struct {
	Purpose      Purpose
	MaxBytes     int64
	AllowedTypes []string
	Geometry     Geometry
	// SelfTargeted purposes attach to the uploader and skip the entity lookup.
	SelfTargeted bool
	// SingleInstance purposes keep at most one asset per owner.
	SingleInstance bool
}

// Allows reports whether mime is on the allow-list.
func (p Policy) Allows(mime string) bool {
	for _, allowed := range p.AllowedTypes {
		if strings.EqualFold(allowed, mime) {
			return true
		}
	}
	return false
}

// Policies is the dispatch table indexed by purpose.
type Policies map[Purpose]Policy

// NewPolicies builds the table from configuration.
func NewPolicies(cfg config.MediaPolicy) Policies {
	return Policies{
		PurposePoster: {
			Purpose:      PurposePoster,
			MaxBytes:     cfg.Poster.MaxBytes,
			AllowedTypes: cfg.Poster.AllowedTypes,
			Geometry: Geometry{
				Mode:      GeometryFit,
				MaxWidth:  cfg.Poster.MaxWidth,
				MaxHeight: cfg.Poster.MaxHeight,
			},
		},
		PurposeProfile: {
			Purpose:        PurposeProfile,
			MaxBytes:       cfg.Profile.MaxBytes,
			AllowedTypes:   cfg.Profile.AllowedTypes,
			Geometry:       Geometry{Mode: GeometrySquare, Edge: cfg.Profile.SquareSize},
			SelfTargeted:   true,
			SingleInstance: true,
		},
	}
}

// For returns the policy for purpose.
func (p Policies) For(purpose Purpose) (Policy, bool) {
	policy, ok := p[purpose]
	return policy, ok
}
