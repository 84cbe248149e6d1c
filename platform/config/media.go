package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PosterPolicy bounds poster uploads. Output fits inside MaxWidth x MaxHeight.
type PosterPolicy struct {
	MaxWidth     int      `yaml:"maxWidth"`
	MaxHeight    int      `yaml:"maxHeight"`
	MaxBytes     int64    `yaml:"maxBytes"`
	AllowedTypes []string `yaml:"allowedTypes"`
}

// ProfilePolicy bounds profile picture uploads. Output is SquareSize x SquareSize.
type ProfilePolicy struct {
	SquareSize   int      `yaml:"squareSize"`
	MaxBytes     int64    `yaml:"maxBytes"`
	AllowedTypes []string `yaml:"allowedTypes"`
}

// MediaPolicy is the tunable part of the upload pipeline.
type MediaPolicy struct {
	Poster             PosterPolicy  `yaml:"poster"`
	Profile            ProfilePolicy `yaml:"profile"`
	MaxPixels          int64         `yaml:"maxPixels"`
	JPEGQuality        int           `yaml:"jpegQuality"`
	CleanupConcurrency int           `yaml:"cleanupConcurrency"`
}

var defaultAllowedImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

func mediaPolicyFromEnv() MediaPolicy {
	allowed := splitCSV(getEnv("MEDIA_ALLOWED_TYPES", ""))
	if len(allowed) == 0 {
		allowed = append([]string(nil), defaultAllowedImageTypes...)
	}

	return MediaPolicy{
		Poster: PosterPolicy{
			MaxWidth:     int(mustInt64(getEnv("POSTER_MAX_WIDTH", "1200"))),
			MaxHeight:    int(mustInt64(getEnv("POSTER_MAX_HEIGHT", "1800"))),
			MaxBytes:     mustInt64(getEnv("POSTER_MAX_BYTES", "10485760")),
			AllowedTypes: allowed,
		},
		Profile: ProfilePolicy{
			SquareSize:   int(mustInt64(getEnv("PROFILE_SQUARE_SIZE", "400"))),
			MaxBytes:     mustInt64(getEnv("PROFILE_MAX_BYTES", "5242880")),
			AllowedTypes: append([]string(nil), allowed...),
		},
		MaxPixels:          mustInt64(getEnv("MEDIA_MAX_PIXELS", "50000000")),
		JPEGQuality:        int(mustInt64(getEnv("MEDIA_JPEG_QUALITY", "85"))),
		CleanupConcurrency: int(mustInt64(getEnv("MEDIA_CLEANUP_CONCURRENCY", "4"))),
	}
}

// MergeFile overlays non-zero values from a YAML policy file.
func (p *MediaPolicy) MergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read media policy file: %w", err)
	}

	var override MediaPolicy
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return fmt.Errorf("parse media policy file: %w", err)
	}

	p.merge(override)
	return nil
}

func (p *MediaPolicy) merge(o MediaPolicy) {
	if o.Poster.MaxWidth > 0 {
		p.Poster.MaxWidth = o.Poster.MaxWidth
	}
	if o.Poster.MaxHeight > 0 {
		p.Poster.MaxHeight = o.Poster.MaxHeight
	}
	if o.Poster.MaxBytes > 0 {
		p.Poster.MaxBytes = o.Poster.MaxBytes
	}
	if len(o.Poster.AllowedTypes) > 0 {
		p.Poster.AllowedTypes = o.Poster.AllowedTypes
	}
	if o.Profile.SquareSize > 0 {
		p.Profile.SquareSize = o.Profile.SquareSize
	}
	if o.Profile.MaxBytes > 0 {
		p.Profile.MaxBytes = o.Profile.MaxBytes
	}
	if len(o.Profile.AllowedTypes) > 0 {
		p.Profile.AllowedTypes = o.Profile.AllowedTypes
	}
	if o.MaxPixels > 0 {
		p.MaxPixels = o.MaxPixels
	}
	if o.JPEGQuality > 0 {
		p.JPEGQuality = o.JPEGQuality
	}
	if o.CleanupConcurrency > 0 {
		p.CleanupConcurrency = o.CleanupConcurrency
	}
}

// Validate rejects policies the transcoder cannot honor.
func (p MediaPolicy) Validate() error {
	if p.Poster.MaxWidth <= 0 || p.Poster.MaxHeight <= 0 {
		return fmt.Errorf("poster max dimensions must be positive")
	}
	if p.Profile.SquareSize <= 0 {
		return fmt.Errorf("profile square size must be positive")
	}
	if p.Poster.MaxBytes <= 0 || p.Profile.MaxBytes <= 0 {
		return fmt.Errorf("media byte ceilings must be positive")
	}
	if p.MaxPixels <= 0 {
		return fmt.Errorf("MEDIA_MAX_PIXELS must be positive")
	}
	if p.JPEGQuality < 1 || p.JPEGQuality > 100 {
		return fmt.Errorf("MEDIA_JPEG_QUALITY must be between 1 and 100")
	}
	if p.CleanupConcurrency < 1 {
		return fmt.Errorf("MEDIA_CLEANUP_CONCURRENCY must be at least 1")
	}
	return nil
}
