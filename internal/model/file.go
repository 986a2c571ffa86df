package model

import "time"

// FileHandle is a selected local file, loaded once and treated as
// read-only afterwards.
type FileHandle struct {
	// Name is the base name shown in results.
	Name string `json:"name"`

	// Path is where the file was read from.
	Path string `json:"path"`

	// Content is the full file body.
	Content []byte `json:"-"`

	// Size is len(Content).
	Size int64 `json:"size"`

	// Digest is the hex SHA3-256 of Content.
	Digest string `json:"digest"`

	// Metadata holds EXIF facts when the image carries any.
	Metadata ImageMetadata `json:"metadata,omitempty"`
}

// ImageMetadata is the subset of EXIF worth reporting next to a result.
type ImageMetadata struct {
	CameraMake  string    `json:"camera_make,omitempty"`
	CameraModel string    `json:"camera_model,omitempty"`
	Software    string    `json:"software,omitempty"`
	TakenAt     time.Time `json:"taken_at,omitempty"`
	HasGPS      bool      `json:"has_gps,omitempty"`
}

// IsZero reports whether no metadata was found.
func (m ImageMetadata) IsZero() bool {
	return m.CameraMake == "" && m.CameraModel == "" && m.Software == "" &&
		m.TakenAt.IsZero() && !m.HasGPS
}

// Camera returns "make model" with empty parts dropped.
func (m ImageMetadata) Camera() string {
	switch {
	case m.CameraMake == "":
		return m.CameraModel
	case m.CameraModel == "":
		return m.CameraMake
	default:
		return m.CameraMake + " " + m.CameraModel
	}
}
