package media

import (
	"strings"
	"time"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

// exifTimeLayout is the EXIF DateTime format.
const exifTimeLayout = "2006:01:02 15:04:05"

// ExtractMetadata returns the EXIF summary of an image. Images without EXIF,
// or with unreadable EXIF, yield the zero value.
func ExtractMetadata(data []byte) model.ImageMetadata {
	var md model.ImageMetadata

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return md
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return md
	}

	var dateTime string
	for _, entry := range entries {
		value := strings.TrimSpace(strings.TrimRight(entry.Formatted, "\x00"))

		switch entry.TagName {
		case "Make":
			md.CameraMake = value
		case "Model":
			md.CameraModel = value
		case "Software", "ProcessingSoftware":
			if md.Software == "" {
				md.Software = value
			}
		case "DateTimeOriginal":
			if t, ok := parseExifTime(value); ok {
				md.TakenAt = t
			}
		case "DateTime":
			dateTime = value
		case "GPSLatitude", "GPSLongitude", "GPSLatitudeRef", "GPSLongitudeRef":
			md.HasGPS = true
		}
	}

	if md.TakenAt.IsZero() && dateTime != "" {
		if t, ok := parseExifTime(dateTime); ok {
			md.TakenAt = t
		}
	}
	return md
}

func parseExifTime(s string) (time.Time, bool) {
	t, err := time.Parse(exifTimeLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
