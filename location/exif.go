package location

import (
	"context"
	"errors"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"

	"github.com/linesmerrill/lapor-sampah-api/models"
)

// ExifProbe reads the GPS position a camera embedded in a photo
type ExifProbe struct {
	Image []byte
}

// Acquire extracts GPSLatitude/GPSLongitude and their hemisphere refs from the EXIF block
func (p ExifProbe) Acquire(ctx context.Context) (models.Location, error) {
	if err := ctx.Err(); err != nil {
		return models.Location{}, &Error{Source: "exif", Err: err}
	}

	rawExif, err := exif.SearchAndExtractExif(p.Image)
	if err != nil || rawExif == nil {
		return models.Location{}, &Error{Source: "exif", Err: ErrUnavailable}
	}
	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return models.Location{}, &Error{Source: "exif", Err: ErrUnavailable}
	}

	var (
		lat, lng       []exifcommon.Rational
		latRef, lngRef string
	)
	for _, entry := range entries {
		switch entry.TagName {
		case "GPSLatitude":
			lat, _ = entry.Value.([]exifcommon.Rational)
		case "GPSLongitude":
			lng, _ = entry.Value.([]exifcommon.Rational)
		case "GPSLatitudeRef":
			latRef, _ = entry.Value.(string)
		case "GPSLongitudeRef":
			lngRef, _ = entry.Value.(string)
		}
	}

	latDeg, err := degrees(lat, latRef, "S")
	if err != nil {
		return models.Location{}, &Error{Source: "exif", Err: err}
	}
	lngDeg, err := degrees(lng, lngRef, "W")
	if err != nil {
		return models.Location{}, &Error{Source: "exif", Err: err}
	}

	loc := models.Location{Lat: latDeg, Lng: lngDeg}
	if !loc.Valid() {
		return models.Location{}, &Error{Source: "exif", Err: ErrInvalidFix}
	}
	return loc, nil
}

// degrees converts a degrees/minutes/seconds rational triple to decimal degrees.
// negativeRef is the hemisphere reference that flips the sign.
func degrees(dms []exifcommon.Rational, ref, negativeRef string) (float64, error) {
	if len(dms) != 3 {
		return 0, ErrUnavailable
	}
	var parts [3]float64
	for i, r := range dms {
		if r.Denominator == 0 {
			return 0, errors.New("exif gps value has zero denominator")
		}
		parts[i] = float64(r.Numerator) / float64(r.Denominator)
	}
	d := parts[0] + parts[1]/60 + parts[2]/3600
	if strings.EqualFold(strings.TrimSpace(ref), negativeRef) {
		d = -d
	}
	return d, nil
}
