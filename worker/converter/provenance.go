package converter

// Provenance is the subset of source metadata the pipeline looks at.
type Provenance struct {
	DateTimeOriginal string
	ModifyDate       string
	CreateDate       string
	GPSLatitude      *float64
	GPSLongitude     *float64
	Make             string
	Model            string
	Width            int
	Height           int
}

// CaptureTime picks the first present of original capture, modify and
// creation time.
func (p *Provenance) CaptureTime() string {
	for _, ts := range []string{p.DateTimeOriginal, p.ModifyDate, p.CreateDate} {
		if ts != "" {
			return ts
		}
	}
	return ""
}

type GPS struct {
	Latitude  float64
	Longitude float64
}

// Tags is the complete metadata set written into each variant. Anything not
// listed here is stripped.
type Tags struct {
	Width     int
	Height    int
	Timestamp string
	GPS       *GPS
}

// BuildTags takes dimensions from the decoded image rather than the source
// metadata. GPS is carried only when both coordinates are present.
func BuildTags(p *Provenance, width, height int) Tags {
	tags := Tags{Width: width, Height: height}
	if p == nil {
		return tags
	}

	tags.Timestamp = p.CaptureTime()
	if p.GPSLatitude != nil && p.GPSLongitude != nil {
		tags.GPS = &GPS{Latitude: *p.GPSLatitude, Longitude: *p.GPSLongitude}
	}
	return tags
}
