package descriptor

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Mount attribute names written by the page template.
const (
	AttrKind        = "data-kind"
	AttrOBJ         = "data-obj"
	AttrMTL         = "data-mtl"
	AttrDAE         = "data-dae"
	AttrBaseURL     = "data-baseurl"
	AttrStageWidth  = "data-stagewidth"
	AttrStageHeight = "data-stageheight"
	AttrBackground  = "data-backcol"
	AttrCameraAngle = "data-cameraangle"
	AttrCameraFar   = "data-camerafar"
	AttrCameraX     = "data-camerax"
	AttrCameraY     = "data-cameray"
	AttrCameraZ     = "data-cameraz"
)

// FromAttributes builds a descriptor from a mount element's data-*
// attributes. URL attributes arrive percent-encoded. Missing optional
// attributes take the form defaults; the result is not validated.
func FromAttributes(attrs map[string]string) (ModelDescriptor, error) {
	var d ModelDescriptor
	get := func(k string) (string, bool) {
		v, ok := attrs[k]
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	decode := func(k string) (string, error) {
		v, ok := get(k)
		if !ok {
			return "", nil
		}
		s, err := url.PathUnescape(v)
		if err != nil {
			return "", &ConfigError{Field: k, Err: fmt.Errorf("%w: %v", ErrInvalidValue, err)}
		}
		return s, nil
	}

	var err error
	if v, ok := get(AttrKind); ok {
		d.Kind = Kind(strings.ToLower(v))
	}
	if d.BaseAssetURL, err = decode(AttrBaseURL); err != nil {
		return d, err
	}
	dae, err := decode(AttrDAE)
	if err != nil {
		return d, err
	}
	obj, err := decode(AttrOBJ)
	if err != nil {
		return d, err
	}
	switch {
	case dae != "":
		d.GeometryURL = dae
		if d.Kind == "" {
			d.Kind = KindAnimated
		}
	default:
		d.GeometryURL = obj
	}
	if d.MaterialURL, err = decode(AttrMTL); err != nil {
		return d, err
	}

	ints := []struct {
		key string
		dst *int
	}{
		{AttrStageWidth, &d.StageWidth},
		{AttrStageHeight, &d.StageHeight},
	}
	for _, f := range ints {
		if v, ok := get(f.key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return d, &ConfigError{Field: f.key, Err: fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, v)}
			}
			*f.dst = n
		}
	}

	if v, ok := get(AttrBackground); ok {
		c, err := ParseColor(v)
		if err != nil {
			return d, &ConfigError{Field: AttrBackground, Err: fmt.Errorf("%w: %v", ErrInvalidValue, err)}
		}
		d.BackgroundColor = &c
	}

	pos := DefaultCameraPosition
	floats := []struct {
		key string
		dst *float32
	}{
		{AttrCameraAngle, &d.Camera.FieldOfViewDegrees},
		{AttrCameraFar, &d.Camera.FarPlane},
		{AttrCameraX, &pos.X},
		{AttrCameraY, &pos.Y},
		{AttrCameraZ, &pos.Z},
	}
	for _, f := range floats {
		if v, ok := get(f.key); ok {
			x, err := strconv.ParseFloat(v, 32)
			if err != nil {
				return d, &ConfigError{Field: f.key, Err: fmt.Errorf("%w: %q is not a number", ErrInvalidValue, v)}
			}
			*f.dst = float32(x)
		}
	}
	d.Camera.Position = &pos

	return d.WithDefaults(), nil
}

// Attributes renders the descriptor as mount attributes, the inverse of
// FromAttributes.
func (d ModelDescriptor) Attributes() map[string]string {
	a := map[string]string{
		AttrKind:        string(d.Kind),
		AttrCameraAngle: formatFloat(d.Camera.FieldOfViewDegrees),
		AttrCameraFar:   formatFloat(d.Camera.FarPlane),
	}
	if d.Kind == KindAnimated {
		a[AttrDAE] = url.PathEscape(d.GeometryURL)
	} else {
		a[AttrOBJ] = url.PathEscape(d.GeometryURL)
	}
	if d.MaterialURL != "" {
		a[AttrMTL] = url.PathEscape(d.MaterialURL)
	}
	if d.BaseAssetURL != "" {
		a[AttrBaseURL] = url.PathEscape(d.BaseAssetURL)
	}
	if d.StageWidth > 0 {
		a[AttrStageWidth] = strconv.Itoa(d.StageWidth)
		a[AttrStageHeight] = strconv.Itoa(d.StageHeight)
	}
	if d.BackgroundColor != nil {
		a[AttrBackground] = fmt.Sprintf("%06x", d.BackgroundColor.Hex())
	}
	p := d.CameraPosition()
	a[AttrCameraX] = formatFloat(p.X)
	a[AttrCameraY] = formatFloat(p.Y)
	a[AttrCameraZ] = formatFloat(p.Z)
	return a
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}
