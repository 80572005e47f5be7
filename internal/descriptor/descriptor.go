// Package descriptor defines the model descriptor a viewer session is built
// from, and the ways of obtaining one: mount attributes, a YAML catalogue,
// or the course server's read API.
package descriptor

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind selects the viewer variant.
type Kind string

const (
	KindStatic   Kind = "static"   // OBJ + MTL with orbit controls
	KindAnimated Kind = "animated" // DAE with skeletal animation
	KindAR       Kind = "ar"       // immersive AR with tap-to-place
)

// Defaults applied to descriptors that leave fields unset. They match the
// activity settings form.
const (
	DefaultStageWidth  = 400
	DefaultStageHeight = 400
	DefaultFOV         = 45
	DefaultFar         = 1000
)

// DefaultBackground is the mid-gray used when no background is given.
var DefaultBackground = Color{0x80, 0x80, 0x80}

// DefaultCameraPosition is where the camera starts when none is given.
var DefaultCameraPosition = Position{X: 0, Y: 1, Z: 200}

// Color is an sRGB color.
type Color struct {
	R, G, B uint8
}

// ParseColor accepts "RRGGBB", "#RRGGBB" or "0xRRGGBB".
func ParseColor(s string) (Color, error) {
	h := strings.TrimSpace(s)
	h = strings.TrimPrefix(h, "#")
	h = strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	if len(h) != 6 {
		return Color{}, fmt.Errorf("invalid color %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{uint8(v >> 16), uint8(v >> 8), uint8(v)}, nil
}

// Hex returns the color as an integer 0xRRGGBB.
func (c Color) Hex() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// String formats the color as "#rrggbb".
func (c Color) String() string {
	return fmt.Sprintf("#%06x", c.Hex())
}

// Floats returns the channels scaled to [0, 1].
func (c Color) Floats() [3]float32 {
	return [3]float32{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255}
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Position is a point in scene units.
type Position struct {
	X float32 `yaml:"x" json:"x"`
	Y float32 `yaml:"y" json:"y"`
	Z float32 `yaml:"z" json:"z"`
}

// Camera holds the perspective camera settings.
type Camera struct {
	FieldOfViewDegrees float32   `yaml:"fov" json:"fieldOfViewDegrees" validate:"gt=0,lt=180"`
	FarPlane           float32   `yaml:"far" json:"farPlane" validate:"gt=0"`
	Position           *Position `yaml:"position,omitempty" json:"position,omitempty"`
}

// ModelDescriptor is the immutable configuration of one viewer instance.
type ModelDescriptor struct {
	Kind            Kind   `yaml:"kind" json:"kind" validate:"oneof=static animated ar"`
	GeometryURL     string `yaml:"geometry_url" json:"geometryUrl" validate:"notblank"`
	MaterialURL     string `yaml:"material_url,omitempty" json:"materialUrl,omitempty"`
	BaseAssetURL    string `yaml:"base_asset_url,omitempty" json:"baseAssetUrl,omitempty"`
	StageWidth      int    `yaml:"stage_width,omitempty" json:"stageWidth,omitempty" validate:"gte=0"`
	StageHeight     int    `yaml:"stage_height,omitempty" json:"stageHeight,omitempty" validate:"gte=0"`
	BackgroundColor *Color `yaml:"background_color,omitempty" json:"backgroundColor,omitempty"`
	Camera          Camera `yaml:"camera" json:"camera"`

	// Title is shown by hosts that label their mounts. Optional.
	Title string `yaml:"title,omitempty" json:"title,omitempty"`
}

// Background returns the background color, or the default mid-gray.
func (d ModelDescriptor) Background() Color {
	if d.BackgroundColor != nil {
		return *d.BackgroundColor
	}
	return DefaultBackground
}

// CameraPosition returns the configured camera position or the default.
func (d ModelDescriptor) CameraPosition() Position {
	if d.Camera.Position != nil {
		return *d.Camera.Position
	}
	return DefaultCameraPosition
}

// WithDefaults returns a copy with unset optional fields filled in.
// Required fields are never invented.
func (d ModelDescriptor) WithDefaults() ModelDescriptor {
	if d.Kind == "" {
		d.Kind = KindStatic
		if strings.HasSuffix(strings.ToLower(d.GeometryURL), ".dae") {
			d.Kind = KindAnimated
		}
	}
	if d.Kind != KindAR {
		if d.StageWidth == 0 {
			d.StageWidth = DefaultStageWidth
		}
		if d.StageHeight == 0 {
			d.StageHeight = DefaultStageHeight
		}
	}
	if d.Camera.FieldOfViewDegrees == 0 {
		d.Camera.FieldOfViewDegrees = DefaultFOV
	}
	if d.Camera.FarPlane == 0 {
		d.Camera.FarPlane = DefaultFar
	}
	return d
}

// Aspect returns the stage aspect ratio.
func (d ModelDescriptor) Aspect() float32 {
	if d.StageHeight == 0 {
		return 1
	}
	return float32(d.StageWidth) / float32(d.StageHeight)
}
