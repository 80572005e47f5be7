package descriptor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func vase() ModelDescriptor {
	return ModelDescriptor{
		Kind:        KindStatic,
		GeometryURL: "vase.obj",
		MaterialURL: "vase.mtl",
		StageWidth:  400,
		StageHeight: 400,
		Camera: Camera{
			FieldOfViewDegrees: 45,
			FarPlane:           1000,
			Position:           &Position{X: 0, Y: 1, Z: 200},
		},
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"ff8000", Color{0xff, 0x80, 0x00}, false},
		{"#0A0B0C", Color{0x0a, 0x0b, 0x0c}, false},
		{"0x808080", DefaultBackground, false},
		{"fff", Color{}, true},
		{"zzzzzz", Color{}, true},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if s := (Color{0x12, 0x34, 0x56}).String(); s != "#123456" {
		t.Errorf("String = %q", s)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *ModelDescriptor)
		wantErr error
		field   string
	}{
		{name: "valid static", mutate: func(*ModelDescriptor) {}},
		{
			name:    "missing geometry",
			mutate:  func(d *ModelDescriptor) { d.GeometryURL = "  " },
			wantErr: ErrMissingGeometry,
			field:   "geometryUrl",
		},
		{
			name:    "static without material",
			mutate:  func(d *ModelDescriptor) { d.MaterialURL = "" },
			wantErr: ErrMissingMaterial,
			field:   "materialUrl",
		},
		{
			name:   "animated without material",
			mutate: func(d *ModelDescriptor) { d.Kind, d.GeometryURL, d.MaterialURL = KindAnimated, "avatar.dae", "" },
		},
		{
			name:   "ar ignores stage",
			mutate: func(d *ModelDescriptor) { d.Kind, d.StageWidth, d.StageHeight = KindAR, 0, 0 },
		},
		{
			name:    "zero stage",
			mutate:  func(d *ModelDescriptor) { d.StageHeight = 0 },
			wantErr: ErrInvalidValue,
			field:   "stageHeight",
		},
		{
			name:    "fov too wide",
			mutate:  func(d *ModelDescriptor) { d.Camera.FieldOfViewDegrees = 180 },
			wantErr: ErrInvalidValue,
			field:   "camera.fieldOfViewDegrees",
		},
		{
			name:    "unknown kind",
			mutate:  func(d *ModelDescriptor) { d.Kind = "hologram" },
			wantErr: ErrInvalidValue,
			field:   "kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := vase()
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("error %T is not a *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestWithDefaults(t *testing.T) {
	d := ModelDescriptor{GeometryURL: "models/avatar.DAE"}.WithDefaults()
	if d.Kind != KindAnimated {
		t.Errorf("kind = %q, want animated for .dae", d.Kind)
	}
	if d.StageWidth != DefaultStageWidth || d.StageHeight != DefaultStageHeight {
		t.Errorf("stage = %dx%d", d.StageWidth, d.StageHeight)
	}
	if d.Camera.FieldOfViewDegrees != DefaultFOV || d.Camera.FarPlane != DefaultFar {
		t.Errorf("camera = %+v", d.Camera)
	}
	if d.Background() != DefaultBackground {
		t.Errorf("background = %v, want mid-gray", d.Background())
	}
	if d.CameraPosition() != DefaultCameraPosition {
		t.Errorf("camera position = %v", d.CameraPosition())
	}

	ar := ModelDescriptor{Kind: KindAR, GeometryURL: "a.obj"}.WithDefaults()
	if ar.StageWidth != 0 {
		t.Errorf("AR stage width = %d, want 0 (viewport)", ar.StageWidth)
	}
}

func TestFromAttributes(t *testing.T) {
	attrs := map[string]string{
		AttrDAE:         "https%3A%2F%2Flms.example%2Fpluginfile.php%2F7%2Favatar.dae",
		AttrBaseURL:     "https%3A%2F%2Flms.example%2Fpluginfile.php%2F7%2F",
		AttrStageWidth:  "640",
		AttrStageHeight: "480",
		AttrBackground:  "336699",
		AttrCameraAngle: "60",
		AttrCameraFar:   "500",
		AttrCameraX:     "1.5",
		AttrCameraY:     "2",
		AttrCameraZ:     "-30",
	}
	d, err := FromAttributes(attrs)
	if err != nil {
		t.Fatalf("FromAttributes: %v", err)
	}
	if d.Kind != KindAnimated {
		t.Errorf("kind = %q", d.Kind)
	}
	if d.GeometryURL != "https://lms.example/pluginfile.php/7/avatar.dae" {
		t.Errorf("geometry = %q", d.GeometryURL)
	}
	if d.BaseAssetURL != "https://lms.example/pluginfile.php/7/" {
		t.Errorf("base = %q", d.BaseAssetURL)
	}
	if d.Aspect() != 640.0/480.0 {
		t.Errorf("aspect = %v", d.Aspect())
	}
	if d.Background() != (Color{0x33, 0x66, 0x99}) {
		t.Errorf("background = %v", d.Background())
	}
	if d.Camera.FieldOfViewDegrees != 60 || d.Camera.FarPlane != 500 {
		t.Errorf("camera = %+v", d.Camera)
	}
	if p := d.CameraPosition(); p != (Position{1.5, 2, -30}) {
		t.Errorf("position = %+v", p)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	// Round trip through Attributes.
	back, err := FromAttributes(d.Attributes())
	if err != nil {
		t.Fatalf("FromAttributes(Attributes()): %v", err)
	}
	if back.GeometryURL != d.GeometryURL || back.Background() != d.Background() || back.CameraPosition() != d.CameraPosition() {
		t.Errorf("round trip = %+v, want %+v", back, d)
	}
}

func TestFromAttributesDefaultsAndErrors(t *testing.T) {
	d, err := FromAttributes(map[string]string{AttrOBJ: "vase.obj"})
	if err != nil {
		t.Fatalf("FromAttributes: %v", err)
	}
	if d.Kind != KindStatic || d.CameraPosition() != DefaultCameraPosition {
		t.Errorf("defaults = %+v", d)
	}
	// No material for a static model: parsing succeeds, validation fails.
	if err := d.Validate(); !errors.Is(err, ErrMissingMaterial) {
		t.Errorf("Validate = %v, want ErrMissingMaterial", err)
	}

	bad := []map[string]string{
		{AttrOBJ: "a.obj", AttrStageWidth: "wide"},
		{AttrOBJ: "a.obj", AttrBackground: "blue"},
		{AttrOBJ: "a.obj", AttrCameraZ: "far"},
		{AttrOBJ: "%zz"},
	}
	for _, attrs := range bad {
		_, err := FromAttributes(attrs)
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Errorf("FromAttributes(%v) err = %v, want *ConfigError", attrs, err)
		}
	}
}

func TestCatalogue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalogue.yaml")
	data := `activities:
  "42":
    kind: static
    geometry_url: vase/vase.obj
    material_url: vase/vase.mtl
    background_color: "#202020"
    camera:
      fov: 50
      position: {x: 0, y: 1, z: 150}
  "7":
    kind: ar
    geometry_url: marker.obj
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadCatalogue(path)
	if err != nil {
		t.Fatalf("LoadCatalogue: %v", err)
	}
	if ids := c.IDs(); len(ids) != 2 || ids[0] != "42" || ids[1] != "7" {
		t.Errorf("IDs = %v", ids)
	}

	d, err := c.ModelDescriptor(context.Background(), "42")
	if err != nil {
		t.Fatalf("ModelDescriptor: %v", err)
	}
	if d.Camera.FieldOfViewDegrees != 50 || d.Camera.FarPlane != DefaultFar {
		t.Errorf("camera = %+v", d.Camera)
	}
	if d.Background() != (Color{0x20, 0x20, 0x20}) {
		t.Errorf("background = %v", d.Background())
	}
	if d.CameraPosition().Z != 150 {
		t.Errorf("position = %+v", d.CameraPosition())
	}

	if _, err := c.ModelDescriptor(context.Background(), "99"); !errors.Is(err, ErrUnknownActivity) {
		t.Errorf("unknown id err = %v", err)
	}
	if _, err := ParseCatalogue([]byte("activities: [")); err == nil {
		t.Error("expected YAML error")
	}
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/activities/42/model":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"kind":"static","geometryUrl":"vase.obj","materialUrl":"vase.mtl",
				"stageWidth":400,"stageHeight":400,"backgroundColor":"#808080",
				"camera":{"fieldOfViewDegrees":45,"farPlane":1000,"position":{"x":0,"y":1,"z":200}}}`))
		case "/api/activities/500/model":
			http.Error(w, "database down", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/api/", time.Second)
	ctx := context.Background()

	d, err := src.ModelDescriptor(ctx, "42")
	if err != nil {
		t.Fatalf("ModelDescriptor: %v", err)
	}
	if d.GeometryURL != "vase.obj" || d.Aspect() != 1 || d.CameraPosition().Z != 200 {
		t.Errorf("descriptor = %+v", d)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	if _, err := src.ModelDescriptor(ctx, "1"); !errors.Is(err, ErrUnknownActivity) {
		t.Errorf("404 err = %v", err)
	}
	if _, err := src.ModelDescriptor(ctx, "500"); err == nil {
		t.Error("expected error for HTTP 500")
	}
}
