package formats

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrEmptyMTL is returned for a material library that defines no materials.
var ErrEmptyMTL = errors.New("MTL defines no materials")

// Material is one newmtl entry of an MTL library.
type Material struct {
	Name      string
	Ambient   [3]float32 // Ka
	Diffuse   [3]float32 // Kd
	Specular  [3]float32 // Ks
	Shininess float32    // Ns
	Opacity   float32    // d, or 1-Tr
	Illum     int

	DiffuseMap string // map_Kd, relative to the library's base URL
	BumpMap    string // map_Bump / bump
}

// MTL is a parsed material library.
type MTL struct {
	Materials []*Material
	byName    map[string]*Material
}

// Lookup returns the material with the given name.
func (m *MTL) Lookup(name string) (*Material, bool) {
	mat, ok := m.byName[name]
	return mat, ok
}

// Textures returns every texture path referenced by the library.
func (m *MTL) Textures() []string {
	var out []string
	for _, mat := range m.Materials {
		if mat.DiffuseMap != "" {
			out = append(out, mat.DiffuseMap)
		}
		if mat.BumpMap != "" {
			out = append(out, mat.BumpMap)
		}
	}
	return out
}

func newMaterial(name string) *Material {
	return &Material{
		Name:      name,
		Ambient:   [3]float32{1, 1, 1},
		Diffuse:   [3]float32{1, 1, 1},
		Shininess: 30,
		Opacity:   1,
	}
}

// ParseMTL parses a Wavefront material library.
func ParseMTL(data []byte) (*MTL, error) {
	lib := &MTL{byName: make(map[string]*Material)}
	var cur *Material

	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		fields := strings.Fields(text)
		key, args := strings.ToLower(fields[0]), fields[1:]

		if key == "newmtl" {
			if len(args) == 0 {
				return nil, fmt.Errorf("line %d: newmtl without a name", line)
			}
			cur = newMaterial(strings.Join(args, " "))
			lib.Materials = append(lib.Materials, cur)
			lib.byName[cur.Name] = cur
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("line %d: %s before newmtl", line, fields[0])
		}

		var err error
		switch key {
		case "ka":
			cur.Ambient, err = parseColor(args)
		case "kd":
			cur.Diffuse, err = parseColor(args)
		case "ks":
			cur.Specular, err = parseColor(args)
		case "ns":
			cur.Shininess, err = parseScalar(args)
		case "d":
			cur.Opacity, err = parseScalar(args)
		case "tr":
			var tr float32
			tr, err = parseScalar(args)
			cur.Opacity = 1 - tr
		case "illum":
			if len(args) > 0 {
				cur.Illum, err = strconv.Atoi(args[0])
			}
		case "map_kd":
			cur.DiffuseMap = mapPath(args)
		case "map_bump", "bump":
			cur.BumpMap = mapPath(args)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, fields[0], err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading MTL: %w", err)
	}
	if len(lib.Materials) == 0 {
		return nil, ErrEmptyMTL
	}
	return lib, nil
}

func parseColor(args []string) ([3]float32, error) {
	// A single value is a grey.
	if len(args) == 1 {
		f, err := parseFloat(args[0])
		return [3]float32{f, f, f}, err
	}
	v, err := parseVec3(args)
	return [3]float32{v.X, v.Y, v.Z}, err
}

func parseScalar(args []string) (float32, error) {
	if len(args) == 0 {
		return 0, errors.New("missing value")
	}
	return parseFloat(args[0])
}

// mapPath drops texture options such as "-s 1 1 1" and returns the file
// name, which is always the last argument.
func mapPath(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[len(args)-1]
}
