// Package formats provides parsers for the model formats the viewer loads:
// Wavefront OBJ geometry, its MTL material library, and Collada DAE scenes.
package formats

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// OBJ format errors.
var (
	ErrEmptyOBJ        = errors.New("OBJ contains no faces")
	ErrInvalidOBJIndex = errors.New("OBJ index out of range")
)

// OBJIndex references one corner of a face. Indices are zero-based;
// -1 marks an absent texture coordinate or normal.
type OBJIndex struct {
	Position int
	TexCoord int
	Normal   int
}

// OBJGroup is a run of triangles sharing an object/group name and material.
type OBJGroup struct {
	Name      string
	Material  string
	Triangles [][3]OBJIndex
}

// OBJ is a parsed Wavefront OBJ file.
type OBJ struct {
	Positions    []math.Vec3
	TexCoords    []math.Vec2
	Normals      []math.Vec3
	MaterialLibs []string
	Groups       []*OBJGroup
}

// TriangleCount returns the number of triangles across all groups.
func (o *OBJ) TriangleCount() int {
	n := 0
	for _, g := range o.Groups {
		n += len(g.Triangles)
	}
	return n
}

// Materials returns the distinct material names referenced by usemtl,
// in first-use order.
func (o *OBJ) Materials() []string {
	var names []string
	seen := make(map[string]bool)
	for _, g := range o.Groups {
		if g.Material != "" && !seen[g.Material] {
			seen[g.Material] = true
			names = append(names, g.Material)
		}
	}
	return names
}

// Bounds returns the axis-aligned bounds of all vertex positions.
func (o *OBJ) Bounds() (lo, hi math.Vec3) {
	if len(o.Positions) == 0 {
		return
	}
	lo, hi = o.Positions[0], o.Positions[0]
	for _, p := range o.Positions[1:] {
		lo = lo.Min(p)
		hi = hi.Max(p)
	}
	return lo, hi
}

// ParseOBJ parses Wavefront OBJ data. Polygons are fan-triangulated and
// negative (relative) indices are resolved.
func ParseOBJ(data []byte) (*OBJ, error) {
	obj := &OBJ{}
	var (
		group    *OBJGroup
		name     string
		material string
	)
	current := func() *OBJGroup {
		if group == nil {
			group = &OBJGroup{Name: name, Material: material}
			obj.Groups = append(obj.Groups, group)
		}
		return group
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		fields := strings.Fields(text)
		args := fields[1:]

		switch fields[0] {
		case "v":
			v, err := parseVec3(args)
			if err != nil {
				return nil, fmt.Errorf("line %d: vertex: %w", line, err)
			}
			obj.Positions = append(obj.Positions, v)
		case "vt":
			if len(args) < 1 {
				return nil, fmt.Errorf("line %d: texcoord: missing values", line)
			}
			u, err := parseFloat(args[0])
			if err != nil {
				return nil, fmt.Errorf("line %d: texcoord: %w", line, err)
			}
			var v float32
			if len(args) > 1 {
				if v, err = parseFloat(args[1]); err != nil {
					return nil, fmt.Errorf("line %d: texcoord: %w", line, err)
				}
			}
			obj.TexCoords = append(obj.TexCoords, math.Vec2{X: u, Y: v})
		case "vn":
			n, err := parseVec3(args)
			if err != nil {
				return nil, fmt.Errorf("line %d: normal: %w", line, err)
			}
			obj.Normals = append(obj.Normals, n)
		case "f":
			if len(args) < 3 {
				return nil, fmt.Errorf("line %d: face needs at least 3 vertices, got %d", line, len(args))
			}
			corners := make([]OBJIndex, len(args))
			for i, a := range args {
				idx, err := obj.parseCorner(a)
				if err != nil {
					return nil, fmt.Errorf("line %d: face %q: %w", line, a, err)
				}
				corners[i] = idx
			}
			g := current()
			for i := 1; i+1 < len(corners); i++ {
				g.Triangles = append(g.Triangles, [3]OBJIndex{corners[0], corners[i], corners[i+1]})
			}
		case "o", "g":
			name = strings.Join(args, " ")
			group = nil
		case "usemtl":
			material = strings.Join(args, " ")
			group = nil
		case "mtllib":
			obj.MaterialLibs = append(obj.MaterialLibs, args...)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading OBJ: %w", err)
	}

	// Drop groups opened by o/g/usemtl that never received faces.
	groups := obj.Groups[:0]
	for _, g := range obj.Groups {
		if len(g.Triangles) > 0 {
			groups = append(groups, g)
		}
	}
	obj.Groups = groups
	if len(obj.Groups) == 0 {
		return nil, ErrEmptyOBJ
	}
	return obj, nil
}

// parseCorner parses "v", "v/vt", "v//vn" or "v/vt/vn".
func (o *OBJ) parseCorner(s string) (OBJIndex, error) {
	parts := strings.Split(s, "/")
	idx := OBJIndex{TexCoord: -1, Normal: -1}

	var err error
	if idx.Position, err = resolveOBJIndex(parts[0], len(o.Positions)); err != nil {
		return idx, err
	}
	if len(parts) > 1 && parts[1] != "" {
		if idx.TexCoord, err = resolveOBJIndex(parts[1], len(o.TexCoords)); err != nil {
			return idx, err
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if idx.Normal, err = resolveOBJIndex(parts[2], len(o.Normals)); err != nil {
			return idx, err
		}
	}
	return idx, nil
}

// resolveOBJIndex converts a 1-based (or negative, relative) index to 0-based.
func resolveOBJIndex(s string, count int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", s)
	}
	switch {
	case i > 0 && i <= count:
		return i - 1, nil
	case i < 0 && -i <= count:
		return count + i, nil
	}
	return 0, fmt.Errorf("%w: %d of %d", ErrInvalidOBJIndex, i, count)
}

func parseFloat(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return float32(f), nil
}

func parseVec3(args []string) (math.Vec3, error) {
	if len(args) < 3 {
		return math.Vec3{}, fmt.Errorf("expected 3 components, got %d", len(args))
	}
	var c [3]float32
	for i := range c {
		f, err := parseFloat(args[i])
		if err != nil {
			return math.Vec3{}, err
		}
		c[i] = f
	}
	return math.Vec3{X: c[0], Y: c[1], Z: c[2]}, nil
}
