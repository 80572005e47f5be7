package formats

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	dae "github.com/flywave/go-collada"

	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// DAE format errors.
var (
	ErrNoDAEGeometry  = errors.New("DAE contains no mesh geometry")
	ErrInvalidDAEData = errors.New("invalid DAE data")
)

// DAEPrimitive is one material batch of a geometry, expanded to an
// unindexed triangle list. Indices holds the source position index of each
// corner, which is how skin weights are looked up.
type DAEPrimitive struct {
	Material  string
	Positions []math.Vec3
	Normals   []math.Vec3
	TexCoords []math.Vec2
	Indices   []int
}

// DAEGeometry is a <geometry> element with mesh data.
type DAEGeometry struct {
	ID         string
	Primitives []*DAEPrimitive
}

// TriangleCount returns the number of triangles in the geometry.
func (g *DAEGeometry) TriangleCount() int {
	n := 0
	for _, p := range g.Primitives {
		n += len(p.Positions) / 3
	}
	return n
}

// DAENode is a node of the visual scene.
type DAENode struct {
	ID        string
	Name      string
	SID       string
	Joint     bool
	Transform math.Mat4

	Geometries []DAEInstance // instance_geometry
	Skins      []DAEInstance // instance_controller
	Children   []*DAENode
}

// DAEInstance is an instance_geometry or instance_controller reference.
type DAEInstance struct {
	URL string // geometry or controller id
	// Skeletons lists the node ids where joint lookup starts.
	Skeletons []string
	// Materials maps primitive material symbols to material ids.
	Materials map[string]string
}

// DAEChannel animates the full local matrix of one node.
type DAEChannel struct {
	Target   string // node id
	Times    []float32
	Matrices []math.Mat4
}

// DAEClip groups channels into a named animation. Channels holds indices
// into DAE.Channels.
type DAEClip struct {
	Name     string
	Start    float32
	End      float32
	Channels []int
}

// DAE is a parsed Collada document.
type DAE struct {
	UpAxis     string
	Geometries map[string]*DAEGeometry
	Skins      map[string]*DAESkin     // by controller id
	Materials  map[string]*DAEMaterial // by material id
	Roots      []*DAENode
	Channels   []DAEChannel
	Clips      []DAEClip
}

// Walk visits every scene node depth-first.
func (d *DAE) Walk(fn func(n *DAENode, parent *DAENode)) {
	var visit func(n, parent *DAENode)
	visit = func(n, parent *DAENode) {
		fn(n, parent)
		for _, c := range n.Children {
			visit(c, n)
		}
	}
	for _, r := range d.Roots {
		visit(r, nil)
	}
}

// ParseDAE parses a Collada document. Mesh data and the material library
// are read with go-collada; the scene hierarchy, skin controllers, effects,
// images and animations are read from the same bytes with encoding/xml.
func ParseDAE(data []byte) (*DAE, error) {
	doc, err := dae.LoadDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDAEData, err)
	}

	out := &DAE{UpAxis: "Y_UP", Geometries: make(map[string]*DAEGeometry)}
	for _, lib := range doc.LibraryGeometries {
		for _, geo := range lib.Geometry {
			if geo.Mesh == nil {
				continue
			}
			g, err := convertDAEGeometry(geo)
			if err != nil {
				return nil, fmt.Errorf("geometry %q: %w", string(geo.Id), err)
			}
			out.Geometries[g.ID] = g
		}
	}
	if len(out.Geometries) == 0 {
		return nil, ErrNoDAEGeometry
	}

	var raw xmlCollada
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDAEData, err)
	}
	if raw.Asset.UpAxis != "" {
		out.UpAxis = strings.TrimSpace(raw.Asset.UpAxis)
	}

	if out.Skins, err = readSkins(raw.Controllers); err != nil {
		return nil, err
	}
	out.Materials = readMaterials(doc, &raw)

	scene := raw.pickScene()
	if scene != nil {
		for i := range scene.Nodes {
			n, err := convertDAENode(&scene.Nodes[i], out.Skins)
			if err != nil {
				return nil, err
			}
			out.Roots = append(out.Roots, n)
		}
	}

	if err := out.readAnimations(&raw); err != nil {
		return nil, err
	}
	return out, nil
}

func convertDAEGeometry(geo *dae.Geometry) (g *DAEGeometry, err error) {
	// go-collada leaves optional child elements nil; a document missing
	// one that a mesh needs is malformed.
	defer func() {
		if r := recover(); r != nil {
			g, err = nil, fmt.Errorf("%w: %v", ErrInvalidDAEData, r)
		}
	}()
	mesh := geo.Mesh
	g = &DAEGeometry{ID: string(geo.Id)}

	sources := make(map[string]*dae.Source)
	for _, src := range mesh.Source {
		sources[string(src.Id)] = src
	}
	// <vertices> aliases the position source under its own id.
	var posSource *dae.Source
	for _, in := range mesh.Vertices.Input {
		if in.Semantic == "POSITION" {
			posSource = sources[in.Source.GetId()]
		}
	}
	if posSource == nil {
		return nil, errors.New("no POSITION input")
	}

	for _, pl := range mesh.Polylist {
		counts, err := parseInts(pl.VCount.ToSlice())
		if err != nil {
			return nil, fmt.Errorf("polylist vcount: %w", err)
		}
		p, err := buildPrimitive(pl.Material, pl.Input, pl.P.ToSlice(), counts, posSource, sources)
		if err != nil {
			return nil, err
		}
		g.Primitives = append(g.Primitives, p)
	}
	for _, tr := range mesh.Triangles {
		idx := tr.GetP().ToSlice()
		n := tr.GetCount()
		if n < 0 || n > len(idx)/(3*inputStride(tr.GetSharedInput())) {
			return nil, fmt.Errorf("%w: triangle count %d exceeds the index list", ErrInvalidDAEData, n)
		}
		counts := make([]int, n)
		for i := range counts {
			counts[i] = 3
		}
		p, err := buildPrimitive(tr.GetMaterial(), tr.GetSharedInput(), idx, counts, posSource, sources)
		if err != nil {
			return nil, err
		}
		g.Primitives = append(g.Primitives, p)
	}
	return g, nil
}

// buildPrimitive expands indexed polygons (counts[i] corners each) into a
// triangle list, fan-triangulating anything larger than a triangle.
func buildPrimitive(material string, inputs []*dae.InputShared, p []string, counts []int,
	posSource *dae.Source, sources map[string]*dae.Source) (*DAEPrimitive, error) {
	idx, err := parseInts(p)
	if err != nil {
		return nil, fmt.Errorf("primitive indices: %w", err)
	}

	stride := inputStride(inputs)
	var vertexOff, normalOff, uvOff = -1, -1, -1
	var normalSrc, uvSrc *dae.Source
	for _, in := range inputs {
		off := int(in.Offset)
		switch in.Semantic {
		case "VERTEX":
			vertexOff = off
		case "NORMAL":
			normalOff, normalSrc = off, sources[in.Source.GetId()]
		case "TEXCOORD":
			if uvSrc == nil {
				uvOff, uvSrc = off, sources[in.Source.GetId()]
			}
		}
	}
	if vertexOff < 0 {
		return nil, errors.New("primitive has no VERTEX input")
	}

	positions, err := sourceFloats(posSource)
	if err != nil {
		return nil, err
	}
	var normals, uvs []float32
	if normalSrc != nil {
		if normals, err = sourceFloats(normalSrc); err != nil {
			return nil, err
		}
	}
	if uvSrc != nil {
		if uvs, err = sourceFloats(uvSrc); err != nil {
			return nil, err
		}
	}

	prim := &DAEPrimitive{Material: material}
	emit := func(corner int) error {
		base := corner * stride
		if base+stride > len(idx) {
			return fmt.Errorf("%w: index list truncated", ErrInvalidDAEData)
		}
		v, err := readVec3(positions, posSource, idx[base+vertexOff])
		if err != nil {
			return err
		}
		prim.Positions = append(prim.Positions, v)
		prim.Indices = append(prim.Indices, idx[base+vertexOff])
		if normalSrc != nil {
			n, err := readVec3(normals, normalSrc, idx[base+normalOff])
			if err != nil {
				return err
			}
			prim.Normals = append(prim.Normals, n)
		}
		if uvSrc != nil {
			s := sourceStride(uvSrc, 2)
			i := idx[base+uvOff] * s
			if i+1 >= len(uvs) {
				return fmt.Errorf("%w: texcoord index %d", ErrInvalidDAEData, idx[base+uvOff])
			}
			prim.TexCoords = append(prim.TexCoords, math.Vec2{X: uvs[i], Y: uvs[i+1]})
		}
		return nil
	}

	corner := 0
	for _, n := range counts {
		for k := 1; k+1 < n; k++ {
			for _, c := range [3]int{corner, corner + k, corner + k + 1} {
				if err := emit(c); err != nil {
					return nil, err
				}
			}
		}
		corner += n
	}
	return prim, nil
}

// inputStride is the number of indices per corner; never less than one.
func inputStride(inputs []*dae.InputShared) int {
	stride := 1
	for _, in := range inputs {
		stride = max(stride, int(in.Offset)+1)
	}
	return stride
}

func sourceStride(src *dae.Source, def int) int {
	if s := int(src.TechniqueCommon.Accessor.Stride); s > 0 {
		return s
	}
	return def
}

func sourceFloats(src *dae.Source) ([]float32, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: missing source", ErrInvalidDAEData)
	}
	return parseFloats(src.FloatArray.ToSlice())
}

func readVec3(data []float32, src *dae.Source, i int) (math.Vec3, error) {
	o := i * sourceStride(src, 3)
	if i < 0 || o+2 >= len(data) {
		return math.Vec3{}, fmt.Errorf("%w: vertex index %d", ErrInvalidDAEData, i)
	}
	return math.Vec3{X: data[o], Y: data[o+1], Z: data[o+2]}, nil
}

func parseInts(fields []string) ([]int, error) {
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", f)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseFloats(fields []string) ([]float32, error) {
	out := make([]float32, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := parseFloat(f)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Collada stores matrices row-major.
func rowMajor(v []float32) math.Mat4 {
	var m math.Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m[c*4+r] = v[r*4+c]
		}
	}
	return m
}

// Scene hierarchy, controllers and animations, decoded with encoding/xml.

type xmlCollada struct {
	Asset struct {
		UpAxis string `xml:"up_axis"`
	} `xml:"asset"`
	Controllers  []xmlController  `xml:"library_controllers>controller"`
	Effects      []xmlEffect      `xml:"library_effects>effect"`
	Images       []xmlImage       `xml:"library_images>image"`
	VisualScenes []xmlVisualScene `xml:"library_visual_scenes>visual_scene"`
	Scene        struct {
		Instance struct {
			URL string `xml:"url,attr"`
		} `xml:"instance_visual_scene"`
	} `xml:"scene"`
	Animations []xmlAnimation `xml:"library_animations>animation"`
	Clips      []struct {
		Name       string  `xml:"name,attr"`
		ID         string  `xml:"id,attr"`
		Start      float32 `xml:"start,attr"`
		End        float32 `xml:"end,attr"`
		Animations []struct {
			URL string `xml:"url,attr"`
		} `xml:"instance_animation"`
	} `xml:"library_animation_clips>animation_clip"`
}

func (c *xmlCollada) pickScene() *xmlVisualScene {
	want := strings.TrimPrefix(c.Scene.Instance.URL, "#")
	for i := range c.VisualScenes {
		if c.VisualScenes[i].ID == want {
			return &c.VisualScenes[i]
		}
	}
	if len(c.VisualScenes) > 0 {
		return &c.VisualScenes[0]
	}
	return nil
}

type xmlVisualScene struct {
	ID    string    `xml:"id,attr"`
	Nodes []xmlNode `xml:"node"`
}

type xmlNode struct {
	ID        string     `xml:"id,attr"`
	Name      string     `xml:"name,attr"`
	SID       string     `xml:"sid,attr"`
	Type      string     `xml:"type,attr"`
	Transform []xmlTrans `xml:",any"`
	Children  []xmlNode  `xml:"node"`
}

// xmlTrans captures every child element of a node; only transform
// elements and instance_* references are interpreted.
type xmlTrans struct {
	XMLName   xml.Name
	URL       string   `xml:"url,attr"`
	Value     string   `xml:",chardata"`
	Skeletons []string `xml:"skeleton"`
	Bindings  []struct {
		Symbol string `xml:"symbol,attr"`
		Target string `xml:"target,attr"`
	} `xml:"bind_material>technique_common>instance_material"`
}

func (t *xmlTrans) instance() DAEInstance {
	in := DAEInstance{URL: strings.TrimPrefix(t.URL, "#")}
	for _, s := range t.Skeletons {
		in.Skeletons = append(in.Skeletons, strings.TrimPrefix(strings.TrimSpace(s), "#"))
	}
	if len(t.Bindings) > 0 {
		in.Materials = make(map[string]string, len(t.Bindings))
		for _, b := range t.Bindings {
			in.Materials[b.Symbol] = strings.TrimPrefix(b.Target, "#")
		}
	}
	return in
}

type xmlSource struct {
	ID     string `xml:"id,attr"`
	Floats string `xml:"float_array"`
	Names  string `xml:"Name_array"`
	IDRefs string `xml:"IDREF_array"`
}

type xmlInput struct {
	Semantic string `xml:"semantic,attr"`
	Source   string `xml:"source,attr"`
	Offset   int    `xml:"offset,attr"`
}

type xmlAnimation struct {
	ID      string         `xml:"id,attr"`
	Sources []xmlSource    `xml:"source"`
	Sampler []xmlSampler   `xml:"sampler"`
	Channel []xmlChannel   `xml:"channel"`
	Nested  []xmlAnimation `xml:"animation"`
}

type xmlSampler struct {
	ID     string     `xml:"id,attr"`
	Inputs []xmlInput `xml:"input"`
}

type xmlChannel struct {
	Source string `xml:"source,attr"`
	Target string `xml:"target,attr"`
}

func convertDAENode(x *xmlNode, skins map[string]*DAESkin) (*DAENode, error) {
	n := &DAENode{
		ID:        x.ID,
		Name:      x.Name,
		SID:       x.SID,
		Joint:     x.Type == "JOINT",
		Transform: math.Identity(),
	}
	for _, t := range x.Transform {
		vals, err := parseFloats(strings.Fields(t.Value))
		if err != nil {
			return nil, fmt.Errorf("node %q %s: %w", x.ID, t.XMLName.Local, err)
		}
		switch t.XMLName.Local {
		case "matrix":
			if len(vals) != 16 {
				return nil, fmt.Errorf("%w: node %q matrix has %d values", ErrInvalidDAEData, x.ID, len(vals))
			}
			n.Transform = n.Transform.Mul(rowMajor(vals))
		case "translate":
			if len(vals) == 3 {
				n.Transform = n.Transform.Mul(math.Translation(math.V3(vals[0], vals[1], vals[2])))
			}
		case "rotate":
			if len(vals) == 4 {
				axis := math.V3(vals[0], vals[1], vals[2]).Normalize()
				n.Transform = n.Transform.Mul(math.QuatFromAxisAngle(axis, math.Radians(vals[3])).Mat4())
			}
		case "scale":
			if len(vals) == 3 {
				n.Transform = n.Transform.Mul(math.Scaling(math.V3(vals[0], vals[1], vals[2])))
			}
		case "instance_geometry":
			n.Geometries = append(n.Geometries, t.instance())
		case "instance_controller":
			if in := t.instance(); skins[in.URL] != nil {
				n.Skins = append(n.Skins, in)
			}
		}
	}
	for i := range x.Children {
		c, err := convertDAENode(&x.Children[i], skins)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, c)
	}
	return n, nil
}

func (d *DAE) readAnimations(raw *xmlCollada) error {
	// Animation id -> channel indices, for clip resolution.
	byAnim := make(map[string][]int)

	var read func(a *xmlAnimation, owner string) error
	read = func(a *xmlAnimation, owner string) error {
		if owner == "" {
			owner = a.ID
		}
		sources := make(map[string]xmlSource, len(a.Sources))
		for _, s := range a.Sources {
			sources[s.ID] = s
		}
		samplers := make(map[string]xmlSampler, len(a.Sampler))
		for _, s := range a.Sampler {
			samplers[s.ID] = s
		}
		for _, ch := range a.Channel {
			target, prop, _ := strings.Cut(ch.Target, "/")
			// Only whole-matrix channels drive node transforms.
			if prop != "transform" && prop != "matrix" {
				continue
			}
			smp, ok := samplers[strings.TrimPrefix(ch.Source, "#")]
			if !ok {
				return fmt.Errorf("%w: channel %q references missing sampler", ErrInvalidDAEData, ch.Target)
			}
			var times, values []float32
			for _, in := range smp.Inputs {
				src, ok := sources[strings.TrimPrefix(in.Source, "#")]
				if !ok {
					continue
				}
				vals, err := parseFloats(strings.Fields(src.Floats))
				if err != nil {
					return fmt.Errorf("animation %q: %w", a.ID, err)
				}
				switch in.Semantic {
				case "INPUT":
					times = vals
				case "OUTPUT":
					values = vals
				}
			}
			if len(times) == 0 || len(values) != len(times)*16 {
				return fmt.Errorf("%w: channel %q has %d keys and %d values", ErrInvalidDAEData, ch.Target, len(times), len(values))
			}
			c := DAEChannel{Target: target, Times: times}
			for i := range times {
				c.Matrices = append(c.Matrices, rowMajor(values[i*16:(i+1)*16]))
			}
			byAnim[owner] = append(byAnim[owner], len(d.Channels))
			d.Channels = append(d.Channels, c)
		}
		for i := range a.Nested {
			if err := read(&a.Nested[i], owner); err != nil {
				return err
			}
		}
		return nil
	}
	for i := range raw.Animations {
		if err := read(&raw.Animations[i], ""); err != nil {
			return err
		}
	}
	if len(d.Channels) == 0 {
		return nil
	}

	for _, c := range raw.Clips {
		clip := DAEClip{Name: c.Name, Start: c.Start, End: c.End}
		if clip.Name == "" {
			clip.Name = c.ID
		}
		for _, ia := range c.Animations {
			clip.Channels = append(clip.Channels, byAnim[strings.TrimPrefix(ia.URL, "#")]...)
		}
		sort.Ints(clip.Channels)
		d.Clips = append(d.Clips, clip)
	}
	// Without explicit clips every channel forms one default clip.
	if len(d.Clips) == 0 {
		clip := DAEClip{Name: "default"}
		for i, ch := range d.Channels {
			clip.Channels = append(clip.Channels, i)
			clip.End = max(clip.End, ch.Times[len(ch.Times)-1])
		}
		d.Clips = append(d.Clips, clip)
	}
	return nil
}
