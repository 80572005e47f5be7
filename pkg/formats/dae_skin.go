package formats

import (
	"fmt"
	"strings"

	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// DAEInfluence is one joint's weight on a vertex.
type DAEInfluence struct {
	Joint  int // index into DAESkin.Joints
	Weight float32
}

// DAESkin is a skin controller: a geometry bound to a joint list.
type DAESkin struct {
	ID        string
	Geometry  string
	BindShape math.Mat4
	// Joints names each joint by sid (or id, for IDREF_array sources).
	Joints      []string
	InverseBind []math.Mat4
	// Influences is indexed by the geometry's position index.
	Influences [][]DAEInfluence
}

type xmlController struct {
	ID   string `xml:"id,attr"`
	Skin struct {
		Source    string      `xml:"source,attr"`
		BindShape string      `xml:"bind_shape_matrix"`
		Sources   []xmlSource `xml:"source"`
		Joints    []xmlInput  `xml:"joints>input"`
		Weights   struct {
			Count  int        `xml:"count,attr"`
			Inputs []xmlInput `xml:"input"`
			VCount string     `xml:"vcount"`
			V      string     `xml:"v"`
		} `xml:"vertex_weights"`
	} `xml:"skin"`
}

func readSkins(ctrls []xmlController) (map[string]*DAESkin, error) {
	out := make(map[string]*DAESkin, len(ctrls))
	for i := range ctrls {
		c := &ctrls[i]
		if c.Skin.Source == "" {
			continue
		}
		s, err := readSkin(c)
		if err != nil {
			return nil, fmt.Errorf("controller %q: %w", c.ID, err)
		}
		out[c.ID] = s
	}
	return out, nil
}

func readSkin(c *xmlController) (*DAESkin, error) {
	s := &DAESkin{
		ID:        c.ID,
		Geometry:  strings.TrimPrefix(c.Skin.Source, "#"),
		BindShape: math.Identity(),
	}
	if f := strings.Fields(c.Skin.BindShape); len(f) > 0 {
		vals, err := parseFloats(f)
		if err != nil {
			return nil, err
		}
		if len(vals) != 16 {
			return nil, fmt.Errorf("%w: bind_shape_matrix has %d values", ErrInvalidDAEData, len(vals))
		}
		s.BindShape = rowMajor(vals)
	}

	sources := make(map[string]*xmlSource, len(c.Skin.Sources))
	for i := range c.Skin.Sources {
		sources[c.Skin.Sources[i].ID] = &c.Skin.Sources[i]
	}
	source := func(in xmlInput) (*xmlSource, error) {
		src, ok := sources[strings.TrimPrefix(in.Source, "#")]
		if !ok {
			return nil, fmt.Errorf("%w: %s input references missing source %q", ErrInvalidDAEData, in.Semantic, in.Source)
		}
		return src, nil
	}

	for _, in := range c.Skin.Joints {
		src, err := source(in)
		if err != nil {
			return nil, err
		}
		switch in.Semantic {
		case "JOINT":
			s.Joints = jointNames(src)
		case "INV_BIND_MATRIX":
			vals, err := parseFloats(strings.Fields(src.Floats))
			if err != nil {
				return nil, err
			}
			if len(vals)%16 != 0 {
				return nil, fmt.Errorf("%w: %d inverse bind values", ErrInvalidDAEData, len(vals))
			}
			s.InverseBind = make([]math.Mat4, 0, len(vals)/16)
			for k := 0; k < len(vals); k += 16 {
				s.InverseBind = append(s.InverseBind, rowMajor(vals[k:k+16]))
			}
		}
	}
	if len(s.InverseBind) == 0 {
		for range s.Joints {
			s.InverseBind = append(s.InverseBind, math.Identity())
		}
	}
	if len(s.InverseBind) != len(s.Joints) {
		return nil, fmt.Errorf("%w: %d joints but %d inverse bind matrices", ErrInvalidDAEData, len(s.Joints), len(s.InverseBind))
	}

	if err := s.readWeights(c, source); err != nil {
		return nil, err
	}
	return s, nil
}

func jointNames(src *xmlSource) []string {
	if f := strings.Fields(src.Names); len(f) > 0 {
		return f
	}
	return strings.Fields(src.IDRefs)
}

func (s *DAESkin) readWeights(c *xmlController, source func(xmlInput) (*xmlSource, error)) error {
	vw := &c.Skin.Weights
	if len(vw.Inputs) == 0 {
		return nil
	}
	stride := 1
	jointOff, weightOff := -1, -1
	var weights []float32
	for _, in := range vw.Inputs {
		stride = max(stride, in.Offset+1)
		switch in.Semantic {
		case "JOINT":
			jointOff = in.Offset
		case "WEIGHT":
			src, err := source(in)
			if err != nil {
				return err
			}
			if weights, err = parseFloats(strings.Fields(src.Floats)); err != nil {
				return err
			}
			weightOff = in.Offset
		}
	}
	if jointOff < 0 || weightOff < 0 {
		return fmt.Errorf("%w: vertex_weights needs JOINT and WEIGHT inputs", ErrInvalidDAEData)
	}

	counts, err := parseInts(strings.Fields(vw.VCount))
	if err != nil {
		return fmt.Errorf("vertex_weights vcount: %w", err)
	}
	v, err := parseInts(strings.Fields(vw.V))
	if err != nil {
		return fmt.Errorf("vertex_weights v: %w", err)
	}

	s.Influences = make([][]DAEInfluence, len(counts))
	pos := 0
	for i, n := range counts {
		if n < 0 || n > (len(v)-pos)/stride {
			return fmt.Errorf("%w: vertex_weights truncated at vertex %d", ErrInvalidDAEData, i)
		}
		for k := 0; k < n; k++ {
			j, w := v[pos+jointOff], v[pos+weightOff]
			pos += stride
			if w < 0 || w >= len(weights) {
				return fmt.Errorf("%w: weight index %d", ErrInvalidDAEData, w)
			}
			// Joint -1 binds to the bind shape itself and carries no motion.
			if j == -1 {
				continue
			}
			if j < 0 || j >= len(s.Joints) {
				return fmt.Errorf("%w: joint index %d", ErrInvalidDAEData, j)
			}
			s.Influences[i] = append(s.Influences[i], DAEInfluence{Joint: j, Weight: weights[w]})
		}
	}
	return nil
}
