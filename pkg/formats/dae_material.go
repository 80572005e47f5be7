package formats

import (
	"sort"
	"strings"

	dae "github.com/flywave/go-collada"
)

// DAEMaterial is a material resolved through its common-profile effect.
type DAEMaterial struct {
	ID        string
	Name      string
	Diffuse   [3]float32
	Specular  [3]float32
	Shininess float32
	Opacity   float32
	// Texture is the diffuse image path as written in the document.
	Texture string
}

// Textures lists the distinct image paths referenced by materials, sorted.
func (d *DAE) Textures() []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range d.Materials {
		if m.Texture != "" && !seen[m.Texture] {
			seen[m.Texture] = true
			out = append(out, m.Texture)
		}
	}
	sort.Strings(out)
	return out
}

type xmlEffect struct {
	ID        string        `xml:"id,attr"`
	Params    []xmlNewParam `xml:"profile_COMMON>newparam"`
	Technique struct {
		Phong    *xmlShading `xml:"phong"`
		Blinn    *xmlShading `xml:"blinn"`
		Lambert  *xmlShading `xml:"lambert"`
		Constant *xmlShading `xml:"constant"`
	} `xml:"profile_COMMON>technique"`
}

func (e *xmlEffect) shading() *xmlShading {
	t := &e.Technique
	for _, s := range []*xmlShading{t.Phong, t.Blinn, t.Lambert, t.Constant} {
		if s != nil {
			return s
		}
	}
	return nil
}

// xmlNewParam covers the 1.4 surface/sampler2D pair and the 1.5
// sampler2D instance_image form.
type xmlNewParam struct {
	SID     string `xml:"sid,attr"`
	Surface string `xml:"surface>init_from"`
	Sampler struct {
		Source   string `xml:"source"`
		Instance struct {
			URL string `xml:"url,attr"`
		} `xml:"instance_image"`
	} `xml:"sampler2D"`
}

type xmlShading struct {
	Diffuse      xmlColorOrTexture `xml:"diffuse"`
	Specular     xmlColorOrTexture `xml:"specular"`
	Shininess    xmlFloatParam     `xml:"shininess"`
	Transparency xmlFloatParam     `xml:"transparency"`
}

type xmlColorOrTexture struct {
	Color   string `xml:"color"`
	Texture struct {
		Texture string `xml:"texture,attr"`
	} `xml:"texture"`
}

type xmlFloatParam struct {
	Float string `xml:"float"`
}

type xmlImage struct {
	ID       string `xml:"id,attr"`
	InitFrom struct {
		Path string `xml:",chardata"`
		Ref  string `xml:"ref"`
	} `xml:"init_from"`
}

func (img *xmlImage) path() string {
	if ref := strings.TrimSpace(img.InitFrom.Ref); ref != "" {
		return ref
	}
	return strings.TrimSpace(img.InitFrom.Path)
}

// readMaterials resolves every library material to its effect's colors
// and diffuse texture. Materials whose effect is missing keep the
// defaults.
func readMaterials(doc *dae.Collada, raw *xmlCollada) map[string]*DAEMaterial {
	effects := make(map[string]*xmlEffect, len(raw.Effects))
	for i := range raw.Effects {
		effects[raw.Effects[i].ID] = &raw.Effects[i]
	}
	images := make(map[string]string, len(raw.Images))
	for i := range raw.Images {
		images[raw.Images[i].ID] = raw.Images[i].path()
	}

	out := make(map[string]*DAEMaterial)
	for _, lib := range doc.LibraryMaterials {
		for _, m := range lib.Material {
			mat := &DAEMaterial{
				ID:        string(m.Id),
				Name:      m.Name,
				Diffuse:   [3]float32{0.8, 0.8, 0.8},
				Shininess: 30,
				Opacity:   1,
			}
			if e, ok := effects[m.InstanceEffect.Url.GetId()]; ok {
				applyEffect(mat, e, images)
			}
			out[mat.ID] = mat
		}
	}
	return out
}

func applyEffect(mat *DAEMaterial, e *xmlEffect, images map[string]string) {
	sh := e.shading()
	if sh == nil {
		return
	}
	if c, ok := parseDAEColor(sh.Diffuse.Color); ok {
		mat.Diffuse = c
	}
	if c, ok := parseDAEColor(sh.Specular.Color); ok {
		mat.Specular = c
	}
	if v, err := parseFloat(strings.TrimSpace(sh.Shininess.Float)); err == nil {
		mat.Shininess = v
	}
	// Exporters disagree on the transparency convention; only a value
	// strictly inside (0, 1) is taken as opacity.
	if v, err := parseFloat(strings.TrimSpace(sh.Transparency.Float)); err == nil && v > 0 && v < 1 {
		mat.Opacity = v
	}
	if t := sh.Diffuse.Texture.Texture; t != "" {
		mat.Texture = resolveTexture(t, e.Params, images)
		if mat.Texture != "" && sh.Diffuse.Color == "" {
			mat.Diffuse = [3]float32{1, 1, 1}
		}
	}
}

// resolveTexture follows a texture reference through sampler and surface
// params to an image path. A reference naming an image directly is
// accepted too.
func resolveTexture(ref string, params []xmlNewParam, images map[string]string) string {
	bySID := make(map[string]*xmlNewParam, len(params))
	for i := range params {
		bySID[params[i].SID] = &params[i]
	}
	id := ref
	if p, ok := bySID[ref]; ok {
		switch {
		case p.Sampler.Instance.URL != "":
			id = strings.TrimPrefix(p.Sampler.Instance.URL, "#")
		case p.Sampler.Source != "":
			id = strings.TrimSpace(p.Sampler.Source)
			if s, ok := bySID[id]; ok && s.Surface != "" {
				id = strings.TrimSpace(s.Surface)
			}
		}
	}
	return images[id]
}

func parseDAEColor(s string) ([3]float32, bool) {
	vals, err := parseFloats(strings.Fields(s))
	if err != nil || len(vals) < 3 {
		return [3]float32{}, false
	}
	return [3]float32{vals[0], vals[1], vals[2]}, true
}
