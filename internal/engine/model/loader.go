package model

import (
	"context"
	"fmt"
	"image"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/wavefront-viewer/internal/assets"
	"github.com/Faultbox/wavefront-viewer/internal/engine/texture"
	"github.com/Faultbox/wavefront-viewer/pkg/formats"
)

// maxTextureFetches bounds concurrent texture downloads per model.
const maxTextureFetches = 4

// Loader fetches and builds models.
type Loader struct {
	fetch *assets.Fetcher
	log   *zap.Logger
}

// NewLoader creates a loader reading through f.
func NewLoader(f *assets.Fetcher, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{fetch: f, log: log}
}

// Load picks the format from the geometry URL's extension: Collada for
// .dae, Wavefront OBJ otherwise. Collada documents carry their own
// materials, so materialURL only applies to OBJ.
func (l *Loader) Load(ctx context.Context, geometryURL, materialURL, baseURL string) (*Model, error) {
	if IsDAE(geometryURL) {
		return l.LoadDAE(ctx, geometryURL, baseURL)
	}
	return l.LoadOBJ(ctx, geometryURL, materialURL, baseURL)
}

// IsDAE reports whether rawURL names a Collada document.
func IsDAE(rawURL string) bool {
	p := strings.SplitN(rawURL, "?", 2)[0]
	return strings.EqualFold(path.Ext(p), ".dae")
}

// LoadOBJ fetches an OBJ and its MTL library and builds the model.
// Textures resolve against baseURL, or the MTL's directory when baseURL is
// empty. A texture that fails to load leaves its material untextured.
func (l *Loader) LoadOBJ(ctx context.Context, objURL, mtlURL, baseURL string) (*Model, error) {
	var mtl *formats.MTL
	if mtlURL != "" {
		data, err := l.fetch.Fetch(ctx, mtlURL)
		if err != nil {
			return nil, fmt.Errorf("loading material %s: %w", mtlURL, err)
		}
		if mtl, err = formats.ParseMTL(data); err != nil {
			return nil, fmt.Errorf("parsing material %s: %w", mtlURL, err)
		}
	}

	data, err := l.fetch.Fetch(ctx, objURL)
	if err != nil {
		return nil, fmt.Errorf("loading geometry %s: %w", objURL, err)
	}
	obj, err := formats.ParseOBJ(data)
	if err != nil {
		return nil, fmt.Errorf("parsing geometry %s: %w", objURL, err)
	}

	var textures map[string]*image.RGBA
	if mtl != nil {
		base := baseURL
		if base == "" {
			base = assets.Dir(mtlURL)
		}
		textures = l.loadTextures(ctx, base, mtl.Textures())
	}

	m := BuildOBJ(modelName(objURL), obj, mtl, textures)
	l.log.Debug("OBJ model built",
		zap.String("url", objURL),
		zap.Int("meshes", m.Meshes),
		zap.Int("triangles", m.Triangles),
		zap.Int("textures", len(textures)))
	return m, nil
}

// LoadDAE fetches a Collada document and builds the avatar model. Images
// resolve against baseURL, or the document's directory when baseURL is
// empty.
func (l *Loader) LoadDAE(ctx context.Context, daeURL, baseURL string) (*Model, error) {
	data, err := l.fetch.Fetch(ctx, daeURL)
	if err != nil {
		return nil, fmt.Errorf("loading geometry %s: %w", daeURL, err)
	}
	d, err := formats.ParseDAE(data)
	if err != nil {
		return nil, fmt.Errorf("parsing geometry %s: %w", daeURL, err)
	}
	base := baseURL
	if base == "" {
		base = assets.Dir(daeURL)
	}
	textures := l.loadTextures(ctx, base, d.Textures())

	m := BuildDAE(modelName(daeURL), d, textures)
	l.log.Debug("DAE model built",
		zap.String("url", daeURL),
		zap.Int("meshes", m.Meshes),
		zap.Int("skinned", m.Skinned),
		zap.Int("clips", len(m.Clips)),
		zap.Int("textures", len(textures)))
	return m, nil
}

func (l *Loader) loadTextures(ctx context.Context, base string, refs []string) map[string]*image.RGBA {
	urls := make(map[string]string, len(refs))
	list := make([]string, 0, len(refs))
	for _, ref := range refs {
		if _, ok := urls[ref]; ok {
			continue
		}
		u := assets.Resolve(base, ref)
		urls[ref] = u
		list = append(list, u)
	}

	fetched := l.fetch.FetchAll(ctx, list, maxTextureFetches)
	out := make(map[string]*image.RGBA, len(urls))
	for ref, u := range urls {
		res := fetched[u]
		if res.Err != nil {
			l.log.Warn("texture unavailable", zap.String("url", u), zap.Error(res.Err))
			continue
		}
		img, err := texture.Decode(u, res.Data)
		if err != nil {
			l.log.Warn("texture not decodable", zap.String("url", u), zap.Error(err))
			continue
		}
		out[ref] = img
	}
	return out
}

// Cache returns the asset cache behind the loader, or nil when caching is
// disabled.
func (l *Loader) Cache() *assets.Cache { return l.fetch.Cache() }

func modelName(rawURL string) string {
	name := path.Base(strings.SplitN(rawURL, "?", 2)[0])
	return strings.TrimSuffix(name, path.Ext(name))
}
