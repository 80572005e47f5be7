package desktop

import (
	"fmt"
	"image"
	"sync"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/wavefront-viewer/internal/engine/camera"
	"github.com/Faultbox/wavefront-viewer/internal/engine/scene"
	"github.com/Faultbox/wavefront-viewer/internal/engine/texture"
	"github.com/Faultbox/wavefront-viewer/internal/viewer"
	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// program is the compiled scene shader and its uniform locations. One
// instance is shared by every renderer of a window.
type program struct {
	id uint32

	locMVP, locModel, locNormalMatrix int32

	locColor, locOpacity, locUnlit int32

	locUseTexture, locTexture int32

	locAmbient int32

	locHemisphere, locSky, locGround, locHemiUp int32

	locDirCount, locDirDirection, locDirColor int32

	locPointCount, locPointPosition, locPointColor int32
}

// glReady is set once the GL function pointers are loaded.
var glReady bool

func newProgram(log *zap.Logger) (*program, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	glReady = true
	log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	id, err := CompileProgram(sceneVertexShader, sceneFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("scene shader: %w", err)
	}
	p := &program{id: id}
	p.locMVP = uniform(id, "uMVP")
	p.locModel = uniform(id, "uModel")
	p.locNormalMatrix = uniform(id, "uNormalMatrix")
	p.locColor = uniform(id, "uColor")
	p.locOpacity = uniform(id, "uOpacity")
	p.locUseTexture = uniform(id, "uUseTexture")
	p.locTexture = uniform(id, "uTexture")
	p.locUnlit = uniform(id, "uUnlit")
	p.locAmbient = uniform(id, "uAmbient")
	p.locHemisphere = uniform(id, "uHemisphere")
	p.locSky = uniform(id, "uSky")
	p.locGround = uniform(id, "uGround")
	p.locHemiUp = uniform(id, "uHemiUp")
	p.locDirCount = uniform(id, "uDirCount")
	p.locDirDirection = uniform(id, "uDirDirection")
	p.locDirColor = uniform(id, "uDirColor")
	p.locPointCount = uniform(id, "uPointCount")
	p.locPointPosition = uniform(id, "uPointPosition")
	p.locPointColor = uniform(id, "uPointColor")
	return p, nil
}

func (p *program) destroy() {
	if p.id != 0 {
		gl.DeleteProgram(p.id)
		p.id = 0
	}
}

// clearWindow clears the whole framebuffer before regions are drawn.
func clearWindow(width, height int) {
	if !glReady {
		return
	}
	gl.Viewport(0, 0, int32(width), int32(height))
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

type gpuMesh struct {
	vao, vbo, ebo uint32
	count         int32
	version       uint64
}

// Renderer draws a scene into its element's window region.
type Renderer struct {
	prog *program
	el   *Element
	opts viewer.RendererOptions
	log  *zap.Logger

	mu       sync.Mutex
	ratio    float32
	clear    [3]float32
	alpha    float32
	disposed bool

	meshes   map[*scene.Geometry]*gpuMesh
	textures map[*image.RGBA]uint32
}

func newRenderer(prog *program, el *Element, opts viewer.RendererOptions, log *zap.Logger) *Renderer {
	return &Renderer{
		prog:     prog,
		el:       el,
		opts:     opts,
		log:      log,
		ratio:    1,
		alpha:    1,
		meshes:   make(map[*scene.Geometry]*gpuMesh),
		textures: make(map[*image.RGBA]uint32),
	}
}

// Element implements viewer.Renderer.
func (r *Renderer) Element() viewer.Element { return r.el }

// SetPixelRatio implements viewer.Renderer.
func (r *Renderer) SetPixelRatio(ratio float32) {
	r.mu.Lock()
	r.ratio = ratio
	r.mu.Unlock()
}

// SetSize implements viewer.Renderer.
func (r *Renderer) SetSize(width, height int) { r.el.SetSize(width, height) }

// SetClearColor implements viewer.Renderer.
func (r *Renderer) SetClearColor(rgb [3]float32, alpha float32) {
	r.mu.Lock()
	r.clear, r.alpha = rgb, alpha
	r.mu.Unlock()
}

type drawItem struct {
	node  *scene.Node
	world math.Mat4
}

// Render implements viewer.Renderer. Opaque meshes are drawn first, then
// transparent ones with blending.
func (r *Renderer) Render(s *scene.Scene, cam *camera.Perspective) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return viewer.ErrSessionClosed
	}

	rect, winH := r.el.Bounds()
	if rect.W <= 0 || rect.H <= 0 {
		return nil
	}
	x, y, w, h := rect.GLViewport(winH, r.ratio)
	gl.Viewport(x, y, w, h)
	gl.Scissor(x, y, w, h)
	gl.Enable(gl.SCISSOR_TEST)
	defer gl.Disable(gl.SCISSOR_TEST)

	clear, alpha := r.clear, r.alpha
	if bg, ok := s.Background(); ok {
		clear, alpha = bg, 1
	}
	gl.ClearColor(clear[0], clear[1], clear[2], alpha)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.UseProgram(r.prog.id)
	r.setLights(s.CollectLights())

	var opaque, transparent []drawItem
	s.TraverseVisible(func(n *scene.Node) {
		if n.Geometry == nil || n.Material == nil || len(n.Geometry.Indices) == 0 {
			return
		}
		item := drawItem{node: n, world: n.WorldMatrix()}
		if n.Material.Transparent() {
			transparent = append(transparent, item)
		} else {
			opaque = append(opaque, item)
		}
	})

	viewProj := cam.ViewProjection()
	for _, it := range opaque {
		r.draw(it, viewProj)
	}
	if len(transparent) > 0 {
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
		gl.DepthMask(false)
		for _, it := range transparent {
			r.draw(it, viewProj)
		}
		gl.DepthMask(true)
		gl.Disable(gl.BLEND)
	}
	gl.BindVertexArray(0)
	return nil
}

func (r *Renderer) setLights(l scene.Lighting) {
	p := r.prog
	gl.Uniform3f(p.locAmbient, l.Ambient[0], l.Ambient[1], l.Ambient[2])
	if l.Hemisphere {
		gl.Uniform1i(p.locHemisphere, 1)
		gl.Uniform3f(p.locSky, l.Sky[0], l.Sky[1], l.Sky[2])
		gl.Uniform3f(p.locGround, l.Ground[0], l.Ground[1], l.Ground[2])
		gl.Uniform3f(p.locHemiUp, l.HemiUp.X, l.HemiUp.Y, l.HemiUp.Z)
	} else {
		gl.Uniform1i(p.locHemisphere, 0)
	}

	gl.Uniform1i(p.locDirCount, int32(len(l.Directional)))
	if n := len(l.Directional); n > 0 {
		dirs := make([]float32, 0, n*3)
		cols := make([]float32, 0, n*3)
		for _, d := range l.Directional {
			dirs = append(dirs, d.Direction.X, d.Direction.Y, d.Direction.Z)
			cols = append(cols, d.Color[:]...)
		}
		gl.Uniform3fv(p.locDirDirection, int32(n), &dirs[0])
		gl.Uniform3fv(p.locDirColor, int32(n), &cols[0])
	}

	gl.Uniform1i(p.locPointCount, int32(len(l.Points)))
	if n := len(l.Points); n > 0 {
		pos := make([]float32, 0, n*3)
		cols := make([]float32, 0, n*3)
		for _, pl := range l.Points {
			pos = append(pos, pl.Position.X, pl.Position.Y, pl.Position.Z)
			cols = append(cols, pl.Color[:]...)
		}
		gl.Uniform3fv(p.locPointPosition, int32(n), &pos[0])
		gl.Uniform3fv(p.locPointColor, int32(n), &cols[0])
	}
}

func (r *Renderer) draw(it drawItem, viewProj math.Mat4) {
	p := r.prog
	m := r.upload(it.node.Geometry)
	mat := it.node.Material

	mvp := viewProj.Mul(it.world)
	nm := normalMatrix(it.world)
	gl.UniformMatrix4fv(p.locMVP, 1, false, mvp.Ptr())
	gl.UniformMatrix4fv(p.locModel, 1, false, it.world.Ptr())
	gl.UniformMatrix3fv(p.locNormalMatrix, 1, false, &nm[0])
	gl.Uniform3f(p.locColor, mat.Color[0], mat.Color[1], mat.Color[2])
	gl.Uniform1f(p.locOpacity, mat.Opacity)

	unlit := int32(0)
	if it.node.Kind == scene.KindReticle {
		unlit = 1
	}
	gl.Uniform1i(p.locUnlit, unlit)

	if mat.Texture != nil {
		gl.ActiveTexture(gl.TEXTURE0)
		gl.BindTexture(gl.TEXTURE_2D, r.uploadTexture(mat.Texture))
		gl.Uniform1i(p.locTexture, 0)
		gl.Uniform1i(p.locUseTexture, 1)
	} else {
		gl.Uniform1i(p.locUseTexture, 0)
	}

	if mat.DoubleSided {
		gl.Disable(gl.CULL_FACE)
	} else {
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	}

	gl.BindVertexArray(m.vao)
	gl.DrawElements(gl.TRIANGLES, m.count, gl.UNSIGNED_INT, nil)
}

// normalMatrix returns the inverse transpose of the upper 3x3 of m in
// column-major order.
func normalMatrix(m math.Mat4) [9]float32 {
	inv, ok := m.Inverse()
	if !ok {
		inv = math.Identity()
	}
	t := inv.Transpose()
	return [9]float32{t[0], t[1], t[2], t[4], t[5], t[6], t[8], t[9], t[10]}
}

func (r *Renderer) upload(g *scene.Geometry) *gpuMesh {
	stride := int(unsafe.Sizeof(scene.Vertex{}))
	if m, ok := r.meshes[g]; ok {
		// Skinned geometry is rewritten on the CPU each animated frame.
		if m.version != g.Version {
			gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
			gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(g.Vertices)*stride, unsafe.Pointer(&g.Vertices[0]))
			m.version = g.Version
		}
		return m
	}
	m := &gpuMesh{count: int32(len(g.Indices)), version: g.Version}
	gl.GenVertexArrays(1, &m.vao)
	gl.BindVertexArray(m.vao)

	usage := uint32(gl.STATIC_DRAW)
	if g.Version > 0 {
		usage = gl.DYNAMIC_DRAW
	}
	gl.GenBuffers(1, &m.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(g.Vertices)*stride, unsafe.Pointer(&g.Vertices[0]), usage)

	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, int32(stride), 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, int32(stride), 3*4)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(2, 2, gl.FLOAT, false, int32(stride), 6*4)
	gl.EnableVertexAttribArray(2)

	gl.GenBuffers(1, &m.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(g.Indices)*4, unsafe.Pointer(&g.Indices[0]), gl.STATIC_DRAW)

	r.meshes[g] = m
	r.log.Debug("mesh uploaded",
		zap.Int("vertices", len(g.Vertices)),
		zap.Int("triangles", g.TriangleCount()))
	return m
}

func (r *Renderer) uploadTexture(img *image.RGBA) uint32 {
	if id, ok := r.textures[img]; ok {
		return id
	}
	flipped := texture.FlipVertical(img)
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	b := flipped.Bounds()
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(b.Dx()), int32(b.Dy()), 0,
		gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&flipped.Pix[0]))
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	r.textures[img] = id
	return id
}

// Dispose implements viewer.Renderer. GPU objects are released; the shared
// program stays with the platform.
func (r *Renderer) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return
	}
	r.disposed = true
	for _, m := range r.meshes {
		gl.DeleteVertexArrays(1, &m.vao)
		gl.DeleteBuffers(1, &m.vbo)
		gl.DeleteBuffers(1, &m.ebo)
	}
	for _, id := range r.textures {
		gl.DeleteTextures(1, &id)
	}
	r.meshes = nil
	r.textures = nil
}
