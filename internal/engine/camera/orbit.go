package camera

import (
	gomath "math"

	"github.com/charmbracelet/harmonica"

	"github.com/Faultbox/wavefront-viewer/internal/engine/input"
	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// DefaultDampingFactor is the inertia applied when damping is enabled.
const DefaultDampingFactor = 0.25

const (
	zoomFPS        = 60
	zoomFrequency  = 6.0
	zoomDamping    = 1.0
	zoomSettleFrac = 1e-3
	minPolarEps    = 1e-6
)

type dragMode int

const (
	dragNone dragMode = iota
	dragRotate
	dragPan
)

// OrbitControls orbits a Perspective camera around Target. Input only
// accumulates deltas; Update integrates them, so it must be called once per
// frame. With damping enabled each Update applies DampingFactor of the
// pending rotation and pan and keeps the rest for later frames.
type OrbitControls struct {
	Camera  *Perspective
	Target  math.Vec3
	Enabled bool

	EnableDamping bool
	DampingFactor float32

	RotateSpeed float32
	ZoomSpeed   float32
	PanSpeed    float32

	MinDistance   float32
	MaxDistance   float32
	MinPolarAngle float32
	MaxPolarAngle float32

	size func() (int, int)

	thetaDelta float32
	phiDelta   float32
	panOffset  math.Vec3

	zoom       harmonica.Spring
	radiusGoal float64
	radiusVel  float64

	mode         dragMode
	lastX, lastY float32

	events *input.Dispatcher
	ids    []input.ListenerID
}

// NewOrbitControls creates controls centred on the origin. size reports the
// element size used to scale pointer movement.
func NewOrbitControls(cam *Perspective, size func() (int, int)) *OrbitControls {
	c := &OrbitControls{
		Camera:        cam,
		Enabled:       true,
		DampingFactor: DefaultDampingFactor,
		RotateSpeed:   1,
		ZoomSpeed:     1,
		PanSpeed:      1,
		MinDistance:   0,
		MaxDistance:   float32(gomath.Inf(1)),
		MinPolarAngle: 0,
		MaxPolarAngle: gomath.Pi,
		size:          size,
		zoom:          harmonica.NewSpring(harmonica.FPS(zoomFPS), zoomFrequency, zoomDamping),
	}
	cam.LookAt(c.Target)
	return c
}

// Connect registers pointer and wheel listeners on an element's event target.
func (c *OrbitControls) Connect(d *input.Dispatcher) {
	c.Dispose()
	c.events = d
	c.ids = append(c.ids,
		d.On(input.EventPointerDown, c.HandleEvent),
		d.On(input.EventPointerMove, c.HandleEvent),
		d.On(input.EventPointerUp, c.HandleEvent),
		d.On(input.EventWheel, c.HandleEvent),
	)
}

// Dispose removes every listener registered by Connect.
func (c *OrbitControls) Dispose() {
	if c.events == nil {
		return
	}
	for _, id := range c.ids {
		c.events.Off(id)
	}
	c.ids = nil
	c.events = nil
}

// HandleEvent feeds one input event to the controls.
func (c *OrbitControls) HandleEvent(e input.Event) {
	if !c.Enabled {
		return
	}
	switch e.Type {
	case input.EventPointerDown:
		c.mode = dragRotate
		if e.Button == input.ButtonRight || e.Shift {
			c.mode = dragPan
		}
		c.lastX, c.lastY = e.X, e.Y
	case input.EventPointerMove:
		if c.mode == dragNone {
			return
		}
		dx, dy := e.X-c.lastX, e.Y-c.lastY
		c.lastX, c.lastY = e.X, e.Y
		if c.mode == dragPan {
			c.Pan(dx, dy)
			return
		}
		_, h := c.elementSize()
		c.RotateLeft(2 * gomath.Pi * dx / float32(h) * c.RotateSpeed)
		c.RotateUp(2 * gomath.Pi * dy / float32(h) * c.RotateSpeed)
	case input.EventPointerUp:
		c.mode = dragNone
	case input.EventWheel:
		scale := float32(gomath.Pow(0.95, float64(c.ZoomSpeed)))
		switch {
		case e.DeltaY > 0:
			c.Dolly(1 / scale)
		case e.DeltaY < 0:
			c.Dolly(scale)
		}
	}
}

func (c *OrbitControls) elementSize() (int, int) {
	w, h := 1, 1
	if c.size != nil {
		w, h = c.size()
	}
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	return w, h
}

// RotateLeft queues an azimuth rotation in radians.
func (c *OrbitControls) RotateLeft(angle float32) { c.thetaDelta -= angle }

// RotateUp queues a polar rotation in radians.
func (c *OrbitControls) RotateUp(angle float32) { c.phiDelta -= angle }

// Pan queues a target translation for a pointer movement in pixels.
func (c *OrbitControls) Pan(dx, dy float32) {
	_, h := c.elementSize()
	offset := c.Camera.Position.Sub(c.Target)
	dist := offset.Length() * float32(gomath.Tan(float64(math.Radians(c.Camera.FOV))/2))
	scale := 2 * dist / float32(h) * c.PanSpeed

	fwd := c.Camera.Forward()
	right := fwd.Cross(c.Camera.Up).Normalize()
	up := right.Cross(fwd)
	c.panOffset = c.panOffset.Add(right.Scale(-dx * scale)).Add(up.Scale(dy * scale))
}

// Dolly scales the orbit radius. The radius eases to the new distance.
func (c *OrbitControls) Dolly(scale float32) {
	base := c.radiusGoal
	if base == 0 {
		base = float64(c.Camera.Position.Distance(c.Target))
	}
	c.radiusGoal = float64(c.clampRadius(float32(base * float64(scale))))
}

func (c *OrbitControls) clampRadius(r float32) float32 {
	if r < c.MinDistance {
		r = c.MinDistance
	}
	if r > c.MaxDistance {
		r = c.MaxDistance
	}
	return r
}

// Update integrates pending input into the camera and reports whether the
// camera moved.
func (c *OrbitControls) Update() bool {
	cam := c.Camera
	before := cam.Position

	offset := cam.Position.Sub(c.Target)
	radius := offset.Length()
	theta := float32(gomath.Atan2(float64(offset.X), float64(offset.Z)))
	phi := float32(0)
	if radius > 0 {
		phi = float32(gomath.Acos(float64(math.Clamp(offset.Y/radius, -1, 1))))
	}

	f := float32(1)
	if c.EnableDamping {
		f = c.DampingFactor
	}
	theta += c.thetaDelta * f
	phi += c.phiDelta * f

	lo := c.MinPolarAngle
	if lo < minPolarEps {
		lo = minPolarEps
	}
	hi := c.MaxPolarAngle
	if hi > gomath.Pi-minPolarEps {
		hi = gomath.Pi - minPolarEps
	}
	phi = math.Clamp(phi, lo, hi)

	if c.radiusGoal > 0 {
		r, v := c.zoom.Update(float64(radius), c.radiusVel, c.radiusGoal)
		c.radiusVel = v
		if gomath.Abs(r-c.radiusGoal) < zoomSettleFrac*c.radiusGoal && gomath.Abs(v) < zoomSettleFrac*c.radiusGoal {
			r = c.radiusGoal
			c.radiusGoal, c.radiusVel = 0, 0
		}
		radius = float32(r)
	}
	radius = c.clampRadius(radius)

	c.Target = c.Target.Add(c.panOffset.Scale(f))

	sinPhi := float32(gomath.Sin(float64(phi)))
	cam.Position = c.Target.Add(math.Vec3{
		X: radius * sinPhi * float32(gomath.Sin(float64(theta))),
		Y: radius * float32(gomath.Cos(float64(phi))),
		Z: radius * sinPhi * float32(gomath.Cos(float64(theta))),
	})
	cam.LookAt(c.Target)

	if c.EnableDamping {
		c.thetaDelta *= 1 - c.DampingFactor
		c.phiDelta *= 1 - c.DampingFactor
		c.panOffset = c.panOffset.Scale(1 - c.DampingFactor)
	} else {
		c.thetaDelta, c.phiDelta = 0, 0
		c.panOffset = math.Vec3{}
	}

	return cam.Position.Distance(before) > math.Epsilon
}

// Reset moves the target back to the origin and drops pending input.
func (c *OrbitControls) Reset() {
	c.Target = math.Vec3{}
	c.thetaDelta, c.phiDelta = 0, 0
	c.panOffset = math.Vec3{}
	c.radiusGoal, c.radiusVel = 0, 0
	c.mode = dragNone
	c.Camera.LookAt(c.Target)
}
