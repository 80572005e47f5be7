// Package animation plays keyframed node transforms on a scene graph.
package animation

import (
	gomath "math"

	"github.com/Faultbox/wavefront-viewer/internal/engine/scene"
	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// Loop selects what an action does when it reaches the end of its clip.
type Loop int

const (
	LoopRepeat Loop = iota
	LoopOnce
)

// Track animates the local transform of the node named Target. Times are in
// seconds and ascending; Values holds one matrix per time.
type Track struct {
	Target string
	Times  []float32
	Values []math.Mat4
}

// Sample returns the transform at time t. Translation and scale are
// interpolated linearly, rotation spherically.
func (tr *Track) Sample(t float32) math.Mat4 {
	n := len(tr.Times)
	switch {
	case n == 0:
		return math.Identity()
	case n == 1 || t <= tr.Times[0]:
		return tr.Values[0]
	case t >= tr.Times[n-1]:
		return tr.Values[n-1]
	}

	// Find surrounding keyframes.
	next := 1
	for next < n-1 && tr.Times[next] <= t {
		next++
	}
	prev := next - 1
	t0, t1 := tr.Times[prev], tr.Times[next]
	f := float32(0)
	if t1 > t0 {
		f = (t - t0) / (t1 - t0)
	}

	p0, r0, s0 := tr.Values[prev].Decompose()
	p1, r1, s1 := tr.Values[next].Decompose()
	return math.Compose(p0.Lerp(p1, f), r0.Slerp(r1, f), s0.Lerp(s1, f))
}

// Clip is a named set of tracks.
type Clip struct {
	Name     string
	Duration float32
	Tracks   []Track
}

// NewClip creates a clip whose duration is the last key time of any track.
func NewClip(name string, tracks []Track) *Clip {
	c := &Clip{Name: name, Tracks: tracks}
	for _, tr := range tracks {
		if n := len(tr.Times); n > 0 && tr.Times[n-1] > c.Duration {
			c.Duration = tr.Times[n-1]
		}
	}
	return c
}

// Action is the playback state of one clip on a mixer.
type Action struct {
	clip  *Clip
	mixer *Mixer

	Loop      Loop
	TimeScale float32

	time    float32
	running bool
	nodes   []*scene.Node // bound target per track, nil when missing
}

// Clip returns the clip this action plays.
func (a *Action) Clip() *Clip { return a.clip }

// Time returns the local playback time in seconds.
func (a *Action) Time() float32 { return a.time }

// IsRunning reports whether the action is playing.
func (a *Action) IsRunning() bool { return a.running }

// Play starts the action from its current time.
func (a *Action) Play() *Action {
	a.running = true
	return a
}

// Stop halts the action and rewinds it.
func (a *Action) Stop() *Action {
	a.running = false
	a.time = 0
	return a
}

// Bound returns how many tracks found a target node.
func (a *Action) Bound() int {
	n := 0
	for _, node := range a.nodes {
		if node != nil {
			n++
		}
	}
	return n
}

func (a *Action) advance(delta float32) {
	a.time += delta * a.TimeScale
	d := a.clip.Duration
	if d <= 0 {
		a.time = 0
		return
	}
	switch a.Loop {
	case LoopOnce:
		if a.time >= d {
			a.time = d
			a.running = false
		}
	default:
		a.time = float32(gomath.Mod(float64(a.time), float64(d)))
		if a.time < 0 {
			a.time += d
		}
	}
}

func (a *Action) apply() {
	for i := range a.clip.Tracks {
		if node := a.nodes[i]; node != nil {
			node.Transform = a.clip.Tracks[i].Sample(a.time)
		}
	}
}

// Mixer drives actions bound to the nodes below a root. Skinned meshes
// below the root follow their joints after every update.
type Mixer struct {
	root    *scene.Node
	actions []*Action
	time    float32
}

// NewMixer creates a mixer for root's subtree.
func NewMixer(root *scene.Node) *Mixer {
	return &Mixer{root: root}
}

// Root returns the node the mixer animates.
func (m *Mixer) Root() *scene.Node { return m.root }

// ClipAction returns the action for clip, creating it on first use. Track
// targets are resolved by node name.
func (m *Mixer) ClipAction(clip *Clip) *Action {
	for _, a := range m.actions {
		if a.clip == clip {
			return a
		}
	}
	a := &Action{clip: clip, mixer: m, TimeScale: 1, nodes: make([]*scene.Node, len(clip.Tracks))}
	for i, tr := range clip.Tracks {
		a.nodes[i] = m.root.Find(tr.Target)
	}
	m.actions = append(m.actions, a)
	return a
}

// Update advances every running action by delta seconds and writes the
// sampled transforms to their nodes.
func (m *Mixer) Update(delta float32) {
	m.time += delta
	moved := false
	for _, a := range m.actions {
		if !a.running {
			continue
		}
		a.advance(delta)
		a.apply()
		moved = true
	}
	if moved {
		scene.UpdateSkins(m.root)
	}
}

// Time returns the total time the mixer has advanced.
func (m *Mixer) Time() float32 { return m.time }

// Running returns the number of running actions.
func (m *Mixer) Running() int {
	n := 0
	for _, a := range m.actions {
		if a.running {
			n++
		}
	}
	return n
}

// StopAll stops every action.
func (m *Mixer) StopAll() {
	for _, a := range m.actions {
		a.Stop()
	}
}
