package viewer

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// schedule requests the next host animation frame.
func (s *Session) schedule() {
	if !s.alive {
		return
	}
	s.frame = s.host.RequestAnimationFrame(s.tick)
}

// tick is the host-driven frame callback.
func (s *Session) tick(time.Duration) {
	s.frame = 0
	if !s.alive {
		return
	}
	s.runFrame(func() error { return s.step(nil) })
	if s.ar != nil && s.ar.inXR() {
		return
	}
	s.schedule()
}

// runFrame runs one loop iteration. A fault is logged and counted; the
// loop keeps running.
func (s *Session) runFrame(step func() error) {
	s.mu.Lock()
	s.status.Frames++
	n := s.status.Frames
	s.mu.Unlock()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return step()
	}()
	if err == nil {
		return
	}

	fe := &FrameError{Frame: n, Err: err}
	s.mu.Lock()
	s.status.Faults++
	s.mu.Unlock()
	s.log.Warn("frame fault", zap.Uint64("frame", n), zap.Error(err))
	s.notify(Event{Kind: EventFrameFault, Error: fe.Error()})
}

// step advances the session by one frame: pending loads, animation,
// hit testing, controls, then rendering. xr is nil outside immersive
// frames.
func (s *Session) step(xr XRFrame) error {
	s.pollAssets()
	if s.ar != nil {
		s.ar.pollSession()
	}
	if !s.alive {
		return nil
	}

	if s.clock != nil {
		dt := s.clock.Delta()
		for _, m := range s.mixers {
			m.Update(dt)
		}
	}

	if xr != nil && s.ar != nil {
		if pose, ok := xr.ViewerPose(); ok {
			s.camera.SetPose(pose)
		}
		s.ar.updateHitTest(xr)
	}

	if s.controls != nil {
		s.controls.Update()
	}
	s.syncCameraNode()

	return s.renderer.Render(s.scene, s.camera)
}
