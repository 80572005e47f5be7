package viewer

import (
	"errors"
	"fmt"
)

// Session errors.
var (
	ErrMountNotFound        = errors.New("mount point not found")
	ErrDuplicateMount       = errors.New("mount point already has a session")
	ErrARUnsupported        = errors.New("immersive AR is not supported")
	ErrRenderingUnavailable = errors.New("rendering is not available")
	ErrSessionClosed        = errors.New("session closed")
)

// Headings shown in place of a viewer that cannot run.
const (
	HeadingModelUnavailable = "Model unavailable"
	HeadingARUnsupported    = "AR not supported"
)

// AssetError reports a geometry or material that failed to load or parse.
type AssetError struct {
	URL string
	Err error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.URL, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }

// CapabilityError reports a host that lacks something the session needs.
type CapabilityError struct {
	Capability string
	Err        error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Capability, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// FrameError is a fault recovered from one render-loop iteration.
type FrameError struct {
	Frame uint64
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d: %v", e.Frame, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }
