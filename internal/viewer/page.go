package viewer

import (
	"sort"
	"sync"

	"github.com/Faultbox/wavefront-viewer/internal/descriptor"
)

// Page tracks the sessions of one host, at most one per mount point.
type Page struct {
	host     Host
	platform Platform
	opts     Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewPage creates a page for host. opts is applied to every session.
func NewPage(host Host, platform Platform, opts Options) *Page {
	return &Page{
		host:     host,
		platform: platform,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// InitSession starts a session in mountID. A mount that already has a live
// session returns ErrDuplicateMount. Sessions that fail to bootstrap are
// still tracked so their status can be inspected.
func (p *Page) InitSession(mountID string, desc descriptor.ModelDescriptor) (*Session, error) {
	p.mu.Lock()
	if old, ok := p.sessions[mountID]; ok && old.Alive() {
		p.mu.Unlock()
		return old, ErrDuplicateMount
	}
	p.mu.Unlock()

	s, err := InitSession(p.host, p.platform, mountID, desc, p.opts)
	if s != nil {
		p.mu.Lock()
		p.sessions[mountID] = s
		p.mu.Unlock()
	}
	return s, err
}

// InitFromAttributes starts a session from the mount's data-* attributes.
func (p *Page) InitFromAttributes(mountID string) (*Session, error) {
	m, ok := p.host.Mount(mountID)
	if !ok {
		return nil, ErrMountNotFound
	}
	desc, err := descriptor.FromAttributes(m.Attributes())
	if err != nil {
		m.ShowError(HeadingModelUnavailable)
		return nil, err
	}
	return p.InitSession(mountID, desc)
}

// Session returns the session in mountID.
func (p *Page) Session(mountID string) (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[mountID]
	return s, ok
}

// Sessions returns every tracked session ordered by mount id.
func (p *Page) Sessions() []*Session {
	p.mu.Lock()
	out := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		out = append(out, s)
	}
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Statuses returns a snapshot of every session.
func (p *Page) Statuses() []Status {
	sessions := p.Sessions()
	out := make([]Status, len(sessions))
	for i, s := range sessions {
		out[i] = s.Status()
	}
	return out
}

// Teardown tears down the session in mountID and forgets it.
func (p *Page) Teardown(mountID string) error {
	p.mu.Lock()
	s, ok := p.sessions[mountID]
	delete(p.sessions, mountID)
	p.mu.Unlock()
	if !ok {
		return ErrMountNotFound
	}
	s.Teardown()
	return nil
}

// TeardownAll tears down every session.
func (p *Page) TeardownAll() {
	for _, s := range p.Sessions() {
		_ = p.Teardown(s.id)
	}
}
