package automation

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// SimulatedEngine implements every collaborator contract
// against an in-memory desktop model. It is deterministic and
// fast, which makes it the backend for the built-in catalog in
// dry runs and for tests.
type SimulatedEngine struct {
	mu        sync.Mutex
	installed map[string]SoftwareInfo
	running   map[string]bool
	elements  map[string]Point
	actionLag time.Duration
}

// SimOption configures a SimulatedEngine.
type SimOption func(*SimulatedEngine)

// WithPreinstalled marks software as already installed.
func WithPreinstalled(names ...string) SimOption {
	return func(s *SimulatedEngine) {
		for _, name := range names {
			s.installed[name] = SoftwareInfo{
				Name:      name,
				Version:   "1.0.0",
				Path:      "/usr/bin/" + name,
				Installed: true,
			}
		}
	}
}

// WithElement places an on-screen element the analyzer can
// locate.
func WithElement(description string, p Point) SimOption {
	return func(s *SimulatedEngine) {
		s.elements[description] = p
	}
}

// WithActionLag adds a delay to every simulated action,
// approximating real UI timing.
func WithActionLag(d time.Duration) SimOption {
	return func(s *SimulatedEngine) { s.actionLag = d }
}

// NewSimulatedEngine creates a simulated desktop.
func NewSimulatedEngine(
	opts ...SimOption,
) *SimulatedEngine {
	s := &SimulatedEngine{
		installed: make(map[string]SoftwareInfo),
		running:   make(map[string]bool),
		elements:  make(map[string]Point),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns an Engine backed entirely by the simulation.
func (s *SimulatedEngine) Engine() *Engine {
	return &Engine{
		Inspector: s,
		Installer: s,
		Input:     s,
		Screen:    s,
		Apps:      s,
	}
}

// lag sleeps for the configured action lag, honouring ctx.
func (s *SimulatedEngine) lag(ctx context.Context) error {
	if s.actionLag <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(s.actionLag):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Platform returns the host's actual OS identifiers with a
// simulated ready display.
func (s *SimulatedEngine) Platform(
	ctx context.Context,
) (PlatformInfo, error) {
	if err := s.lag(ctx); err != nil {
		return PlatformInfo{}, err
	}
	return PlatformInfo{
		OS:           runtime.GOOS,
		Version:      "simulated",
		Architecture: runtime.GOARCH,
		DisplayReady: true,
	}, nil
}

// DetectSoftware reports whether the named application is
// installed in the simulation.
func (s *SimulatedEngine) DetectSoftware(
	ctx context.Context,
	name string,
) (SoftwareInfo, error) {
	if err := s.lag(ctx); err != nil {
		return SoftwareInfo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.installed[name]; ok {
		return info, nil
	}
	return SoftwareInfo{Name: name}, nil
}

// Install marks the named application as installed.
func (s *SimulatedEngine) Install(
	ctx context.Context,
	name string,
) error {
	if err := s.lag(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installed[name] = SoftwareInfo{
		Name:      name,
		Version:   "1.0.0",
		Path:      "/usr/bin/" + name,
		Installed: true,
	}
	return nil
}

// Click succeeds for any point on the simulated screen.
func (s *SimulatedEngine) Click(
	ctx context.Context,
	_ Point,
) error {
	return s.lag(ctx)
}

// TypeText succeeds for any text.
func (s *SimulatedEngine) TypeText(
	ctx context.Context,
	_ string,
) error {
	return s.lag(ctx)
}

// Hotkey succeeds for any combination.
func (s *SimulatedEngine) Hotkey(
	ctx context.Context,
	_ ...string,
) error {
	return s.lag(ctx)
}

// Locate finds elements registered with WithElement or
// RegisterElement.
func (s *SimulatedEngine) Locate(
	ctx context.Context,
	description string,
) (Point, bool, error) {
	if err := s.lag(ctx); err != nil {
		return Point{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.elements[description]
	return p, ok, nil
}

// Launch starts the named application if it is installed.
func (s *SimulatedEngine) Launch(
	ctx context.Context,
	name string,
) error {
	if err := s.lag(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.installed[name]
	if !ok || !info.Installed {
		return fmt.Errorf(
			"cannot launch %s: not installed", name,
		)
	}
	s.running[name] = true
	return nil
}

// IsRunning reports whether the application was launched.
func (s *SimulatedEngine) IsRunning(
	ctx context.Context,
	name string,
) (bool, error) {
	if err := s.lag(ctx); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[name], nil
}

// Close stops the named application.
func (s *SimulatedEngine) Close(
	ctx context.Context,
	name string,
) error {
	if err := s.lag(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, name)
	return nil
}

// RegisterElement adds an on-screen element after
// construction. Used by challenges that create UI as they go.
func (s *SimulatedEngine) RegisterElement(
	description string,
	p Point,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements[description] = p
}
