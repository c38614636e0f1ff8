// Package automation defines the narrow contracts through
// which challenges reach the desktop-automation collaborators:
// system inspection, software installation, input injection,
// and screen analysis. The internals of real drivers are
// outside this module; the package ships the interfaces and a
// deterministic simulated engine for tests and dry runs.
package automation

import "context"

// PlatformInfo describes the host system.
type PlatformInfo struct {
	OS           string `json:"os"`
	Version      string `json:"version"`
	Architecture string `json:"architecture"`
	DisplayReady bool   `json:"display_ready"`
}

// SoftwareInfo describes one detected application.
type SoftwareInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Path      string `json:"path"`
	Installed bool   `json:"installed"`
}

// Point is a screen coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// SystemInspector answers questions about the host platform
// and installed software.
type SystemInspector interface {
	// Platform returns host system information.
	Platform(ctx context.Context) (PlatformInfo, error)

	// DetectSoftware looks up one application by name.
	DetectSoftware(
		ctx context.Context, name string,
	) (SoftwareInfo, error)
}

// SoftwareInstaller installs applications on the host.
type SoftwareInstaller interface {
	// Install installs the named application.
	Install(ctx context.Context, name string) error
}

// InputDriver injects mouse and keyboard input.
type InputDriver interface {
	// Click performs a mouse click at the given point.
	Click(ctx context.Context, p Point) error

	// TypeText types the given text.
	TypeText(ctx context.Context, text string) error

	// Hotkey presses a key combination.
	Hotkey(ctx context.Context, keys ...string) error
}

// ScreenAnalyzer locates on-screen elements. Backed by the
// vision collaborator in production; internals are out of
// scope here.
type ScreenAnalyzer interface {
	// Locate finds an element matching the description. The
	// boolean reports whether it was found.
	Locate(
		ctx context.Context, description string,
	) (Point, bool, error)
}

// AppController launches and closes applications.
type AppController interface {
	// Launch starts the named application.
	Launch(ctx context.Context, name string) error

	// IsRunning reports whether the application is running.
	IsRunning(
		ctx context.Context, name string,
	) (bool, error)

	// Close terminates the named application.
	Close(ctx context.Context, name string) error
}

// Engine bundles the collaborator contracts a challenge needs.
type Engine struct {
	Inspector SystemInspector
	Installer SoftwareInstaller
	Input     InputDriver
	Screen    ScreenAnalyzer
	Apps      AppController
}
