// Package catalog defines the built-in progression of
// automation challenges as a static registration table keyed
// by level. Levels are data, not orchestrator logic: the
// orchestrator discovers them only through the registry.
package catalog

import (
	"context"
	"fmt"

	"digital.vasic.automation/pkg/automation"
	"digital.vasic.automation/pkg/challenge"
	"digital.vasic.automation/pkg/registry"
)

// targetApp is the application the progression automates.
const targetApp = "kicad"

// requiredSoftware is checked by the detection level.
var requiredSoftware = []string{"kicad", "git", "python"}

// Builder constructs one challenge over the automation engine.
type Builder func(
	eng *automation.Engine,
) (*challenge.Challenge, error)

// builders is the static table of built-in levels.
var builders = map[int]Builder{
	1: systemDetection,
	2: softwareInstallation,
	3: applicationLaunch,
	4: uiNavigation,
	5: complexTasks,
	6: fileManagement,
	7: advancedOperations,
}

// Levels returns the built-in levels in ascending order.
func Levels() []int {
	return []int{1, 2, 3, 4, 5, 6, 7}
}

// Register builds every built-in challenge over the given
// engine and registers it, then validates the prerequisite
// graph.
func Register(
	reg *registry.Registry,
	eng *automation.Engine,
) error {
	for _, level := range Levels() {
		c, err := builders[level](eng)
		if err != nil {
			return fmt.Errorf(
				"build level %d: %w", level, err,
			)
		}
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return reg.ValidatePrerequisites()
}

// systemDetection is level 1: detect the platform and the
// required software.
func systemDetection(
	eng *automation.Engine,
) (*challenge.Challenge, error) {
	steps := []challenge.Step{
		{
			Label: "Get platform information",
			Run: func(ctx context.Context) error {
				info, err := eng.Inspector.Platform(ctx)
				if err != nil {
					return err
				}
				if !info.DisplayReady {
					return fmt.Errorf(
						"display is not available on %s",
						info.OS,
					)
				}
				return nil
			},
		},
		{
			Label: "Detect installed software",
			Run: func(ctx context.Context) error {
				for _, name := range requiredSoftware {
					if _, err := eng.Inspector.DetectSoftware(
						ctx, name,
					); err != nil {
						return fmt.Errorf(
							"detect %s: %w", name, err,
						)
					}
				}
				return nil
			},
		},
		{
			Label: "Verify target application presence check",
			Run: func(ctx context.Context) error {
				_, err := eng.Inspector.DetectSoftware(
					ctx, targetApp,
				)
				return err
			},
		},
	}
	return challenge.New(
		1,
		"System Detection",
		"Detect the platform and whether the required "+
			"software is installed",
		steps,
	)
}

// softwareInstallation is level 2: install the target
// application if missing and verify.
func softwareInstallation(
	eng *automation.Engine,
) (*challenge.Challenge, error) {
	steps := []challenge.Step{
		{
			Label: "Check current installation status",
			Run: func(ctx context.Context) error {
				_, err := eng.Inspector.DetectSoftware(
					ctx, targetApp,
				)
				return err
			},
		},
		{
			Label: "Install target application",
			Run: func(ctx context.Context) error {
				info, err := eng.Inspector.DetectSoftware(
					ctx, targetApp,
				)
				if err != nil {
					return err
				}
				if info.Installed {
					return nil
				}
				return eng.Installer.Install(ctx, targetApp)
			},
		},
		{
			Label: "Verify installation",
			Run: func(ctx context.Context) error {
				info, err := eng.Inspector.DetectSoftware(
					ctx, targetApp,
				)
				if err != nil {
					return err
				}
				if !info.Installed {
					return fmt.Errorf(
						"%s still not installed", targetApp,
					)
				}
				return nil
			},
		},
	}
	return challenge.New(
		2,
		"Software Installation",
		"Install the target application and verify the "+
			"installation",
		steps,
		challenge.WithPrerequisites(1),
	)
}

// applicationLaunch is level 3: close stale instances, launch,
// and verify responsiveness.
func applicationLaunch(
	eng *automation.Engine,
) (*challenge.Challenge, error) {
	steps := []challenge.Step{
		{
			Label: "Close existing instances",
			Run: func(ctx context.Context) error {
				running, err := eng.Apps.IsRunning(
					ctx, targetApp,
				)
				if err != nil {
					return err
				}
				if running {
					return eng.Apps.Close(ctx, targetApp)
				}
				return nil
			},
		},
		{
			Label: "Launch application",
			Run: func(ctx context.Context) error {
				return eng.Apps.Launch(ctx, targetApp)
			},
		},
		{
			Label: "Verify main window",
			Run: func(ctx context.Context) error {
				running, err := eng.Apps.IsRunning(
					ctx, targetApp,
				)
				if err != nil {
					return err
				}
				if !running {
					return fmt.Errorf(
						"%s did not stay running", targetApp,
					)
				}
				return nil
			},
		},
	}
	return challenge.New(
		3,
		"Application Launch",
		"Launch the target application and verify it is "+
			"responsive",
		steps,
		challenge.WithPrerequisites(2),
	)
}

// uiNavigation is level 4: drive the menus to create a new
// project.
func uiNavigation(
	eng *automation.Engine,
) (*challenge.Challenge, error) {
	clickElement := func(
		ctx context.Context, description string,
	) error {
		p, found, err := eng.Screen.Locate(ctx, description)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf(
				"element not found: %s", description,
			)
		}
		return eng.Input.Click(ctx, p)
	}

	steps := []challenge.Step{
		{
			Label: "Open the File menu",
			Run: func(ctx context.Context) error {
				return clickElement(ctx, "file menu")
			},
		},
		{
			Label: "Select New Project",
			Run: func(ctx context.Context) error {
				return clickElement(ctx, "new project item")
			},
		},
		{
			Label: "Enter project name",
			Run: func(ctx context.Context) error {
				return eng.Input.TypeText(
					ctx, "automation_project",
				)
			},
		},
		{
			Label: "Confirm project creation",
			Run: func(ctx context.Context) error {
				return eng.Input.Hotkey(ctx, "enter")
			},
		},
	}
	return challenge.New(
		4,
		"UI Navigation",
		"Navigate the application menus to create a new "+
			"project",
		steps,
		challenge.WithPrerequisites(3),
	)
}

// complexTasks is level 5: multi-editor work inside the
// project.
func complexTasks(
	eng *automation.Engine,
) (*challenge.Challenge, error) {
	steps := []challenge.Step{
		{
			Label: "Open the schematic editor",
			Run: func(ctx context.Context) error {
				return eng.Input.Hotkey(
					ctx, "ctrl", "shift", "s",
				)
			},
		},
		{
			Label: "Place components",
			Run: func(ctx context.Context) error {
				for _, p := range []automation.Point{
					{X: 200, Y: 200},
					{X: 400, Y: 200},
					{X: 300, Y: 350},
				} {
					if err := eng.Input.Click(
						ctx, p,
					); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Label: "Wire the connections",
			Run: func(ctx context.Context) error {
				if err := eng.Input.Hotkey(
					ctx, "w",
				); err != nil {
					return err
				}
				return eng.Input.Click(
					ctx, automation.Point{X: 300, Y: 260},
				)
			},
		},
		{
			Label: "Run the electrical rules check",
			Run: func(ctx context.Context) error {
				return eng.Input.Hotkey(ctx, "ctrl", "e")
			},
		},
	}
	return challenge.New(
		5,
		"Complex Tasks",
		"Perform multi-editor schematic work inside the "+
			"project",
		steps,
		challenge.WithPrerequisites(4),
	)
}

// fileManagement is level 6: save and organise project files.
func fileManagement(
	eng *automation.Engine,
) (*challenge.Challenge, error) {
	steps := []challenge.Step{
		{
			Label: "Save the project",
			Run: func(ctx context.Context) error {
				return eng.Input.Hotkey(ctx, "ctrl", "s")
			},
		},
		{
			Label: "Export project outputs",
			Run: func(ctx context.Context) error {
				return eng.Input.Hotkey(
					ctx, "ctrl", "shift", "e",
				)
			},
		},
		{
			Label: "Verify application still responsive",
			Run: func(ctx context.Context) error {
				running, err := eng.Apps.IsRunning(
					ctx, targetApp,
				)
				if err != nil {
					return err
				}
				if !running {
					return fmt.Errorf(
						"%s exited during export", targetApp,
					)
				}
				return nil
			},
		},
	}
	return challenge.New(
		6,
		"File Management",
		"Save, export, and organise the project files",
		steps,
		challenge.WithPrerequisites(5),
	)
}

// advancedOperations is level 7: the full end-to-end pass.
func advancedOperations(
	eng *automation.Engine,
) (*challenge.Challenge, error) {
	steps := []challenge.Step{
		{
			Label: "Reopen the project",
			Run: func(ctx context.Context) error {
				return eng.Apps.Launch(ctx, targetApp)
			},
		},
		{
			Label: "Run the full design workflow",
			Run: func(ctx context.Context) error {
				for _, combo := range [][]string{
					{"ctrl", "shift", "s"},
					{"ctrl", "e"},
					{"ctrl", "shift", "p"},
				} {
					if err := eng.Input.Hotkey(
						ctx, combo...,
					); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Label: "Shut the application down cleanly",
			Run: func(ctx context.Context) error {
				return eng.Apps.Close(ctx, targetApp)
			},
		},
	}
	return challenge.New(
		7,
		"Advanced Operations",
		"Exercise the complete workflow end to end and shut "+
			"down cleanly",
		steps,
		challenge.WithPrerequisites(6),
	)
}
