package challenge

import "context"

// Hooks is the capability contract invoked around the step
// sequence of a run. Implementations belong to the automation
// collaborators; the core only calls through this interface.
type Hooks interface {
	// PreSetup prepares the environment before the first step.
	// A non-nil error aborts the run as Failed; PostCleanup is
	// still invoked.
	PreSetup(ctx context.Context) error

	// PostCleanup releases resources after a run, whether it
	// succeeded or not. Errors are logged by the runner and
	// never change the run outcome.
	PostCleanup(ctx context.Context) error
}

// NopHooks is the default contract: setup always succeeds and
// cleanup does nothing.
type NopHooks struct{}

// PreSetup always succeeds.
func (NopHooks) PreSetup(context.Context) error { return nil }

// PostCleanup does nothing.
func (NopHooks) PostCleanup(context.Context) error {
	return nil
}

// HookFuncs adapts plain functions to the Hooks interface.
// Nil fields behave like NopHooks.
type HookFuncs struct {
	// Setup is called by PreSetup when non-nil.
	Setup func(ctx context.Context) error

	// Cleanup is called by PostCleanup when non-nil.
	Cleanup func(ctx context.Context) error
}

// PreSetup invokes the Setup function if set.
func (h HookFuncs) PreSetup(ctx context.Context) error {
	if h.Setup == nil {
		return nil
	}
	return h.Setup(ctx)
}

// PostCleanup invokes the Cleanup function if set.
func (h HookFuncs) PostCleanup(ctx context.Context) error {
	if h.Cleanup == nil {
		return nil
	}
	return h.Cleanup(ctx)
}
