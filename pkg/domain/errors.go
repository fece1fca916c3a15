package domain

import "errors"

// ErrFlowExec is returned when a flow's Exec step is invoked directly.
// A flow has no exec phase of its own; its behavior is orchestration.
var ErrFlowExec = errors.New("flow cannot be executed directly, run it instead")

// ErrAborted is the default cancellation cause when a shared context is
// aborted without an explicit reason.
var ErrAborted = errors.New("shared context aborted")

// ErrNotLocked is returned when releasing a resource id that has no holder.
var ErrNotLocked = errors.New("resource is not locked")
