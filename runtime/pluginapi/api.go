package pluginapi

import "gantry/runtime"

// Scope is the registration surface a setup handler receives. It is a type
// alias to runtime.Scope so plugin sources never import the runtime package
// directly.
type Scope = runtime.Scope

// HookFunc is a request-time hook installed through a Scope.
type HookFunc = runtime.HookFunc

// HookPhase names a point in request dispatch.
type HookPhase = runtime.HookPhase

const (
	PhaseOnRequest  = runtime.PhaseOnRequest
	PhasePreHandler = runtime.PhasePreHandler
)

// DefaultOrder is the order assigned when a module exports none.
const DefaultOrder = runtime.DefaultOrder
