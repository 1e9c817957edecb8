package plugin

// State represents the lifecycle state of a plugin.
type State int

// Plugin states.
const (
	// StateCreated - Engine and globals are installed; no script code has run.
	StateCreated State = iota

	// StateRan - Top-level source has executed at least once.
	StateRan

	// StateClosed - Engine and handlers have been torn down.
	StateClosed
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRan:
		return "ran"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// IsUsable returns true if the plugin can still run and dispatch.
func (s State) IsUsable() bool {
	return s == StateCreated || s == StateRan
}
