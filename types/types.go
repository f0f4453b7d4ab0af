package types

type LifecycleManager interface {
	Start() error
	Stop() error
	IsRunning() bool
}

// Params are query parameters for a cached GET. Nil values are dropped.
type Params map[string]any
