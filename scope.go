package moor

// Scope controls how many instances a definition produces and how long
// they live.
type Scope int

const (
	// Singleton definitions construct once per registry. The instance is
	// shared by every resolver until it is explicitly released.
	Singleton Scope = iota

	// ContextScoped definitions construct once per execution context.
	// A fresh context never observes another context's instance; a
	// branched context inherits read access to values its parent had
	// already resolved.
	ContextScoped

	// Transient definitions construct on every resolution. Nothing is
	// cached; each resolution carries its own teardown.
	Transient
)

// String returns the human-readable name of the scope.
func (s Scope) String() string {
	switch s {
	case Singleton:
		return "singleton"
	case ContextScoped:
		return "context"
	case Transient:
		return "transient"
	default:
		return "unknown"
	}
}

func (s Scope) valid() bool {
	return s == Singleton || s == ContextScoped || s == Transient
}
