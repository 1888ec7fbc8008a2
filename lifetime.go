package crann

// Lifetime represents how long a resolved value lives.
type Lifetime int

const (
	// Transient creates a new instance on every resolution.
	// This is the default lifetime for every registration except ToInstance.
	Transient Lifetime = iota

	// Singleton creates one instance per owning container, lazily, on first
	// resolution. Child containers that do not shadow the key receive the
	// same instance.
	Singleton
)

// String returns the string representation of the lifetime.
func (l Lifetime) String() string {
	switch l {
	case Transient:
		return "transient"
	case Singleton:
		return "singleton"
	default:
		return "unknown"
	}
}

// Factory builds a value for a binding.
// It receives the resolution context: resolve further dependencies through
// it so a cycle error lists the whole chain.
//
// Example:
//
//	crann.Register[Connection](c).ToFactory(func(c *crann.Container) (any, error) {
//	    cfg, err := crann.Resolve[*Config](c)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return NewConnection(cfg.DSN), nil
//	})
type Factory func(c *Container) (any, error)
