package crann

import "sync"

// The root container is process-wide state: created once by InitRoot before
// any dependent work starts, disposed once by ShutdownRoot at shutdown.
// Lifecycle adapters should receive it explicitly rather than calling Root.
var root struct {
	mu sync.Mutex
	c  *Container
}

// InitRoot creates the process-wide root container.
// It returns ErrRootInitialized if the root already exists.
//
// Example:
//
//	cfg := crann.LoadConfig()
//	rootContainer, err := crann.InitRoot(cfg.Options()...)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer crann.ShutdownRoot()
func InitRoot(opts ...Option) (*Container, error) {
	root.mu.Lock()
	defer root.mu.Unlock()

	if root.c != nil {
		return nil, ErrRootInitialized
	}
	root.c = New(opts...)
	return root.c, nil
}

// Root returns the process-wide root container.
func Root() (*Container, error) {
	root.mu.Lock()
	defer root.mu.Unlock()

	if root.c == nil {
		return nil, ErrRootNotInitialized
	}
	return root.c, nil
}

// ShutdownRoot disposes the root container and forgets it, so InitRoot may
// be called again. It is a no-op when no root exists.
func ShutdownRoot() error {
	root.mu.Lock()
	c := root.c
	root.c = nil
	root.mu.Unlock()

	if c == nil {
		return nil
	}
	return c.Dispose()
}
