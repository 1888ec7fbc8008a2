package crann

import "go.uber.org/zap"

// Option is a function that configures a Container.
type Option func(*options)

// options holds container settings shared by a root and all of its children.
type options struct {
	logger          *zap.Logger
	implicitBinding bool
}

func defaultOptions() options {
	return options{
		logger:          zap.NewNop(),
		implicitBinding: true,
	}
}

// WithLogger sets the logger used for registration, creation, injection and
// disposal events. A nil logger disables logging.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = zap.NewNop()
		}
		o.logger = logger
	}
}

// WithImplicitBinding controls whether unregistered concrete types are
// constructed on demand. Enabled by default; when disabled, only registered
// keys (and deferred factories of them) are resolvable.
func WithImplicitBinding(enabled bool) Option {
	return func(o *options) {
		o.implicitBinding = enabled
	}
}
