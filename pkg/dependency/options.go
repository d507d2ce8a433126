package dependency

// Lifecycle controls how long a resolved instance is reused.
type Lifecycle int

const (
	// PerScopeInstance builds one instance per lifetime scope.
	PerScopeInstance Lifecycle = iota
	// SingleInstance builds one instance for the scope that owns the registration
	// and shares it with every child scope.
	SingleInstance
)

// String returns the lifecycle name
func (l Lifecycle) String() string {
	switch l {
	case SingleInstance:
		return "single-instance"
	default:
		return "per-scope-instance"
	}
}

type registerOptions struct {
	name              string
	lifecycle         Lifecycle
	overwriteExisting bool
}

func defaultRegisterOptions() registerOptions {
	return registerOptions{
		lifecycle:         PerScopeInstance,
		overwriteExisting: true,
	}
}

// RegisterOption customizes a single registration.
type RegisterOption func(*registerOptions)

// WithName additionally registers the service under name.
func WithName(name string) RegisterOption {
	return func(o *registerOptions) {
		o.name = name
	}
}

// WithLifecycle sets the registration lifecycle. Instances registered with
// RegisterInstance are always single instances.
func WithLifecycle(lifecycle Lifecycle) RegisterOption {
	return func(o *registerOptions) {
		o.lifecycle = lifecycle
	}
}

// KeepExisting keeps an earlier registration as the default for the service.
// The new registration is still returned by ResolveAll.
func KeepExisting() RegisterOption {
	return func(o *registerOptions) {
		o.overwriteExisting = false
	}
}
