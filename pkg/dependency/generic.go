package dependency

import "reflect"

// Register registers TImpl as TService.
func Register[TService any, TImpl any](r Registrar, opts ...RegisterOption) error {
	return r.Register([]reflect.Type{reflect.TypeFor[TService]()}, reflect.TypeFor[TImpl](), opts...)
}

// RegisterInstance registers obj as T.
func RegisterInstance[T any](r Registrar, obj T, opts ...RegisterOption) error {
	return r.RegisterInstance(obj, []reflect.Type{reflect.TypeFor[T]()}, opts...)
}

// RegisterUsing registers a dig constructor producing T.
func RegisterUsing[T any](r Registrar, constructor interface{}, opts ...RegisterOption) error {
	return r.RegisterUsing(constructor, []reflect.Type{reflect.TypeFor[T]()}, opts...)
}

// Resolve returns the default T.
func Resolve[T any](r Resolver) (T, error) {
	return ResolveNamed[T](r, "")
}

// ResolveNamed returns the T registered under name.
func ResolveNamed[T any](r Resolver, name string) (T, error) {
	var zero T
	v, err := r.Resolve(reflect.TypeFor[T](), name)
	if err != nil {
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

// ResolveOptional returns the default T and whether it is registered.
func ResolveOptional[T any](r Resolver) (T, bool, error) {
	var zero T
	v, ok, err := r.ResolveOptional(reflect.TypeFor[T](), "")
	if err != nil || !ok {
		return zero, false, err
	}
	t, _ := v.(T)
	return t, true, nil
}

// ResolveAll returns every T, in registration order.
func ResolveAll[T any](r Resolver) ([]T, error) {
	return ResolveAllNamed[T](r, "")
}

// ResolveAllNamed returns every T registered under name.
func ResolveAllNamed[T any](r Resolver, name string) ([]T, error) {
	values, err := r.ResolveAll(reflect.TypeFor[T](), name)
	if err != nil {
		return nil, err
	}
	all := make([]T, 0, len(values))
	for _, v := range values {
		t, _ := v.(T)
		all = append(all, t)
	}
	return all, nil
}

// IsRegistered reports whether any registration provides T.
func IsRegistered[T any](r Resolver) (bool, error) {
	return r.IsRegistered(reflect.TypeFor[T]())
}
