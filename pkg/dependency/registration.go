package dependency

import (
	"fmt"
	"io"
	"reflect"
	"strconv"
	"sync/atomic"

	"go.uber.org/dig"

	appErrors "bit-backend/pkg/errors"
)

var (
	errorType = reflect.TypeOf((*error)(nil)).Elem()
	inType    = reflect.TypeOf(dig.In{})

	registrationSeq atomic.Uint64
)

type registrationKind int

const (
	kindType registrationKind = iota
	kindInstance
	kindFactory
)

// serviceKey identifies a default registration.
type serviceKey struct {
	service reflect.Type
	name    string
}

// injectField is an exported struct field tagged with `inject`.
type injectField struct {
	index int
	typ   reflect.Type
	name  string
}

// registration is one Register/RegisterInstance/RegisterUsing call. It is immutable
// once added to a Builder.
type registration struct {
	id        uint64
	kind      registrationKind
	services  []reflect.Type
	implType  reflect.Type
	name      string
	lifecycle Lifecycle
	overwrite bool

	instance reflect.Value
	ctor     reflect.Value
	injects  []injectField
}

func newRegistration(kind registrationKind, services []reflect.Type, implType reflect.Type, opts []RegisterOption) (*registration, error) {
	if len(services) == 0 {
		return nil, appErrors.NewInvalidArgumentError("serviceTypes")
	}
	if implType == nil {
		return nil, appErrors.NewInvalidArgumentError("implementationType")
	}
	for _, service := range services {
		if service == nil {
			return nil, appErrors.NewInvalidArgumentError("serviceTypes")
		}
		if !implType.AssignableTo(service) {
			return nil, appErrors.NewInvalidArgumentError("serviceTypes").
				WithDetails(map[string]interface{}{
					"argument":       "serviceTypes",
					"service":        service.String(),
					"implementation": implType.String(),
				})
		}
	}

	o := defaultRegisterOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if kind == kindInstance {
		o.lifecycle = SingleInstance
	}

	return &registration{
		id:        registrationSeq.Add(1),
		kind:      kind,
		services:  append([]reflect.Type(nil), services...),
		implType:  implType,
		name:      o.name,
		lifecycle: o.lifecycle,
		overwrite: o.overwriteExisting,
	}, nil
}

func newTypeRegistration(services []reflect.Type, implType reflect.Type, opts []RegisterOption) (*registration, error) {
	reg, err := newRegistration(kindType, services, implType, opts)
	if err != nil {
		return nil, err
	}
	reg.injects = injectFields(implType)
	return reg, nil
}

func newInstanceRegistration(obj interface{}, services []reflect.Type, opts []RegisterOption) (*registration, error) {
	if obj == nil {
		return nil, appErrors.NewInvalidArgumentError("obj")
	}
	reg, err := newRegistration(kindInstance, services, reflect.TypeOf(obj), opts)
	if err != nil {
		return nil, err
	}
	reg.instance = reflect.ValueOf(obj)
	return reg, nil
}

func newFactoryRegistration(constructor interface{}, services []reflect.Type, opts []RegisterOption) (*registration, error) {
	if constructor == nil {
		return nil, appErrors.NewInvalidArgumentError("constructor")
	}
	ctor := reflect.ValueOf(constructor)
	ft := ctor.Type()
	if ft.Kind() != reflect.Func || ctor.IsNil() || ft.IsVariadic() {
		return nil, appErrors.NewInvalidArgumentError("constructor")
	}
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return nil, appErrors.NewInvalidArgumentError("constructor")
	}

	reg, err := newRegistration(kindFactory, services, ft.Out(0), opts)
	if err != nil {
		return nil, err
	}
	reg.ctor = ctor
	return reg, nil
}

// key is the dig name the registration's own provider is stored under.
func (r *registration) key() string {
	return "dependency.registration." + strconv.FormatUint(r.id, 10)
}

func (r *registration) tag() string {
	return nameTag(r.key())
}

func (r *registration) provides(service reflect.Type, name string) bool {
	if name != "" && r.name != name {
		return false
	}
	for _, s := range r.services {
		if s == service {
			return true
		}
	}
	return false
}

// keys returns the default keys this registration competes for.
func (r *registration) keys() []serviceKey {
	keys := make([]serviceKey, 0, len(r.services)*2)
	for _, s := range r.services {
		keys = append(keys, serviceKey{service: s})
		if r.name != "" {
			keys = append(keys, serviceKey{service: s, name: r.name})
		}
	}
	return keys
}

// params returns the constructor parameter types dig has to satisfy.
func (r *registration) params() []reflect.Type {
	switch r.kind {
	case kindFactory:
		ft := r.ctor.Type()
		in := make([]reflect.Type, ft.NumIn())
		for i := range in {
			in[i] = ft.In(i)
		}
		return in
	case kindType:
		if len(r.injects) == 0 {
			return nil
		}
		fields := []reflect.StructField{{Name: "In", Type: inType, Anonymous: true}}
		for i, f := range r.injects {
			tag := `optional:"true"`
			if f.name != "" {
				tag = nameTag(f.name) + " " + tag
			}
			fields = append(fields, reflect.StructField{
				Name: fmt.Sprintf("Field%d", i),
				Type: f.typ,
				Tag:  reflect.StructTag(tag),
			})
		}
		return []reflect.Type{reflect.StructOf(fields)}
	default:
		return nil
	}
}

// build creates a new instance from the arguments dig resolved for params.
func (r *registration) build(args []reflect.Value) (reflect.Value, error) {
	switch r.kind {
	case kindInstance:
		return r.instance, nil
	case kindFactory:
		out := r.ctor.Call(args)
		if len(out) == 2 && !out[1].IsNil() {
			return reflect.Value{}, out[1].Interface().(error)
		}
		return out[0], nil
	default:
		return r.construct(args), nil
	}
}

func (r *registration) construct(args []reflect.Value) reflect.Value {
	var v, fields reflect.Value
	switch {
	case r.implType.Kind() == reflect.Ptr && r.implType.Elem().Kind() == reflect.Struct:
		v = reflect.New(r.implType.Elem())
		fields = v.Elem()
	case r.implType.Kind() == reflect.Struct:
		v = reflect.New(r.implType).Elem()
		fields = v
	default:
		return reflect.Zero(r.implType)
	}

	if len(args) == 1 {
		for i, f := range r.injects {
			fields.Field(f.index).Set(args[0].Field(i + 1))
		}
	}
	return v
}

func injectFields(t reflect.Type) []injectField {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var fields []injectField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, ok := f.Tag.Lookup("inject")
		if !ok || !f.IsExported() {
			continue
		}
		fields = append(fields, injectField{index: i, typ: f.Type, name: name})
	}
	return fields
}

func nameTag(name string) string {
	if name == "" {
		return ""
	}
	return "name:" + strconv.Quote(name)
}

// inStruct builds struct{ dig.In; Value t `tag` }.
func inStruct(t reflect.Type, tag string) reflect.Type {
	return reflect.StructOf([]reflect.StructField{
		{Name: "In", Type: inType, Anonymous: true},
		{Name: "Value", Type: t, Tag: reflect.StructTag(tag)},
	})
}

func closerOf(v reflect.Value) (io.Closer, bool) {
	if !v.IsValid() {
		return nil, false
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil, false
		}
	}
	c, ok := v.Interface().(io.Closer)
	return c, ok
}

func errorValue(err error) reflect.Value {
	if err == nil {
		return reflect.Zero(errorType)
	}
	return reflect.ValueOf(&err).Elem()
}

// assign converts v to a value of type t.
func assign(v reflect.Value, t reflect.Type) reflect.Value {
	out := reflect.New(t).Elem()
	if v.IsValid() {
		out.Set(v)
	}
	return out
}
