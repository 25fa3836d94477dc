package grove

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DataKey is a property path into a live object, e.g. {"position", "x"}.
// A single-segment key addresses a top-level member.
type DataKey []string

// Key builds a DataKey from path segments.
func Key(path ...string) DataKey {
	return DataKey(path)
}

// ParseDataKey splits a dotted path ("position.x") into a DataKey.
func ParseDataKey(s string) DataKey {
	return DataKey(strings.Split(s, "."))
}

// ParseDataKeys parses each dotted path.
func ParseDataKeys(paths ...string) []DataKey {
	keys := make([]DataKey, len(paths))
	for i, p := range paths {
		keys[i] = ParseDataKey(p)
	}
	return keys
}

// String returns the dotted form of the key.
func (k DataKey) String() string {
	return strings.Join(k, ".")
}

// DefaultDataKeys are the values every display element persists.
var DefaultDataKeys = ParseDataKeys(
	"name",
	"position.x",
	"position.y",
	"scale.x",
	"scale.y",
	"alpha",
	"rotation",
	"pivot.x",
	"pivot.y",
)

// WithDataKeys returns DefaultDataKeys followed by the given dotted paths.
func WithDataKeys(paths ...string) []DataKey {
	return append(slices.Clone(DefaultDataKeys), ParseDataKeys(paths...)...)
}

var (
	// ErrNoMember is returned when a path segment names nothing on the object.
	ErrNoMember = errors.New("grove: no such member")
	// ErrNotAssignable is returned when a value cannot be stored in a member.
	ErrNotAssignable = errors.New("grove: member is not assignable")
	// ErrNotReadable is returned when a member has no readable value.
	ErrNotReadable = errors.New("grove: member is not readable")
	// ErrNotInvocable is returned when a method cannot be called with the
	// given arguments.
	ErrNotInvocable = errors.New("grove: member cannot be invoked")
	// ErrMemberPanic wraps a panic raised by a getter, setter or method.
	ErrMemberPanic = errors.New("grove: member panicked")
)

// FieldError reports a codec failure on one key. Key is the full dotted path.
type FieldError struct {
	Key string
	Err error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("grove: property %q: %v", e.Key, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ValueDecoder is implemented by types that accept scene data in a scalar
// form other than their Go shape, such as hex numbers for colors. Objects
// are always merged field by field instead.
type ValueDecoder interface {
	DecodeValue(v any) error
}

var valueDecoderType = reflect.TypeFor[ValueDecoder]()

// --- Read ---

// GetValue reads a single path from obj.
func GetValue(obj any, key DataKey) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrMemberPanic, r)
		}
	}()
	if len(key) == 0 {
		return nil, ErrNoMember
	}
	v := reflect.ValueOf(obj)
	for _, seg := range key {
		m, err := resolveMember(v, seg)
		if err != nil {
			return nil, err
		}
		if v, err = m.get(); err != nil {
			return nil, err
		}
	}
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

// GetValues reads every key of obj into a nested map mirroring the key paths.
// A key that cannot be read is left absent; the failures are returned joined
// as *FieldError values while the remaining keys are still read.
func GetValues(obj any, keys []DataKey) (map[string]any, error) {
	values := make(map[string]any)
	var errs []error
	for _, k := range keys {
		val, err := GetValue(obj, k)
		if err != nil {
			errs = append(errs, &FieldError{Key: k.String(), Err: err})
			continue
		}
		dst := values
		for _, seg := range k[:len(k)-1] {
			next, ok := dst[seg].(map[string]any)
			if !ok {
				next = make(map[string]any)
				dst[seg] = next
			}
			dst = next
		}
		dst[k[len(k)-1]] = val
	}
	return values, errors.Join(errs...)
}

// --- Write / Update ---

// SetValues applies a nested data map to obj. For each key, a method member
// is invoked with the value as its argument list (a non-list value becomes a
// single argument); an object value is merged into the member recursively,
// lists replace the member wholesale, and scalars are assigned with numeric
// conversion. Each failing key is reported as a *FieldError in the joined
// result and the other keys are still applied.
func SetValues(obj any, values map[string]any) error {
	a := &applier{invoke: true}
	a.apply(obj, values)
	return errors.Join(a.errs...)
}

// UpdateValues merges values into obj like SetValues but never invokes
// methods, so it is safe to repeat an incremental update.
func UpdateValues(obj any, values map[string]any) error {
	a := &applier{invoke: false}
	a.apply(obj, values)
	return errors.Join(a.errs...)
}

type applier struct {
	invoke bool
	errs   []error
}

func (a *applier) fail(path string, err error) {
	a.errs = append(a.errs, &FieldError{Key: path, Err: err})
}

func (a *applier) apply(obj any, values map[string]any) {
	root := reflect.ValueOf(obj)
	if !root.IsValid() {
		a.fail("", fmt.Errorf("%w: nil target", ErrNotAssignable))
		return
	}
	for _, key := range sortedKeys(values) {
		a.set(root, key, key, values[key])
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// set stores val into the member key of container, recording failures.
func (a *applier) set(container reflect.Value, path, key string, val any) {
	defer func() {
		if r := recover(); r != nil {
			a.fail(path, fmt.Errorf("%w: %v", ErrMemberPanic, r))
		}
	}()
	m, err := resolveMember(container, key)
	if err != nil {
		a.fail(path, err)
		return
	}
	switch m.kind {
	case memberMethod:
		if !a.invoke {
			a.fail(path, fmt.Errorf("%w: %s is a method", ErrNotAssignable, key))
			return
		}
		if err := a.call(m.method, path, val); err != nil {
			a.fail(path, err)
		}

	case memberProperty:
		if !m.setter.IsValid() {
			a.fail(path, fmt.Errorf("%w: %s is read-only", ErrNotAssignable, key))
			return
		}
		// Read-modify-write so the setter observes a nested merge.
		cur := reflect.New(m.setter.Type().In(0)).Elem()
		if isNested(val) && m.getter.IsValid() {
			if g := m.getter.Call(nil)[0]; g.Type().AssignableTo(cur.Type()) {
				cur.Set(g)
			}
		}
		if a.assign(cur, path, val) {
			m.setter.Call([]reflect.Value{cur})
		}

	case memberMapEntry:
		if m.container.IsNil() {
			a.fail(path, fmt.Errorf("%w: nil map", ErrNotAssignable))
			return
		}
		cur := reflect.New(m.container.Type().Elem()).Elem()
		if existing := m.container.MapIndex(m.mapKey); existing.IsValid() && isNested(val) {
			cur.Set(existing)
		}
		if a.assign(cur, path, val) {
			m.container.SetMapIndex(m.mapKey, cur)
		}

	case memberField:
		if !m.field.CanSet() {
			a.fail(path, fmt.Errorf("%w: %s is not settable", ErrNotAssignable, key))
			return
		}
		a.assign(m.field, path, val)
	}
}

// assign stores val into the settable dst. Objects merge, everything else
// replaces. Reports whether dst was written.
func (a *applier) assign(dst reflect.Value, path string, val any) bool {
	if obj, ok := val.(map[string]any); ok {
		return a.merge(dst, path, obj)
	}
	nv, err := a.convert(val, dst.Type(), path)
	if err != nil {
		a.fail(path, err)
		return false
	}
	dst.Set(nv)
	return true
}

// merge applies obj key by key onto dst, creating a container of the right
// shape when dst is empty. Keys not present in obj are preserved.
func (a *applier) merge(dst reflect.Value, path string, obj map[string]any) bool {
	switch dst.Kind() {
	case reflect.Interface:
		if !dst.IsNil() && dst.Elem().Kind() == reflect.Struct {
			// Interface contents are not addressable: merge into a copy.
			cp := reflect.New(dst.Elem().Type()).Elem()
			cp.Set(dst.Elem())
			if !a.merge(cp, path, obj) {
				return false
			}
			dst.Set(cp)
			return true
		}
		if dst.IsNil() || !mergeableInPlace(dst.Elem()) {
			// A scalar sits in the slot; an object replaces it.
			dst.Set(reflect.ValueOf(make(map[string]any)))
		}
		target := dst.Elem()
		for _, k := range sortedKeys(obj) {
			a.set(target, joinPath(path, k), k, obj[k])
		}
	case reflect.Pointer:
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		for _, k := range sortedKeys(obj) {
			a.set(dst, joinPath(path, k), k, obj[k])
		}
	case reflect.Map:
		if dst.Type().Key().Kind() != reflect.String {
			a.fail(path, fmt.Errorf("%w: map key type %s", ErrNotAssignable, dst.Type().Key()))
			return false
		}
		if dst.IsNil() {
			dst.Set(reflect.MakeMap(dst.Type()))
		}
		for _, k := range sortedKeys(obj) {
			a.set(dst, joinPath(path, k), k, obj[k])
		}
	case reflect.Struct:
		for _, k := range sortedKeys(obj) {
			a.set(dst, joinPath(path, k), k, obj[k])
		}
	default:
		a.fail(path, fmt.Errorf("%w: cannot merge an object into %s", ErrNotAssignable, dst.Type()))
		return false
	}
	return true
}

// convert produces a value of type t from scene data.
func (a *applier) convert(val any, t reflect.Type, path string) (reflect.Value, error) {
	if val == nil {
		return reflect.Zero(t), nil
	}
	if obj, ok := val.(map[string]any); ok {
		nv := reflect.New(t).Elem()
		a.merge(nv, path, obj)
		return nv, nil
	}
	if reflect.PointerTo(t).Implements(valueDecoderType) {
		nv := reflect.New(t)
		if err := nv.Interface().(ValueDecoder).DecodeValue(val); err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %v", ErrNotAssignable, err)
		}
		return nv.Elem(), nil
	}

	sv := reflect.ValueOf(val)
	st := sv.Type()
	if st.AssignableTo(t) {
		return sv, nil
	}
	switch {
	case isNumberKind(st.Kind()) && isNumberKind(t.Kind()):
		return convertNumber(sv, t)
	case st.Kind() == t.Kind() && st.ConvertibleTo(t) && t.Kind() != reflect.Slice:
		return sv.Convert(t), nil
	case st.Kind() == reflect.Slice && (t.Kind() == reflect.Slice || t.Kind() == reflect.Array):
		n := sv.Len()
		var out reflect.Value
		if t.Kind() == reflect.Slice {
			out = reflect.MakeSlice(t, n, n)
		} else {
			if n != t.Len() {
				return reflect.Value{}, fmt.Errorf("%w: want %d elements, got %d", ErrNotAssignable, t.Len(), n)
			}
			out = reflect.New(t).Elem()
		}
		for i := 0; i < n; i++ {
			ev, err := a.convert(sv.Index(i).Interface(), t.Elem(), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(ev)
		}
		return out, nil
	case t.Kind() == reflect.Pointer:
		inner, err := a.convert(val, t.Elem(), path)
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(inner)
		return p, nil
	}
	return reflect.Value{}, fmt.Errorf("%w: cannot use %T as %s", ErrNotAssignable, val, t)
}

// call invokes a method member. val is the argument list; a non-list value
// is a single argument. Extra arguments are dropped and missing ones are
// zero, so data written for a looser signature still applies.
func (a *applier) call(method reflect.Value, path string, val any) error {
	var args []any
	switch v := val.(type) {
	case []any:
		args = v
	default:
		args = []any{val}
	}

	mt := method.Type()
	fixed := mt.NumIn()
	if mt.IsVariadic() {
		fixed--
	}
	in := make([]reflect.Value, 0, max(fixed, len(args)))
	for i := 0; i < fixed; i++ {
		pt := mt.In(i)
		if i >= len(args) {
			in = append(in, reflect.Zero(pt))
			continue
		}
		av, err := a.convert(args[i], pt, path)
		if err != nil {
			return fmt.Errorf("%w: argument %d: %v", ErrNotInvocable, i, err)
		}
		in = append(in, av)
	}
	if mt.IsVariadic() {
		et := mt.In(fixed).Elem()
		for i := fixed; i < len(args); i++ {
			av, err := a.convert(args[i], et, path)
			if err != nil {
				return fmt.Errorf("%w: argument %d: %v", ErrNotInvocable, i, err)
			}
			in = append(in, av)
		}
	}

	out := method.Call(in)
	if n := len(out); n > 0 && mt.Out(n-1) == reflect.TypeFor[error]() && !out[n-1].IsNil() {
		return out[n-1].Interface().(error)
	}
	return nil
}

// --- Member resolution ---

type memberKind uint8

const (
	memberField memberKind = iota
	memberMapEntry
	memberProperty
	memberMethod
)

type member struct {
	kind      memberKind
	field     reflect.Value
	container reflect.Value // map holding a memberMapEntry
	mapKey    reflect.Value
	getter    reflect.Value
	setter    reflect.Value
	method    reflect.Value
}

func (m member) get() (reflect.Value, error) {
	switch m.kind {
	case memberField:
		return m.field, nil
	case memberMapEntry:
		v := m.container.MapIndex(m.mapKey)
		if !v.IsValid() {
			return reflect.Value{}, ErrNoMember
		}
		return v, nil
	case memberProperty:
		if !m.getter.IsValid() {
			return reflect.Value{}, ErrNotReadable
		}
		return m.getter.Call(nil)[0], nil
	default:
		return reflect.Value{}, ErrNotReadable
	}
}

// resolveMember finds key on v. Lookup order: map entry, struct field (by
// grove tag or case-insensitive exported name, promoted fields included),
// getter/setter pair Key()/SetKey(v), then a method named Key.
func resolveMember(v reflect.Value, key string) (member, error) {
	for v.Kind() == reflect.Interface {
		if v.IsNil() {
			return member{}, fmt.Errorf("%w: %q on nil", ErrNoMember, key)
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return member{}, fmt.Errorf("%w: %q on nil", ErrNoMember, key)
	}
	recv := v
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return member{}, fmt.Errorf("%w: %q on nil", ErrNoMember, key)
		}
		recv = v
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		kt := v.Type().Key()
		if kt.Kind() != reflect.String {
			return member{}, fmt.Errorf("%w: %q on %s", ErrNoMember, key, v.Type())
		}
		return member{kind: memberMapEntry, container: v, mapKey: reflect.ValueOf(key).Convert(kt)}, nil
	case reflect.Struct:
		if f, ok, err := structField(v, key); err != nil {
			return member{}, err
		} else if ok {
			return member{kind: memberField, field: f}, nil
		}
	}

	if v.CanAddr() {
		recv = v.Addr()
	}
	name := exportName(key)
	getter := recv.MethodByName(name)
	setter := recv.MethodByName("Set" + name)
	isGetter := getter.IsValid() && getter.Type().NumIn() == 0 && getter.Type().NumOut() >= 1
	isSetter := setter.IsValid() && setter.Type().NumIn() == 1
	if isGetter || isSetter {
		m := member{kind: memberProperty}
		if isGetter {
			m.getter = getter
		}
		if isSetter {
			m.setter = setter
		}
		return m, nil
	}
	if getter.IsValid() {
		return member{kind: memberMethod, method: getter}, nil
	}
	return member{}, fmt.Errorf("%w: %q on %s", ErrNoMember, key, v.Type())
}

// structField finds the shallowest exported field matching key.
func structField(v reflect.Value, key string) (reflect.Value, bool, error) {
	var best *reflect.StructField
	for _, f := range reflect.VisibleFields(v.Type()) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		tag := f.Tag.Get("grove")
		if tag == "-" {
			continue
		}
		name := f.Name
		if tag != "" {
			name = tag
		}
		if !strings.EqualFold(name, key) {
			continue
		}
		if best == nil || len(f.Index) < len(best.Index) {
			f := f
			best = &f
		}
	}
	if best == nil {
		return reflect.Value{}, false, nil
	}
	fv, err := v.FieldByIndexErr(best.Index)
	if err != nil {
		return reflect.Value{}, false, fmt.Errorf("%w: %q: %v", ErrNoMember, key, err)
	}
	return fv, true, nil
}

func exportName(key string) string {
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError {
		return key
	}
	return string(unicode.ToUpper(r)) + key[size:]
}

func isNested(val any) bool {
	_, ok := val.(map[string]any)
	return ok
}

// mergeableInPlace reports whether an object can merge into v, the content
// of an interface slot, without copying it.
func mergeableInPlace(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer:
		return !v.IsNil()
	case reflect.Map:
		return !v.IsNil() && v.Type().Key().Kind() == reflect.String
	}
	return false
}

// convertNumber converts between numeric kinds, rejecting fractions for
// integer targets and values the target cannot represent.
func convertNumber(sv reflect.Value, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	bad := func() (reflect.Value, error) {
		return reflect.Value{}, fmt.Errorf("%w: %v does not fit %s", ErrNotAssignable, sv.Interface(), t)
	}
	switch {
	case isIntKind(t.Kind()):
		var n int64
		switch {
		case isIntKind(sv.Kind()):
			n = sv.Int()
		case isUintKind(sv.Kind()):
			u := sv.Uint()
			if u > math.MaxInt64 {
				return bad()
			}
			n = int64(u)
		default:
			f := sv.Float()
			if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
				return bad()
			}
			n = int64(f)
		}
		if out.OverflowInt(n) {
			return bad()
		}
		out.SetInt(n)
	case isUintKind(t.Kind()):
		var u uint64
		switch {
		case isIntKind(sv.Kind()):
			n := sv.Int()
			if n < 0 {
				return bad()
			}
			u = uint64(n)
		case isUintKind(sv.Kind()):
			u = sv.Uint()
		default:
			f := sv.Float()
			if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
				return bad()
			}
			u = uint64(f)
		}
		if out.OverflowUint(u) {
			return bad()
		}
		out.SetUint(u)
	default:
		var f float64
		switch {
		case isIntKind(sv.Kind()):
			f = float64(sv.Int())
		case isUintKind(sv.Kind()):
			f = float64(sv.Uint())
		default:
			f = sv.Float()
		}
		if !math.IsInf(f, 0) && !math.IsNaN(f) && out.OverflowFloat(f) {
			return bad()
		}
		out.SetFloat(f)
	}
	return out, nil
}

func isIntKind(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUintKind(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uint64
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
