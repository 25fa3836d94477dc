package grove

// Services is the name-keyed table of collaborators factories may pull from:
// the manager, asset loader, event bus, tweener and anything the host adds.
type Services struct {
	byName map[string]any
	order  []string
}

// NewServices creates an empty table.
func NewServices() *Services {
	return &Services{byName: make(map[string]any)}
}

// Register stores svc under name, replacing any previous entry.
func (s *Services) Register(name string, svc any) {
	if _, ok := s.byName[name]; !ok {
		s.order = append(s.order, name)
	}
	s.byName[name] = svc
}

// Lookup returns the service registered under name.
func (s *Services) Lookup(name string) (any, bool) {
	svc, ok := s.byName[name]
	return svc, ok
}

// Names returns service names in registration order.
func (s *Services) Names() []string {
	return append([]string(nil), s.order...)
}

// ServiceSource is satisfied by *Services and *Context.
type ServiceSource interface {
	Lookup(name string) (any, bool)
}

// ServiceAs looks up name and asserts it to T.
func ServiceAs[T any](src ServiceSource, name string) (T, bool) {
	var zero T
	svc, ok := src.Lookup(name)
	if !ok {
		return zero, false
	}
	t, ok := svc.(T)
	return t, ok
}

// Well-known service names.
const (
	ServiceManager = "manager"
	ServiceAssets  = "assets"
	ServiceEvents  = "events"
	ServiceTweener = "tweener"
	ServiceApp     = "app"
)
