package grove

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
)

// trackedElement is a display element that records its lifecycle.
type trackedElement struct {
	*Node
	Label  string          `grove:"label"`
	Note   string          `grove:"note"`
	Target *trackedElement `grove:"target"`
	Items  []*Element      `grove:"items"`
	Owner  *Element        `grove:"owner"`
	Extra  map[string]any  `grove:"extra"`
	Tags   []string        `grove:"tags"`
	Panic  bool            `grove:"panic"`

	events    *[]string
	sawTarget bool
	inits     int
	ticks     int
}

func (p *trackedElement) PostInitialize() {
	p.inits++
	p.sawTarget = p.Target != nil
	*p.events = append(*p.events, "init:"+p.Name)
}

func (p *trackedElement) Destroy() {
	*p.events = append(*p.events, "destroy:"+p.Name)
}

func (p *trackedElement) Tick(float64) {
	p.ticks++
	if p.Panic {
		panic("tick failure")
	}
}

// hiddenTracked is never serialized.
type hiddenTracked struct {
	trackedElement
}

func (*hiddenTracked) ElementTraits() Trait { return TraitDontSave }

type trackedController struct {
	Controller
	Speed float64 `grove:"speed"`

	events *[]string
}

func (c *trackedController) Destroy() {
	*c.events = append(*c.events, "destroy:controller")
	c.Controller.Destroy()
}

type trackedEnv struct {
	rt     *Runtime
	m      *Manager
	events []string
	log    bytes.Buffer
}

func newTrackedEnv(t *testing.T) *trackedEnv {
	t.Helper()
	env := &trackedEnv{}
	env.rt = NewRuntime(RuntimeConfig{SkipBuiltins: true, Logger: bufferLogger(&env.log)})
	reg := env.rt.Registry

	newTracked := func(*Context) (any, error) {
		return &trackedElement{Node: NewContainer(""), events: &env.events}, nil
	}
	keys := WithDataKeys("label", "extra", "tags")
	if _, err := reg.Define(TypeContainer, newTracked, keys); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Define("sprite", newTracked, keys); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Define("tracked", newTracked, keys, "target", "items", "note", "owner"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Define("hidden", func(*Context) (any, error) {
		return &hiddenTracked{trackedElement{Node: NewContainer(""), events: &env.events}}, nil
	}, keys); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Define("controller", func(*Context) (any, error) {
		return &trackedController{events: &env.events}, nil
	}, ParseDataKeys("speed")); err != nil {
		t.Fatal(err)
	}
	env.m = NewManager(env.rt)
	return env
}

func (env *trackedEnv) tracked(t *testing.T, id string) *trackedElement {
	t.Helper()
	el := env.m.Element(id)
	if el == nil {
		t.Fatalf("element %q not live", id)
	}
	switch v := el.Value.(type) {
	case *trackedElement:
		return v
	case *hiddenTracked:
		return &v.trackedElement
	}
	t.Fatalf("element %q is %T", id, el.Value)
	return nil
}

func TestTwoElementScenario(t *testing.T) {
	env := newTrackedEnv(t)
	m := env.m
	before := m.Len()

	err := m.LoadScene(Descriptor{
		Type:   "container",
		ID:     "0",
		Values: map[string]any{"name": "root"},
		Children: []Descriptor{
			{Type: "sprite", ID: "1", Values: map[string]any{"name": "s", "alpha": 0.5}},
		},
	})
	if err != nil {
		t.Fatalf("LoadScene: %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}
	if a := m.Element("1").Node.Alpha; a != 0.5 {
		t.Errorf("alpha = %v, want 0.5", a)
	}
	if m.State() != StateRunning {
		t.Errorf("State = %s", m.State())
	}

	m.Teardown()
	if m.Len() != before {
		t.Errorf("Len after teardown = %d, want %d", m.Len(), before)
	}
	want := []string{"init:root", "init:s", "destroy:s", "destroy:root"}
	if !reflect.DeepEqual(env.events, want) {
		t.Errorf("events = %v, want %v", env.events, want)
	}
	if m.Root() != nil {
		t.Error("Root should be nil after Teardown")
	}
}

func TestRoundTrip(t *testing.T) {
	env := newTrackedEnv(t)
	d := Descriptor{
		Type: "container",
		ID:   "0",
		Children: []Descriptor{
			{
				Type:   "tracked",
				ID:     "1",
				Values: map[string]any{"name": "a", "position": map[string]any{"x": 10.0, "y": 20.0}, "label": "first"},
				Properties: map[string]PropertyRef{
					"target": Ref(3),
					"items":  Refs(2, 3),
					"note":   Literal("hello"),
				},
				Controllers: []Descriptor{
					{Type: "controller", ID: "4", Values: map[string]any{"speed": 2.5}},
				},
				Children: []Descriptor{
					{Type: "sprite", ID: "2", Values: map[string]any{"alpha": 0.25, "tags": []any{"x", "y"}}},
				},
			},
			{Type: "sprite", ID: "3", Values: map[string]any{"rotation": 1.5, "extra": map[string]any{"k": "v"}}},
		},
	}
	if err := env.m.LoadScene(d); err != nil {
		t.Fatalf("LoadScene: %v", err)
	}
	got := env.m.Serialize()
	assertDescriptorCovers(t, "root", got, d)
}

// assertDescriptorCovers checks that got has want's shape and carries every
// value and property want declares.
func assertDescriptorCovers(t *testing.T, path string, got, want Descriptor) {
	t.Helper()
	if got.Type != want.Type || got.ID != want.ID {
		t.Errorf("%s: got %s#%s, want %s#%s", path, got.Type, got.ID, want.Type, want.ID)
	}
	assertValuesCover(t, path, got.Values, want.Values)
	for name, ref := range want.Properties {
		if g, ok := got.Properties[name]; !ok || !reflect.DeepEqual(normalizeRef(g), normalizeRef(ref)) {
			t.Errorf("%s: property %s = %+v, want %+v", path, name, g, ref)
		}
	}
	if len(got.Children) != len(want.Children) {
		t.Fatalf("%s: %d children, want %d", path, len(got.Children), len(want.Children))
	}
	for i := range want.Children {
		assertDescriptorCovers(t, path+"/"+want.Children[i].ID, got.Children[i], want.Children[i])
	}
	if len(got.Controllers) != len(want.Controllers) {
		t.Fatalf("%s: %d controllers, want %d", path, len(got.Controllers), len(want.Controllers))
	}
	for i := range want.Controllers {
		assertDescriptorCovers(t, path+"/"+want.Controllers[i].ID, got.Controllers[i], want.Controllers[i])
	}
}

func assertValuesCover(t *testing.T, path string, got, want map[string]any) {
	t.Helper()
	for k, w := range want {
		g, ok := got[k]
		if !ok {
			t.Errorf("%s: value %s missing", path, k)
			continue
		}
		if wm, isMap := w.(map[string]any); isMap {
			gm, _ := g.(map[string]any)
			if gm == nil {
				t.Errorf("%s: value %s = %#v, want object", path, k, g)
				continue
			}
			assertValuesCover(t, path+"."+k, gm, wm)
			continue
		}
		if wl, isList := w.([]any); isList {
			if !reflect.DeepEqual(toAnySlice(g), wl) {
				t.Errorf("%s: value %s = %#v, want %#v", path, k, g, w)
			}
			continue
		}
		if !reflect.DeepEqual(g, w) {
			t.Errorf("%s: value %s = %#v, want %#v", path, k, g, w)
		}
	}
}

func toAnySlice(v any) []any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func normalizeRef(p PropertyRef) PropertyRef {
	switch p.Kind {
	case RefElement:
		return PropertyRef{Kind: RefElement, ID: p.ID}
	case RefList:
		return PropertyRef{Kind: RefList, IDs: p.IDs}
	}
	return PropertyRef{Kind: RefLiteral, Value: p.Value}
}

func TestGeneratedIDsSkipExplicit(t *testing.T) {
	env := newTrackedEnv(t)
	m := env.m
	if err := m.LoadScene(Descriptor{Children: []Descriptor{
		{Type: "sprite"},
		{Type: "sprite", ID: "7"},
		{Type: "sprite"},
	}}); err != nil {
		t.Fatalf("LoadScene: %v", err)
	}

	seen := map[string]bool{}
	for _, el := range m.Elements() {
		if seen[el.ID] {
			t.Errorf("duplicate id %s", el.ID)
		}
		seen[el.ID] = true
	}

	// A later load in the same session still never generates 7.
	var many []Descriptor
	for i := 0; i < 12; i++ {
		many = append(many, Descriptor{Type: "sprite"})
	}
	if err := m.LoadScene(Descriptor{Children: many}); err != nil {
		t.Fatalf("LoadScene: %v", err)
	}
	for _, el := range m.Elements() {
		if el.ID == "7" {
			t.Fatal("generated id collided with explicit id 7")
		}
	}
	if m.Len() != 13 {
		t.Errorf("Len = %d, want 13", m.Len())
	}
}

func TestInjectionResolvedBeforePostInitialize(t *testing.T) {
	env := newTrackedEnv(t)
	err := env.m.LoadScene(Descriptor{Children: []Descriptor{
		// Forward reference to a later sibling.
		{Type: "tracked", ID: "1", Values: map[string]any{"name": "fwd"}, Properties: map[string]PropertyRef{"target": Ref(3)}},
		{Type: "tracked", ID: "2", Values: map[string]any{"name": "parent"}, Properties: map[string]PropertyRef{"target": Ref(5)},
			Children: []Descriptor{
				// Reference up to an ancestor.
				{Type: "tracked", ID: "5", Values: map[string]any{"name": "child"}, Properties: map[string]PropertyRef{"target": Ref(2)}},
			}},
		{Type: "tracked", ID: "3", Values: map[string]any{"name": "back"}, Properties: map[string]PropertyRef{"target": Ref(1)}},
	}})
	if err != nil {
		t.Fatalf("LoadScene: %v", err)
	}
	for _, id := range []string{"1", "2", "3", "5"} {
		p := env.tracked(t, id)
		if !p.sawTarget {
			t.Errorf("%s: PostInitialize ran before its target was injected", id)
		}
		if p.inits != 1 {
			t.Errorf("%s: PostInitialize ran %d times", id, p.inits)
		}
	}
	if env.tracked(t, "5").Target != env.tracked(t, "2") {
		t.Error("child target should be its parent's value")
	}
}

func TestInjectionForms(t *testing.T) {
	env := newTrackedEnv(t)
	err := env.m.LoadScene(Descriptor{Children: []Descriptor{
		{Type: "sprite", ID: "1"},
		{Type: "sprite", ID: "2"},
		{Type: "tracked", ID: "3", Values: map[string]any{"note": "kept"}, Properties: map[string]PropertyRef{
			"items":  Refs(1, 99, 2),
			"note":   Literal(nil),
			"target": Ref(42),
			"owner":  Ref(1),
		}},
		{Type: "tracked", ID: "4", Properties: map[string]PropertyRef{"note": Literal("set")}},
	}})
	if err != nil {
		t.Fatalf("LoadScene: %v", err)
	}
	p := env.tracked(t, "3")
	if len(p.Items) != 3 || p.Items[0].ID != "1" || p.Items[1] != nil || p.Items[2].ID != "2" {
		t.Errorf("Items = %v, unresolved entries should keep their slot", p.Items)
	}
	if got := env.m.SerializeElement(env.m.Element("3")).Properties["items"]; !reflect.DeepEqual(got, Refs(1, -1, 2)) {
		t.Errorf("serialized items = %+v", got)
	}
	if p.Note != "kept" {
		t.Errorf("null literal should be skipped, Note = %q", p.Note)
	}
	if p.Target != nil {
		t.Error("unresolved reference should leave the member unset")
	}
	if p.Owner == nil || p.Owner.ID != "1" {
		t.Errorf("Owner = %v, want the *Element record", p.Owner)
	}
	if env.tracked(t, "4").Note != "set" {
		t.Error("literal should be assigned")
	}
}

func TestResolveInjectionsOnLiveElements(t *testing.T) {
	env := newTrackedEnv(t)
	err := env.m.LoadScene(Descriptor{Children: []Descriptor{
		{Type: "sprite", ID: "1"},
		{Type: "tracked", ID: "2"},
	}})
	if err != nil {
		t.Fatalf("LoadScene: %v", err)
	}
	env.m.ResolveInjections(&Descriptor{Children: []Descriptor{
		{Type: "tracked", ID: "2", Properties: map[string]PropertyRef{"target": Ref(1), "note": Literal("late")}},
		{Type: "tracked", Properties: map[string]PropertyRef{"note": Literal("ignored")}},
	}})
	p := env.tracked(t, "2")
	if p.Target == nil || p.Target != env.tracked(t, "1") {
		t.Errorf("Target = %v, want element 1", p.Target)
	}
	if p.Note != "late" {
		t.Errorf("Note = %q", p.Note)
	}
	if env.m.Len() != 3 {
		t.Errorf("Len = %d, resolving must not build elements", env.m.Len())
	}
}

func TestDontSaveExcludesSubtree(t *testing.T) {
	env := newTrackedEnv(t)
	err := env.m.LoadScene(Descriptor{Children: []Descriptor{
		{Type: "sprite", ID: "1"},
		{Type: "hidden", ID: "2", Children: []Descriptor{
			{Type: "sprite", ID: "3"},
		}},
	}})
	if err != nil {
		t.Fatalf("LoadScene: %v", err)
	}
	if env.m.Len() != 4 {
		t.Fatalf("Len = %d, hidden elements must stay live", env.m.Len())
	}
	env.m.Tick(0.016)
	if env.tracked(t, "2").ticks != 1 || env.tracked(t, "3").ticks != 1 {
		t.Error("hidden elements must still tick")
	}

	d := env.m.Serialize()
	if len(d.Children) != 1 || d.Children[0].ID != "1" {
		t.Errorf("serialized children = %+v", d.Children)
	}
}

func TestControllersAttach(t *testing.T) {
	env := newTrackedEnv(t)
	err := env.m.LoadScene(Descriptor{Children: []Descriptor{
		{Type: "sprite", ID: "1", Controllers: []Descriptor{{Type: "controller", ID: "2", Values: map[string]any{"speed": 3.0}}}},
	}})
	if err != nil {
		t.Fatalf("LoadScene: %v", err)
	}
	owner := env.m.Element("1")
	ctl := env.m.Element("2")
	if len(owner.Controllers) != 1 || owner.Controllers[0] != ctl {
		t.Fatalf("Controllers = %v", owner.Controllers)
	}
	if ctl.Parent != owner || !ctl.IsController() {
		t.Error("controller parent not set")
	}
	c := ctl.Value.(*trackedController)
	if c.Parent != owner || c.ParentNode() != owner.Node || c.Speed != 3 {
		t.Errorf("controller value = %+v", c)
	}

	env.m.Teardown()
	want := []string{"init:", "init:", "destroy:controller", "destroy:", "destroy:"}
	if !reflect.DeepEqual(env.events, want) {
		t.Errorf("events = %v, want %v", env.events, want)
	}
}

func TestLoadUnknownTypeUnwinds(t *testing.T) {
	env := newTrackedEnv(t)
	err := env.m.LoadScene(Descriptor{Children: []Descriptor{
		{Type: "sprite", ID: "1", Values: map[string]any{"name": "built"}},
		{Type: "nope"},
	}})
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("err = %v, want ErrUnknownType", err)
	}
	if env.m.Len() != 0 || env.m.State() != StateIdle {
		t.Errorf("Len = %d, State = %s after failed load", env.m.Len(), env.m.State())
	}
	if !reflect.DeepEqual(env.events, []string{"destroy:built"}) {
		t.Errorf("events = %v", env.events)
	}
	if env.m.Root() == nil || env.m.Root().Node.NumChildren() != 0 {
		t.Error("root should survive with no children")
	}

	if err := env.m.LoadScene(Descriptor{Children: []Descriptor{{Type: "sprite", ID: "1"}}}); err != nil {
		t.Errorf("reload after failure: %v", err)
	}
}

func TestLoadRejectsBadIDs(t *testing.T) {
	env := newTrackedEnv(t)
	err := env.m.LoadScene(Descriptor{Children: []Descriptor{{Type: "sprite", ID: "3"}, {Type: "sprite", ID: "3"}}})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("err = %v, want ErrDuplicateID", err)
	}
	err = env.m.LoadScene(Descriptor{Children: []Descriptor{{Type: "sprite", ID: "hero"}}})
	if !errors.Is(err, ErrInvalidID) {
		t.Errorf("err = %v, want ErrInvalidID", err)
	}
	if env.m.Len() != 0 {
		t.Errorf("Len = %d", env.m.Len())
	}
}

func TestLoadRejectsNonCanonicalIDs(t *testing.T) {
	env := newTrackedEnv(t)
	err := env.m.LoadScene(Descriptor{Children: []Descriptor{
		{Type: "sprite", ID: "7"},
		{Type: "sprite", ID: "007"},
		{Type: "tracked", ID: "3", Properties: map[string]PropertyRef{"target": Ref(7)}},
	}})
	if !errors.Is(err, ErrInvalidID) {
		t.Fatalf("err = %v, want ErrInvalidID", err)
	}
	if env.m.Len() != 0 {
		t.Errorf("Len = %d after a rejected load", env.m.Len())
	}
}

// reentrant tries to load a scene from inside its own post-initialize.
type reentrant struct {
	*Node
	m   *Manager
	err error
}

func (r *reentrant) PostInitialize() {
	r.err = r.m.LoadScene(Descriptor{})
}

func TestLoadDuringLoadIsBusy(t *testing.T) {
	env := newTrackedEnv(t)
	env.rt.Registry.Define("reentrant", func(ctx *Context) (any, error) {
		m, _ := ServiceAs[*Manager](ctx, ServiceManager)
		return &reentrant{Node: NewContainer(""), m: m}, nil
	}, nil)
	if err := env.m.LoadScene(Descriptor{Children: []Descriptor{{Type: "reentrant", ID: "1"}}}); err != nil {
		t.Fatalf("LoadScene: %v", err)
	}
	r := env.m.Element("1").Value.(*reentrant)
	if !errors.Is(r.err, ErrBusy) {
		t.Errorf("nested load err = %v, want ErrBusy", r.err)
	}
	if env.m.Len() != 2 {
		t.Errorf("nested load must not disturb the tree, Len = %d", env.m.Len())
	}
}

func TestTickIsolatesPanics(t *testing.T) {
	env := newTrackedEnv(t)
	err := env.m.LoadScene(Descriptor{Children: []Descriptor{
		{Type: "sprite", ID: "1", Values: map[string]any{"panic": true}},
		{Type: "sprite", ID: "2"},
	}})
	if err != nil {
		t.Fatalf("LoadScene: %v", err)
	}
	env.m.Tick(0.016)
	env.m.Tick(0.016)
	if got := env.tracked(t, "2").ticks; got != 2 {
		t.Errorf("ticks after a panicking sibling = %d, want 2", got)
	}
	if !strings.Contains(env.log.String(), "tick panicked") {
		t.Errorf("panic not logged: %q", env.log.String())
	}
}

type countingService struct{ ticks int }

func (s *countingService) Tick(float64) { s.ticks++ }

func TestServicesTickAcrossReloads(t *testing.T) {
	env := newTrackedEnv(t)
	svc := &countingService{}
	env.m.AddService("counter", svc)
	env.m.AddService("counter", svc)

	for i := 0; i < 2; i++ {
		if err := env.m.LoadScene(Descriptor{}); err != nil {
			t.Fatal(err)
		}
	}
	env.m.Tick(0)
	if svc.ticks != 1 {
		t.Errorf("service ticked %d times, want 1", svc.ticks)
	}
	if env.tracked(t, "0").ticks != 1 {
		t.Errorf("root ticked %d times after reload, want 1", env.tracked(t, "0").ticks)
	}
	got, ok := ServiceAs[*countingService](env.rt.Services, "counter")
	if !ok || got != svc {
		t.Error("ServiceAs lookup failed")
	}
}

func TestSpawn(t *testing.T) {
	env := newTrackedEnv(t)
	if _, err := env.m.Spawn(env.m.Root(), Descriptor{Type: "sprite"}); !errors.Is(err, ErrBusy) {
		t.Errorf("spawn before load err = %v, want ErrBusy", err)
	}
	if err := env.m.LoadScene(Descriptor{Children: []Descriptor{{Type: "sprite", ID: "1", Values: map[string]any{"name": "old"}}}}); err != nil {
		t.Fatal(err)
	}

	el, err := env.m.Spawn(env.m.Element("1"), Descriptor{
		Type:       "tracked",
		Values:     map[string]any{"name": "new"},
		Properties: map[string]PropertyRef{"target": Ref(1)},
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if el.Node.Parent != env.m.Element("1").Node {
		t.Error("spawned node not attached")
	}
	p := el.Value.(*trackedElement)
	if !p.sawTarget || p.inits != 1 {
		t.Errorf("spawned element: sawTarget=%v inits=%d", p.sawTarget, p.inits)
	}
	if env.tracked(t, "1").inits != 1 {
		t.Error("existing elements must not be re-initialized")
	}

	before := env.m.Len()
	_, err = env.m.Spawn(env.m.Root(), Descriptor{Type: "sprite", Children: []Descriptor{{Type: "nope"}}})
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("err = %v, want ErrUnknownType", err)
	}
	if env.m.Len() != before || env.m.State() != StateRunning {
		t.Errorf("failed spawn left Len=%d State=%s", env.m.Len(), env.m.State())
	}
}

func TestUpdateMergesWithoutInvoking(t *testing.T) {
	env := newTrackedEnv(t)
	if err := env.m.LoadScene(Descriptor{Children: []Descriptor{{Type: "sprite", ID: "1"}}}); err != nil {
		t.Fatal(err)
	}
	if err := env.m.Update("1", map[string]any{"position": map[string]any{"x": 4.0}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := env.m.Update("1", map[string]any{"position": map[string]any{"x": 4.0}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := env.m.Element("1").Node.Position; got != (Vec2{4, 0}) {
		t.Errorf("Position = %v", got)
	}
	if err := env.m.Update("9", nil); !errors.Is(err, ErrNoElement) {
		t.Errorf("err = %v, want ErrNoElement", err)
	}
}

func TestElementOf(t *testing.T) {
	env := newTrackedEnv(t)
	if err := env.m.LoadScene(Descriptor{Children: []Descriptor{{Type: "sprite", ID: "1"}}}); err != nil {
		t.Fatal(err)
	}
	el := env.m.Element("1")
	for _, v := range []any{el, el.Node, el.Value} {
		if got := env.m.ElementOf(v); got != el {
			t.Errorf("ElementOf(%T) = %v", v, got)
		}
	}
	if env.m.ElementOf(42) != nil {
		t.Error("unrelated value should map to nil")
	}
}
