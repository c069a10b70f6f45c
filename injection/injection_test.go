package injection

import (
	"reflect"
	"sort"
	"sync"

	"github.com/gocrud/autowire/logging"
)

// fakeRegistry 带调用计数的注册表替身：区分完整匹配路径与按名直取路径
type fakeRegistry struct {
	mu           sync.Mutex
	instances    map[string]any
	resolveCalls int
	getCalls     int
	edges        [][2]string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{instances: map[string]any{}}
}

func (r *fakeRegistry) put(name string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[name] = v
}

func (r *fakeRegistry) remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, name)
}

func (r *fakeRegistry) ResolveDependency(d *Descriptor, requesterName string) (any, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolveCalls++

	if d.Name != "" {
		if v, ok := r.instances[d.Name]; ok {
			return v, d.Name, nil
		}
		if d.Required {
			return nil, "", NewResolutionErrorf("no instance named '%s'", d.Name)
		}
		return nil, "", nil
	}

	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := r.instances[name]
		if reflect.TypeOf(v).AssignableTo(d.Type) {
			return v, name, nil
		}
	}
	if d.Required {
		return nil, "", NewResolutionErrorf("no candidate of type %s", d.Type)
	}
	return nil, "", nil
}

func (r *fakeRegistry) GetInstance(name string, typ reflect.Type) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++

	v, ok := r.instances[name]
	if !ok {
		return nil, &NoSuchInstanceError{Name: name}
	}
	return v, nil
}

func (r *fakeRegistry) Contains(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.instances[name]
	return ok
}

func (r *fakeRegistry) IsTypeMatch(name string, typ reflect.Type) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.instances[name]
	return ok && reflect.TypeOf(v).AssignableTo(typ)
}

func (r *fakeRegistry) RegisterDependencyEdge(dependencyName, requesterName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges = append(r.edges, [2]string{dependencyName, requesterName})
}

// fakeValues 显式属性集替身
type fakeValues struct {
	values    map[string]bool
	processed []string
}

func newFakeValues(properties ...string) *fakeValues {
	f := &fakeValues{values: map[string]bool{}}
	for _, p := range properties {
		f.values[p] = true
	}
	return f
}

func (f *fakeValues) Contains(property string) bool { return f.values[property] }

func (f *fakeValues) MarkProcessed(property string) {
	f.processed = append(f.processed, property)
}

// 注入测试用的类型族

type dataStore struct{ id string }

type eventBus struct{ name string }

type widget struct {
	Store *dataStore `autowire:""`
}

type looseWidget struct {
	Store *dataStore `autowire:"optional"`
}

type gadget struct {
	_     struct{} `autowire:"method=SetStore"`
	store *dataStore
	calls int
}

func (g *gadget) SetStore(s *dataStore) {
	g.calls++
	g.store = s
}

type twin struct {
	_     struct{} `autowire:"method=Wire,optional"`
	calls int
}

func (t *twin) Wire(a *dataStore, b *eventBus) { t.calls++ }

type wiringBase struct {
	StoreA *dataStore `autowire:""`
}

type wiringDerived struct {
	wiringBase
	StoreB *dataStore `autowire:""`
}

type plainType struct {
	Name string
}

func newTestBuilder() (*Builder, *logging.MemoryLoggerProvider) {
	logger, provider := logging.NewMemoryLogger()
	return NewBuilder(NewMarkerRegistry(), logger), provider
}

func newTestEngine(registry Registry) (*Engine, *logging.MemoryLoggerProvider) {
	logger, provider := logging.NewMemoryLogger()
	return NewEngine(registry, WithLogger(logger)), provider
}
