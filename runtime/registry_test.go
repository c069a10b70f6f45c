package runtime

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocrud/autowire/injection"
	"github.com/gocrud/autowire/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type teardownLog struct{ order []string }

type store struct {
	log *teardownLog
}

func (s *store) Destroy() error {
	if s.log != nil {
		s.log.order = append(s.log.order, "store")
	}
	return nil
}

type service struct {
	Store *store `autowire:""`
	log   *teardownLog
}

func (s *service) Destroy() error {
	if s.log != nil {
		s.log.order = append(s.log.order, "service")
	}
	return nil
}

type apiServer struct {
	svc  *service
	port int
}

func NewApiServer(svc *service) *apiServer { return &apiServer{svc: svc} }

func typeOf[T any]() reflect.Type {
	var zero T
	return reflect.TypeOf(zero)
}

func newTestRegistry(opts ...RegistryOption) (*Registry, *logging.MemoryLoggerProvider) {
	logger, provider := logging.NewMemoryLogger()
	opts = append([]RegistryOption{WithRegistryLogger(logger)}, opts...)
	return NewRegistry(opts...), provider
}

func TestRegistryCreatesAndInjects(t *testing.T) {
	r, _ := newTestRegistry()
	require.NoError(t, r.Register(NewDefinition("store", typeOf[*store]())))
	require.NoError(t, r.Register(NewDefinition("service", typeOf[*service]())))

	v, err := r.GetInstance("service", nil)
	require.NoError(t, err)

	svc := v.(*service)
	require.NotNil(t, svc.Store)

	// 依赖实例是同一个单例
	st, err := r.GetInstance("store", nil)
	require.NoError(t, err)
	assert.Same(t, st, svc.Store)
}

func TestRegistryUnknownName(t *testing.T) {
	r, _ := newTestRegistry()

	_, err := r.GetInstance("ghost", nil)
	var missing *injection.NoSuchInstanceError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "ghost", missing.Name)
}

func TestRegistryConstructorInjection(t *testing.T) {
	r, _ := newTestRegistry()
	require.NoError(t, r.Register(NewDefinition("store", typeOf[*store]())))
	require.NoError(t, r.Register(NewDefinition("service", typeOf[*service]())))
	require.NoError(t, r.Register(NewDefinition("api", typeOf[*apiServer](),
		WithMarkedConstructor(NewApiServer, true))))

	v, err := r.GetInstance("api", nil)
	require.NoError(t, err)

	api := v.(*apiServer)
	require.NotNil(t, api.svc)
	assert.NotNil(t, api.svc.Store)
}

func TestRegistryConstructorFallbackToZeroArg(t *testing.T) {
	r, _ := newTestRegistry()
	// 标记为非必需的构造依赖 *store，但 store 未注册：回退合成零参构造
	require.NoError(t, r.Register(NewDefinition("api", typeOf[*apiServer](),
		WithMarkedConstructor(func(s *store) *apiServer { return &apiServer{} }, false))))

	v, err := r.GetInstance("api", nil)
	require.NoError(t, err)
	assert.NotNil(t, v.(*apiServer))
}

type gateway struct {
	store *store
	wired bool
}

// 不符合 New+类型名 约定的唯一带参构造
func makeGateway(s *store) *gateway { return &gateway{store: s, wired: true} }

func TestRegistrySoleParameterizedConstructor(t *testing.T) {
	r, _ := newTestRegistry()
	require.NoError(t, r.Register(NewDefinition("store", typeOf[*store]())))
	require.NoError(t, r.Register(NewDefinition("gateway", typeOf[*gateway](),
		WithConstructor(makeGateway))))

	v, err := r.GetInstance("gateway", nil)
	require.NoError(t, err)

	// 唯一带参构造被调用，而非零值分配
	g := v.(*gateway)
	assert.True(t, g.wired)
	require.NotNil(t, g.store)
}

func TestRegistryConcurrentGetInstanceSameName(t *testing.T) {
	type slow struct{ ready bool }

	var built atomic.Int64
	r, _ := newTestRegistry()
	require.NoError(t, r.Register(NewDefinition("slow", typeOf[*slow](),
		WithMarkedConstructor(func() *slow {
			built.Add(1)
			time.Sleep(100 * time.Millisecond)
			return &slow{ready: true}
		}, true))))

	const goroutines = 8
	results := make([]any, goroutines)
	errs := make([]error, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.GetInstance("slow", nil)
		}(i)
	}
	wg.Wait()

	// 无关的并发请求者等待首建完成并共享单例，不报环
	for i := 0; i < goroutines; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, int64(1), built.Load())
	assert.True(t, results[0].(*slow).ready)
}

func TestRegistryFailedCreateLeavesNoInstance(t *testing.T) {
	type needy struct {
		Store *store `autowire:"store"`
	}

	r, _ := newTestRegistry()
	require.NoError(t, r.Register(NewDefinition("needy", typeOf[*needy]())))

	_, err := r.GetInstance("needy", nil)
	require.Error(t, err)

	// 失败不留下半成品：补注册缺失依赖后同名可重新创建
	require.NoError(t, r.Register(NewDefinition("store", typeOf[*store]())))
	v, err := r.GetInstance("needy", nil)
	require.NoError(t, err)
	assert.NotNil(t, v.(*needy).Store)
}

func TestRegistryAmbiguityAndPrimary(t *testing.T) {
	type holder struct {
		Store *store `autowire:""`
	}

	r, _ := newTestRegistry()
	require.NoError(t, r.Register(NewDefinition("storeA", typeOf[*store]())))
	require.NoError(t, r.Register(NewDefinition("storeB", typeOf[*store]())))
	require.NoError(t, r.Register(NewDefinition("holder", typeOf[*holder]())))

	_, err := r.GetInstance("holder", nil)
	var resolution *injection.ResolutionError
	require.ErrorAs(t, err, &resolution)

	// 标记唯一 primary 后歧义消除
	r.Deregister("storeB")
	require.NoError(t, r.Register(NewDefinition("storeB", typeOf[*store]())))
	r.Deregister("storeA")
	require.NoError(t, r.Register(NewDefinition("storeA", typeOf[*store](), WithPrimary())))
	r.Deregister("holder")
	require.NoError(t, r.Register(NewDefinition("holder", typeOf[*holder]())))

	v, err := r.GetInstance("holder", nil)
	require.NoError(t, err)

	a, err := r.GetInstance("storeA", nil)
	require.NoError(t, err)
	assert.Same(t, a, v.(*holder).Store)
}

func TestRegistryCircularDependencyFails(t *testing.T) {
	type left struct {
		Right any `autowire:"right"`
	}
	type right struct {
		Left any `autowire:"left"`
	}

	r, _ := newTestRegistry()
	require.NoError(t, r.Register(NewDefinition("left", typeOf[*left]())))
	require.NoError(t, r.Register(NewDefinition("right", typeOf[*right]())))

	_, err := r.GetInstance("left", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular")
}

func TestRegistryExplicitPropertySkipsInjection(t *testing.T) {
	r, _ := newTestRegistry()
	require.NoError(t, r.Register(NewDefinition("store", typeOf[*store]())))
	require.NoError(t, r.Register(NewDefinition("cfg", typeOf[*configured](),
		WithProperty("store", "preconfigured"))))

	v, err := r.GetInstance("cfg", nil)
	require.NoError(t, err)
	assert.Zero(t, v.(*configured).calls)
}

type configured struct {
	_     struct{} `autowire:"method=SetStore"`
	calls int
}

func (c *configured) SetStore(s *store) { c.calls++ }

func TestRegistryValueExpression(t *testing.T) {
	type settings struct {
		Port    int           `value:"${server.port:8080}"`
		Name    string        `value:"${server.name}"`
		Timeout time.Duration `value:"5s"`
	}

	r, _ := newTestRegistry(WithValueSource(mapSource{"server.name": "autowire"}))
	require.NoError(t, r.Register(NewDefinition("settings", typeOf[*settings]())))

	v, err := r.GetInstance("settings", nil)
	require.NoError(t, err)

	s := v.(*settings)
	assert.Equal(t, 8080, s.Port)
	assert.Equal(t, "autowire", s.Name)
	assert.Equal(t, 5*time.Second, s.Timeout)
}

type mapSource map[string]any

func (m mapSource) Value(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

func TestRegistryCloseDestroysDependentsFirst(t *testing.T) {
	log := &teardownLog{}

	r, _ := newTestRegistry()
	require.NoError(t, r.Register(NewDefinition("store", typeOf[*store](),
		WithInstance(&store{log: log}))))
	require.NoError(t, r.Register(NewDefinition("service", typeOf[*service](),
		WithInstance(&service{log: log}))))

	// store 先创建，service 依赖 store
	_, err := r.GetInstance("store", nil)
	require.NoError(t, err)
	v, err := r.GetInstance("service", nil)
	require.NoError(t, err)
	require.NotNil(t, v.(*service).Store)

	r.Close()
	assert.Equal(t, []string{"service", "store"}, log.order)

	// Close 幂等：适配器不会二次调用
	r.Close()
	assert.Equal(t, []string{"service", "store"}, log.order)
}

func TestRegistryDeregisterInvalidatesShortcut(t *testing.T) {
	r, _ := newTestRegistry()
	require.NoError(t, r.Register(NewDefinition("store", typeOf[*store]())))
	require.NoError(t, r.Register(NewDefinition("service", typeOf[*service]())))

	first, err := r.GetInstance("service", nil)
	require.NoError(t, err)
	require.NotNil(t, first.(*service).Store)

	// 热替换依赖：旧条目消失后捷径静默回退到完整解析
	r.Deregister("store")
	require.NoError(t, r.Register(NewDefinition("store2", typeOf[*store]())))
	r.Deregister("service")
	require.NoError(t, r.Register(NewDefinition("service", typeOf[*service]())))

	second, err := r.GetInstance("service", nil)
	require.NoError(t, err)
	assert.NotNil(t, second.(*service).Store)
}

func TestDefaultConverter(t *testing.T) {
	c := defaultConverter{}

	v, err := c.Convert(int32(7), reflect.TypeOf(int64(0)))
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	_, err = c.Convert("nope", reflect.TypeOf(map[string]int{}))
	require.Error(t, err)
}

func TestPropertyValues(t *testing.T) {
	pv := NewPropertyValues()
	pv.Add("port", 8080)

	assert.True(t, pv.Contains("port"))
	assert.False(t, pv.Processed("port"))

	pv.MarkProcessed("port")
	assert.True(t, pv.Processed("port"))

	pv.Clear()
	assert.False(t, pv.Contains("port"))
	assert.Zero(t, pv.Len())
}
