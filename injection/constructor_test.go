package injection

import (
	"reflect"
	"testing"

	"github.com/gocrud/autowire/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderService struct {
	store *dataStore
	bus   *eventBus
}

func NewOrderService(store *dataStore) *orderService { return &orderService{store: store} }

func newOrderServiceDefault() *orderService { return &orderService{} }

func newOrderServiceFull(store *dataStore, bus *eventBus) *orderService {
	return &orderService{store: store, bus: bus}
}

func newTestSelector() (*ConstructorSelector, *logging.MemoryLoggerProvider) {
	logger, provider := logging.NewMemoryLogger()
	return NewConstructorSelector(logger, nil), provider
}

func mustConstructor(t *testing.T, fn any, opts ...ConstructorOption) *Constructor {
	c, err := NewConstructor(fn, opts...)
	require.NoError(t, err)
	return c
}

func TestNewConstructorValidation(t *testing.T) {
	_, err := NewConstructor(42)
	assert.ErrorIs(t, err, ErrNotAFunction)

	_, err = NewConstructor(func() {})
	assert.ErrorIs(t, err, ErrNoReturnValue)

	c, err := NewConstructor(NewOrderService)
	require.NoError(t, err)
	assert.Equal(t, "NewOrderService", c.Name())
	assert.Equal(t, 1, c.NumParams())
}

func TestSelectSingleRequiredWins(t *testing.T) {
	s, _ := newTestSelector()
	typ := reflect.TypeOf(&orderService{})

	zero := mustConstructor(t, newOrderServiceDefault)
	required := mustConstructor(t, NewOrderService, WithMarked(true))
	unmarked := mustConstructor(t, newOrderServiceFull)

	result, err := s.Select(typ, []*Constructor{zero, required, unmarked})
	require.NoError(t, err)
	require.Len(t, result.Constructors, 1)
	assert.Same(t, required, result.Constructors[0])
}

func TestSelectTwoRequiredIsFatal(t *testing.T) {
	s, _ := newTestSelector()
	typ := reflect.TypeOf(&orderService{})

	a := mustConstructor(t, NewOrderService, WithMarked(true))
	b := mustConstructor(t, newOrderServiceFull, WithMarked(true))

	_, err := s.Select(typ, []*Constructor{a, b})
	require.Error(t, err)

	var cfg *ConfigurationError
	require.ErrorAs(t, err, &cfg)
	assert.Contains(t, err.Error(), "NewOrderService")
	assert.Contains(t, err.Error(), "newOrderServiceFull")
}

func TestSelectNonRequiredMarkedWithZeroArgFallback(t *testing.T) {
	s, _ := newTestSelector()
	typ := reflect.TypeOf(&orderService{})

	zero := mustConstructor(t, newOrderServiceDefault)
	optA := mustConstructor(t, NewOrderService, WithMarked(false))
	optB := mustConstructor(t, newOrderServiceFull, WithMarked(false))

	result, err := s.Select(typ, []*Constructor{zero, optA, optB})
	require.NoError(t, err)
	require.Len(t, result.Constructors, 3)
	assert.Same(t, optA, result.Constructors[0])
	assert.Same(t, optB, result.Constructors[1])
	assert.Same(t, zero, result.Constructors[2])
}

func TestSelectSingleNonRequiredWithoutFallbackWarns(t *testing.T) {
	s, provider := newTestSelector()
	typ := reflect.TypeOf(&orderService{})

	opt := mustConstructor(t, NewOrderService, WithMarked(false))

	result, err := s.Select(typ, []*Constructor{opt})
	require.NoError(t, err)
	require.Len(t, result.Constructors, 1)
	assert.Same(t, opt, result.Constructors[0])
	assert.Equal(t, 1, provider.CountAtLevel(logging.LogLevelWarn))
}

func TestSelectSoleParameterizedConstructor(t *testing.T) {
	s, _ := newTestSelector()
	typ := reflect.TypeOf(&orderService{})

	only := mustConstructor(t, newOrderServiceFull)

	result, err := s.Select(typ, []*Constructor{only})
	require.NoError(t, err)
	require.Len(t, result.Constructors, 1)
	assert.Same(t, only, result.Constructors[0])
}

func TestSelectSoleParameterizedIgnoresSynthetic(t *testing.T) {
	s, _ := newTestSelector()
	typ := reflect.TypeOf(&orderService{})

	// 合成零参构造不改变"唯一带参构造"的判定
	only := mustConstructor(t, newOrderServiceFull)
	synthetic := mustConstructor(t, newOrderServiceDefault, WithSynthetic())

	result, err := s.Select(typ, []*Constructor{only, synthetic})
	require.NoError(t, err)
	require.Len(t, result.Constructors, 1)
	assert.Same(t, only, result.Constructors[0])
}

func TestSelectPrimaryWithZeroArgPair(t *testing.T) {
	s, _ := newTestSelector()
	typ := reflect.TypeOf(&orderService{})

	// 主构造约定：New+类型名
	primary := mustConstructor(t, NewOrderService)
	zero := mustConstructor(t, newOrderServiceDefault)

	result, err := s.Select(typ, []*Constructor{zero, primary})
	require.NoError(t, err)
	require.Len(t, result.Constructors, 2)
	assert.Same(t, primary, result.Constructors[0])
	assert.Same(t, zero, result.Constructors[1])
}

func TestSelectNoCandidates(t *testing.T) {
	s, _ := newTestSelector()
	typ := reflect.TypeOf(&dataStore{})

	a := mustConstructor(t, newOrderServiceFull)
	b := mustConstructor(t, func(id string) *dataStore { return &dataStore{id: id} })

	result, err := s.Select(typ, []*Constructor{a, b})
	require.NoError(t, err)
	assert.True(t, result.Empty())
}

func TestSelectResultIsMemoized(t *testing.T) {
	s, _ := newTestSelector()
	typ := reflect.TypeOf(&orderService{})

	required := mustConstructor(t, NewOrderService, WithMarked(true))

	first, err := s.Select(typ, []*Constructor{required})
	require.NoError(t, err)

	// 备忘命中：后续调用不再看传入的声明列表
	second, err := s.Select(typ, nil)
	require.NoError(t, err)
	assert.Same(t, first, second)

	s.Invalidate(typ)
	third, err := s.Select(typ, nil)
	require.NoError(t, err)
	assert.True(t, third.Empty())
}
