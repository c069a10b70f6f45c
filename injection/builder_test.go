package injection

import (
	"reflect"
	"testing"

	"github.com/gocrud/autowire/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOrdersOuterPointsFirst(t *testing.T) {
	b, _ := newTestBuilder()

	md := b.Build(reflect.TypeOf(&wiringDerived{}))
	points := md.Points()
	require.Len(t, points, 2)

	assert.Equal(t, "StoreB", points[0].Member().Name())
	assert.Equal(t, "StoreA", points[1].Member().Name())
}

func TestBuildIsIdempotent(t *testing.T) {
	b, _ := newTestBuilder()
	typ := reflect.TypeOf(&wiringDerived{})

	first := b.Build(typ).Points()
	second := b.Build(typ).Points()
	require.Equal(t, len(first), len(second))

	for i := range first {
		assert.True(t, first[i].Equal(second[i]))
	}
}

func TestBuildReturnsSharedEmptyMetadata(t *testing.T) {
	b, _ := newTestBuilder()

	md1 := b.Build(reflect.TypeOf(&plainType{}))
	md2 := b.Build(reflect.TypeOf(&eventBus{}))

	assert.Same(t, EmptyMetadata, md1)
	assert.Same(t, EmptyMetadata, md2)
	assert.Empty(t, md1.Points())
	assert.False(t, md1.NeedsRefresh(reflect.TypeOf(&plainType{})))
}

func TestBuildSkipsUnexportedFieldWithWarning(t *testing.T) {
	type hidden struct {
		store *dataStore `autowire:""`
		Pub   *dataStore `autowire:""`
	}
	b, provider := newTestBuilder()

	md := b.Build(reflect.TypeOf(&hidden{}))
	require.Len(t, md.Points(), 1)
	assert.Equal(t, "Pub", md.Points()[0].Member().Name())
	assert.Equal(t, 1, provider.CountAtLevel(logging.LogLevelWarn))
}

func TestBuildMethodPoint(t *testing.T) {
	b, _ := newTestBuilder()

	md := b.Build(reflect.TypeOf(&gadget{}))
	require.Len(t, md.Points(), 1)

	p := md.Points()[0]
	assert.Equal(t, MemberMethod, p.Member().Kind())
	assert.Equal(t, "SetStore", p.Member().Name())
	require.Len(t, p.Member().ParamTypes(), 1)
	assert.Equal(t, reflect.TypeOf(&dataStore{}), p.Member().ParamTypes()[0])
}

func TestBuildSkipsMissingMethodWithWarning(t *testing.T) {
	type broken struct {
		_ struct{} `autowire:"method=SetGone"`
	}
	b, provider := newTestBuilder()

	md := b.Build(reflect.TypeOf(&broken{}))
	assert.Empty(t, md.Points())
	assert.Equal(t, 1, provider.CountAtLevel(logging.LogLevelWarn))
}

func TestBuildMostSpecificMethodWins(t *testing.T) {
	b, _ := newTestBuilder()

	md := b.Build(reflect.TypeOf(&overridingGadget{}))
	require.Len(t, md.Points(), 1)

	p := md.Points()[0]
	assert.Equal(t, "SetStore", p.Member().Name())

	// 方法取自最外层类型的方法集：外层覆盖内层
	g := &overridingGadget{}
	require.NoError(t, p.Member().Invoke(g, []reflect.Value{reflect.ValueOf(&dataStore{})}))
	assert.Equal(t, 1, g.outerCalls)
	assert.Zero(t, g.gadget.calls)
}

type overridingGadget struct {
	gadget
	_          struct{} `autowire:"method=SetStore"`
	outerCalls int
}

func (g *overridingGadget) SetStore(s *dataStore) {
	g.outerCalls++
}

func TestCheckMembersClaimsOnce(t *testing.T) {
	b, _ := newTestBuilder()
	var set MemberSet

	first := b.Build(reflect.TypeOf(&wiringDerived{}))
	first.CheckMembers(&set)
	assert.Len(t, first.effectivePoints(), 2)

	// 第二套元数据认领同一批成员：全部已被占用
	second := newMetadata(first.TargetType(), first.Points())
	second.CheckMembers(&set)
	assert.Empty(t, second.effectivePoints())
}
