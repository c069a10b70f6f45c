package injection

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerRegistryFreezesAfterFirstUse(t *testing.T) {
	r := NewMarkerRegistry()

	require.NoError(t, r.Add(Marker{Name: "wire", Tag: "wire", RequiredByDefault: true}))

	// 首次查询冻结注册表
	_ = r.Markers()
	assert.ErrorIs(t, r.Add(Marker{Name: "late", Tag: "late"}), ErrMarkersFrozen)
}

func TestMarkerFindRespectsRegistrationOrder(t *testing.T) {
	r := NewMarkerRegistry()

	type both struct {
		Dep *dataStore `autowire:"a" inject:"b"`
	}
	field, _ := reflect.TypeOf(both{}).FieldByName("Dep")

	marker, payload, ok := r.Find(field)
	require.True(t, ok)
	assert.Equal(t, "autowire", marker.Name)
	assert.Equal(t, "a", payload)
}

func TestIsCandidateWalksEmbeddedChain(t *testing.T) {
	r := NewMarkerRegistry()

	assert.True(t, r.IsCandidate(reflect.TypeOf(&widget{})))
	assert.True(t, r.IsCandidate(reflect.TypeOf(&wiringDerived{})))
	assert.False(t, r.IsCandidate(reflect.TypeOf(&plainType{})))
	assert.False(t, r.IsCandidate(reflect.TypeOf(42)))
}

func TestParseDirective(t *testing.T) {
	m := Marker{Name: "autowire", Tag: "autowire", RequiredByDefault: true}

	dir := parseDirective(m, "")
	assert.True(t, dir.Required)
	assert.Empty(t, dir.Name)

	dir = parseDirective(m, "primary")
	assert.Equal(t, "primary", dir.Name)
	assert.True(t, dir.Required)

	dir = parseDirective(m, "optional")
	assert.False(t, dir.Required)
	assert.Empty(t, dir.Name)

	dir = parseDirective(m, "?")
	assert.False(t, dir.Required)

	dir = parseDirective(m, "primary,optional")
	assert.Equal(t, "primary", dir.Name)
	assert.False(t, dir.Required)

	dir = parseDirective(m, "method=SetStore,optional")
	assert.Equal(t, "SetStore", dir.Method)
	assert.False(t, dir.Required)

	expr := Marker{Name: "value", Tag: "value", RequiredByDefault: true, Expression: true}
	dir = parseDirective(expr, "${server.port}")
	assert.Equal(t, "${server.port}", dir.Expression)
	assert.Empty(t, dir.Name)
}
