package provenance

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanon_ObjectKeysAreSorted(t *testing.T) {
	a := Object(map[string]Value{"b": Number(1), "a": Number(2)})
	assert.Equal(t, `{"a":2,"b":1}`, string(a.Canon()))
}

func TestCanon_IsStableAcrossEqualBuilds(t *testing.T) {
	build := func() Value {
		return Object(map[string]Value{
			"name":   String("agent"),
			"count":  Number(3),
			"active": Bool(true),
			"tags":   Array(String("x"), String("y")),
			"nested": Object(map[string]Value{"z": Null()}),
		})
	}
	assert.Equal(t, build().Canon(), build().Canon())
}

func TestCanon_NumbersUseShortestForm(t *testing.T) {
	assert.Equal(t, "1", string(Number(1).Canon()))
	assert.Equal(t, "1.5", string(Number(1.5).Canon()))
}

func TestValue_JSONRoundTrip(t *testing.T) {
	original := Object(map[string]Value{
		"s": String("hi"),
		"n": Number(42),
		"b": Bool(false),
		"a": Array(Number(1), Number(2)),
		"o": Object(map[string]Value{"k": String("v")}),
		"u": Null(),
	})

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var restored Value
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, original.Canon(), restored.Canon())
}

func TestFromAny_ConvertsDecodedJSONTypes(t *testing.T) {
	var decoded interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"x":[1,2,"s"],"y":null}`), &decoded))
	v := FromAny(decoded)
	assert.Equal(t, `{"x":[1,2,"s"],"y":null}`, string(v.Canon()))
}

func TestFromAny_PanicsOnUnsupportedType(t *testing.T) {
	assert.Panics(t, func() {
		FromAny(struct{ X int }{X: 1})
	})
}

func TestTryFromAny_ReturnsCanonicalizationErrorInsteadOfPanicking(t *testing.T) {
	_, err := TryFromAny(struct{ X int }{X: 1})
	require.Error(t, err)
	var canonErr *CanonicalizationError
	require.ErrorAs(t, err, &canonErr)
}

func TestTryFromAny_ReportsErrorFromNestedUnsupportedValue(t *testing.T) {
	_, err := TryFromAny(map[string]interface{}{
		"ok":  "fine",
		"bad": struct{}{},
	})
	require.Error(t, err)
	var canonErr *CanonicalizationError
	require.ErrorAs(t, err, &canonErr)
}
