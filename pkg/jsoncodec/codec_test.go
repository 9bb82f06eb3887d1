package jsoncodec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/dispatchkit/pkg/jsoncodec"
)

func TestDecodeNormalizesNumbers(t *testing.T) {
	t.Parallel()

	v, err := jsoncodec.Decode([]byte(`{"a":1,"b":1.5,"c":[2,{"d":-3}],"e":"x","f":null,"g":true}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": int64(1),
		"b": 1.5,
		"c": []any{int64(2), map[string]any{"d": int64(-3)}},
		"e": "x",
		"f": nil,
		"g": true,
	}, v)
}

func TestDecodeInvalid(t *testing.T) {
	t.Parallel()

	_, err := jsoncodec.Decode([]byte(`{"a":`))
	require.ErrorIs(t, err, jsoncodec.ErrInvalidJSON)
	assert.False(t, jsoncodec.Valid([]byte(`{"a":`)))
	assert.True(t, jsoncodec.Valid([]byte(`[1,2]`)))
}

func TestMarshalIsStable(t *testing.T) {
	t.Parallel()

	b, err := jsoncodec.Marshal(map[string]any{"z": 1, "a": "<b>", "m": []int{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<b>","m":[1,2],"z":1}`, string(b))
}

func TestUnmarshalTyped(t *testing.T) {
	t.Parallel()

	var dst struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	require.NoError(t, jsoncodec.Unmarshal([]byte(`{"name":"Ann","age":3}`), &dst))
	assert.Equal(t, "Ann", dst.Name)
	assert.Equal(t, 3, dst.Age)
}
