package listing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueKinds(t *testing.T) {
	t.Parallel()

	var decoded any
	require.NoError(t, json.Unmarshal([]byte(`{"a":{"b":[1,"x",null]},"s":" hi ","n":null}`), &decoded))
	root := ValueOf(decoded)

	require.Equal(t, KindMapping, root.Kind())
	require.Equal(t, KindSequence, root.Path("a", "b").Kind())
	require.Equal(t, 3, root.Path("a", "b").Len())
	require.Equal(t, KindScalar, root.Path("a", "b").Index(0).Kind())
	require.Equal(t, KindNull, root.Path("a", "b").Index(2).Kind())
	require.Equal(t, KindNull, root.Path("a", "b").Index(9).Kind())
	require.Equal(t, KindNull, root.Get("n").Kind())
	require.Equal(t, KindNull, root.Path("s", "deeper").Kind())

	s, ok := root.Get("s").Text()
	require.True(t, ok)
	require.Equal(t, "hi", s)

	_, ok = root.Get("s").Number()
	require.False(t, ok)
}

func TestLookupSkipsEmptyValues(t *testing.T) {
	t.Parallel()

	v := ValueOf(Payload{"a": "  ", "b": []any{}, "c": 0.0, "d": "x"})
	require.Equal(t, 0.0, v.Lookup("a", "b", "c", "d").Raw())
	require.Equal(t, "x", v.Lookup("a", "b", "d").Raw())
	require.True(t, v.Lookup("a", "b").IsEmpty())
}

func TestStringsFlattensMediaItems(t *testing.T) {
	t.Parallel()

	v := ValueOf([]any{
		"a.jpg",
		map[string]any{"url": "b.jpg"},
		map[string]any{"src": "c.jpg"},
		map[string]any{"alt": "nothing"},
		"",
	})
	require.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg"}, Strings(v))
	require.Equal(t, []string{"single"}, Strings(ValueOf("single")))
	require.Nil(t, Strings(ValueOf(nil)))
}

func TestPayloadHasData(t *testing.T) {
	t.Parallel()

	require.False(t, Payload{}.HasData())
	require.False(t, Payload{"a": nil, "b": "", "c": 0, "d": false, "e": []any{}}.HasData())
	require.True(t, Payload{"a": nil, "b": "x"}.HasData())
}
