package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "lengthcm", normalize("Length (cm)"))
	assert.Equal(t, "countryoforigin", normalize("Country-of-Origin"))
	assert.Equal(t, "größe", normalize("Größe"))
}

func TestFind_ReportsStrategy(t *testing.T) {
	var fields []ExtraField
	require.NoError(t, json.Unmarshal([]byte(`[
		{"name":"Max length (cm)","value":"200"},
		{"label":"LEN","value":"180"}
	]`), &fields))

	f, strategy, ok := Find(fields, LengthAliases)
	require.True(t, ok)
	assert.Equal(t, "exact", strategy)
	assert.Equal(t, "LEN", f.Label)

	f, strategy, ok = Find(fields[:1], LengthAliases)
	require.True(t, ok)
	assert.Equal(t, "substring", strategy)
	assert.Equal(t, "Max length (cm)", f.Name)

	_, _, ok = Find(fields, OriginAliases)
	assert.False(t, ok)
}

func TestStringValue_UnwrapOrder(t *testing.T) {
	cases := map[string]string{
		`{"value":{"value":"a","text":"b"}}`: "a",
		`{"value":{"text":"b"}}`:             "b",
		`{"value":12.50}`:                    "12.50",
		`{"value":true}`:                     "true",
		`{"value":null,"text":"t"}`:          "t",
		`{"val":"v","display":"d"}`:          "v",
		`{"displayValue":" dv "}`:            "dv",
		`{"display":"d","data":"x"}`:         "d",
		`{"data":"x"}`:                       "x",
	}
	for body, want := range cases {
		var f ExtraField
		require.NoError(t, json.Unmarshal([]byte(body), &f))
		got, ok := f.StringValue()
		assert.True(t, ok, body)
		assert.Equal(t, want, got, body)
	}

	var empty ExtraField
	require.NoError(t, json.Unmarshal([]byte(`{"name":"x","value":{}}`), &empty))
	_, ok := empty.StringValue()
	assert.False(t, ok)
}
