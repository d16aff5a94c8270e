package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexStrings(t *testing.T) {
	var body map[string]FlexStrings
	err := json.Unmarshal([]byte(`{
		"business_name": "Acme",
		"product_count": 2,
		"hours_monday_closed": true,
		"tags": ["a", 1.5],
		"empty": null
	}`), &body)
	require.NoError(t, err)

	assert.Equal(t, FlexStrings{"Acme"}, body["business_name"])
	assert.Equal(t, FlexStrings{"2"}, body["product_count"])
	assert.Equal(t, FlexStrings{"true"}, body["hours_monday_closed"])
	assert.Equal(t, FlexStrings{"a", "1.5"}, body["tags"])
	assert.Equal(t, FlexStrings{""}, body["empty"])

	var nested FlexStrings
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &nested))
}

func TestFlexUint64(t *testing.T) {
	var v struct {
		A FlexUint64 `json:"a"`
		B FlexUint64 `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 7, "b": "12"}`), &v))
	assert.Equal(t, uint64(7), v.A.Uint64())
	assert.Equal(t, uint64(12), v.B.Uint64())

	assert.Error(t, json.Unmarshal([]byte(`{"a": "x"}`), &v))
}
