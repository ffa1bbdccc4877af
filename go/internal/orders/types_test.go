package orders

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeItems(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"empty", ``, "", false},
		{"null", `null`, "", false},
		{"array compacted", `[ "soup", {"name": "bread", "qty": 2} ]`, `["soup",{"name":"bread","qty":2}]`, false},
		{"string kept verbatim", `"[\"legacy\"]"`, `["legacy"]`, false},
		{"number rejected", `12`, "", true},
		{"object rejected", `{"a":1}`, "", true},
		{"broken array", `["soup"`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeItems(json.RawMessage(tt.raw))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrValidationFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubmitOrderRequest_LegacyFields(t *testing.T) {
	var req SubmitOrderRequest
	require.NoError(t, json.Unmarshal([]byte(`{"tableNumber":"5","waiterName":"Ana","order":["a","b"]}`), &req))

	items, err := req.EncodedItems()
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, items)

	req = SubmitOrderRequest{OrderItems: "raw text"}
	items, err = req.EncodedItems()
	require.NoError(t, err)
	assert.Equal(t, "raw text", items)
}
