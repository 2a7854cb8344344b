package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Cents
		wantErr bool
	}{
		{in: "25.50", want: 2550},
		{in: "25.5", want: 2550},
		{in: "-25.5", want: -2550},
		{in: "0.005", want: 1},
		{in: "-0.005", want: -1},
		{in: "0.004", want: 0},
		{in: "100", want: 10000},
		{in: "abc", wantErr: true},
		{in: "10000000000000", want: 1_000_000_000_000_000},
		{in: "-10000000000000", want: -1_000_000_000_000_000},
		{in: "10000000000000.01", wantErr: true},
		{in: "184467440737095517.16", wantErr: true},
		{in: "92233720368547758.08", wantErr: true},
		{in: "1e30", wantErr: true},
		{in: "-1e30", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDivRound(t *testing.T) {
	assert.Equal(t, Cents(3333), Cents(10000).DivRound(3))
	assert.Equal(t, Cents(6667), Cents(20000).DivRound(3))
	assert.Equal(t, Cents(-6667), Cents(-20000).DivRound(3))
	assert.Equal(t, Cents(1), Cents(1).DivRound(2))
	assert.Equal(t, Cents(-1), Cents(-1).DivRound(2))
	assert.Equal(t, Cents(0), Cents(1).DivRound(3))
}

func TestJSON(t *testing.T) {
	out, err := json.Marshal(map[string]Cents{"u1": 2550, "u2": -2550})
	require.NoError(t, err)
	assert.JSONEq(t, `{"u1": 25.50, "u2": -25.50}`, string(out))

	var in struct {
		A Cents `json:"a"`
		B Cents `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 10.255, "b": "3.1"}`), &in))
	assert.Equal(t, Cents(1026), in.A)
	assert.Equal(t, Cents(310), in.B)

	require.ErrorIs(t, json.Unmarshal([]byte(`"ten"`), &in.A), ErrInvalidAmount)
}

func TestUnmarshalJSONRejectsOutOfRange(t *testing.T) {
	for _, in := range []string{`184467440737095517.16`, `"92233720368547758.08"`, `1e30`} {
		var c Cents
		err := json.Unmarshal([]byte(in), &c)
		assert.ErrorIs(t, err, ErrInvalidAmount, in)
		assert.Zero(t, c, in)
	}
}
