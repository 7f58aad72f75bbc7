package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceNumber(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"currency string", "$1,234.50", 1234.5},
		{"not a number", "abc", 0},
		{"plain number", float64(42), 42},
		{"int", 42, 42},
		{"negative", "-12.5%", -12.5},
		{"trailing garbage", "1.2.3", 1.2},
		{"leading dot", ".5", 0.5},
		{"only minus", "-", 0},
		{"nil", nil, 0},
		{"bool", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CoerceNumber(tt.in))
		})
	}
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "", CellString(nil))
	assert.Equal(t, "0", CellString(float64(0)))
	assert.Equal(t, "1.5", CellString(1.5))
	assert.Equal(t, "true", CellString(true))
	assert.Equal(t, `{"a":1}`, CellString(map[string]any{"a": 1}))
}

func TestDecodeRowsKeepsFirstRowKeyOrder(t *testing.T) {
	table, ok := decodeRows(json.RawMessage(`[{"zeta":1,"alpha":2,"mid":3},{"alpha":5}]`))
	require.True(t, ok)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, table.Columns)
	assert.Len(t, table.Rows, 2)
	assert.Equal(t, "5", table.Cell(1, "alpha"))
	assert.Equal(t, "", table.Cell(1, "zeta"))
	assert.Equal(t, "", table.Cell(7, "zeta"))
}

func TestDecodeRowsRejectsNonObjectArrays(t *testing.T) {
	for _, raw := range []string{`[]`, `["a","b"]`, `[{"a":1},"b"]`, `{"a":1}`, `"text"`} {
		_, ok := decodeRows(json.RawMessage(raw))
		assert.False(t, ok, raw)
	}
}

func TestDecodeChart(t *testing.T) {
	chart := decodeChart(json.RawMessage(`{"labels":["p",2],"values":["$2",3]}`))
	require.NotNil(t, chart)
	assert.Equal(t, []string{"p", "2"}, chart.Labels)
	assert.Equal(t, []float64{2, 3}, chart.Values)

	assert.Nil(t, decodeChart(nil))
	assert.Nil(t, decodeChart(json.RawMessage(`{"labels":["p"]}`)))
	assert.Nil(t, decodeChart(json.RawMessage(`null`)))
}
