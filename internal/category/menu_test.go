package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		id    string
		label string
	}{
		{"HR Policy", "HR Policy"},
		{"IT Policy", "IT Policy"},
		{"SOPP_Operation", "SOP - Operation"},
		{"SOPP_Sales", "SOP - Sales"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			sel, err := Lookup(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.id, sel.ID)
			assert.Equal(t, tt.label, sel.Label)
		})
	}
}

func TestLookupRejectsDropdownAndUnknown(t *testing.T) {
	for _, id := range []string{"SOP", "Finance", ""} {
		_, err := Lookup(id)
		assert.ErrorIs(t, err, ErrUnknownCategory, id)
	}
}

func TestAcknowledgement(t *testing.T) {
	sel, err := Lookup("SOPP_Revenue")
	require.NoError(t, err)
	assert.Equal(t, "You've selected SOP - Revenue. You can now ask questions related to this category.", sel.Acknowledgement())
}
