package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNegation(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		want bool
	}{
		{"exact", 500, -500, true},
		{"float drift", 0.1 + 0.2, -0.3, true},
		{"cents", 123.45, -123.45, true},
		{"one cent off", 123.45, -123.44, false},
		{"same sign", 500, 500, false},
		{"zero", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNegation(tt.a, tt.b))
		})
	}
}

func TestTransactionLinking(t *testing.T) {
	tx := &Transaction{Amount: -20}
	assert.Equal(t, "", tx.PartnerID())

	tx.LinkTo("abc")
	assert.True(t, tx.IsTransfer)
	assert.Equal(t, "abc", tx.PartnerID())

	clone := tx.Clone()
	clone.LinkTo("other")
	assert.Equal(t, "abc", tx.PartnerID(), "clone must not share the link pointer")

	tx.Unlink()
	assert.False(t, tx.IsTransfer)
	assert.Nil(t, tx.LinkedTxID)
}

func TestTypeForAmount(t *testing.T) {
	assert.Equal(t, TypeExpense, TypeForAmount(-0.01))
	assert.Equal(t, TypeIncome, TypeForAmount(0))
	assert.Equal(t, TypeIncome, TypeForAmount(42))
}
