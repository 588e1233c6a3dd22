package entity_test

import (
	"testing"

	"booker/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_Cents(t *testing.T) {
	tests := []struct {
		amount string
		cents  int64
	}{
		{"42.00", 4200},
		{"42", 4200},
		{"42.5", 4250},
		{"0.07", 7},
		{"1299.99", 129999},
		{"0", 0},
	}

	for _, tc := range tests {
		t.Run(tc.amount, func(t *testing.T) {
			m := entity.Money{Amount: tc.amount, Currency: "GBP"}
			cents, err := m.Cents()
			require.NoError(t, err)
			assert.Equal(t, tc.cents, cents)
		})
	}
}

func TestMoney_Cents_Invalid(t *testing.T) {
	for _, amount := range []string{"", "abc", "1.234", "1.2.3"} {
		t.Run(amount, func(t *testing.T) {
			m := entity.Money{Amount: amount, Currency: "GBP"}
			_, err := m.Cents()
			assert.Error(t, err)
		})
	}
}

func TestMoney_Equal(t *testing.T) {
	a := entity.Money{Amount: "42.50", Currency: "GBP"}

	assert.True(t, a.Equal(entity.Money{Amount: "42.5", Currency: "GBP"}))
	assert.True(t, a.Equal(entity.Money{Amount: "42.50", Currency: "gbp"}))
	assert.False(t, a.Equal(entity.Money{Amount: "42.50", Currency: "EUR"}))
	assert.False(t, a.Equal(entity.Money{Amount: "42.51", Currency: "GBP"}))
}
