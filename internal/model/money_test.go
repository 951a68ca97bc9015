package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_String(t *testing.T) {
	tests := []struct {
		in   Money
		want string
	}{
		{4999, "49.99"},
		{5, "0.05"},
		{100, "1.00"},
		{0, "0.00"},
		{-250, "-2.50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.String())
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Money
		wantErr bool
	}{
		{name: "two decimals", in: "49.99", want: 4999},
		{name: "one decimal", in: "12.5", want: 1250},
		{name: "whole", in: "20", want: 2000},
		{name: "leading dot", in: ".75", want: 75},
		{name: "blank", in: "  ", want: 0},
		{name: "too precise", in: "1.999", wantErr: true},
		{name: "letters", in: "abc", wantErr: true},
		{name: "negative fraction", in: "1.-5", wantErr: true},
		{name: "plus sign", in: "+5", wantErr: true},
		{name: "largest whole", in: "92233720368547757", want: Money(92233720368547757 * 100)},
		{name: "overflows cents", in: "200000000000000000", wantErr: true},
		{name: "negative overflow", in: "-200000000000000000", wantErr: true},
		{name: "beyond uint64", in: "99999999999999999999", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoney_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Price Money `json:"price"`
	}{Price: 4999})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":"49.99"}`, string(b))

	var fromString, fromNumber Money
	require.NoError(t, json.Unmarshal([]byte(`"49.99"`), &fromString))
	require.NoError(t, json.Unmarshal([]byte(`4999`), &fromNumber))
	assert.Equal(t, Money(4999), fromString)
	assert.Equal(t, Money(4999), fromNumber)

	var bad Money
	assert.Error(t, json.Unmarshal([]byte(`true`), &bad))
}
