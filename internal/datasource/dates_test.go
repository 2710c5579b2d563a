package datasource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandDate(t *testing.T) {
	tests := []struct {
		name             string
		raw              string
		day, month, year string
	}{
		{"iso", "2020-01-15", "15", "01", "2020"},
		{"dotted day first", "15.01.2020", "15", "01", "2020"},
		{"slashed day first", "15/01/2020", "15", "01", "2020"},
		{"dotted year first", "2020.01.15", "15", "01", "2020"},
		{"spreadsheet serial", "43845", "15", "01", "2020"},
		{"serial with time fraction", "43845.75", "15", "01", "2020"},
		{"trailing time ignored", "2020-01-15 00:00:00", "15", "01", "2020"},
		{"surrounding space", "  15.01.2020 ", "15", "01", "2020"},
		{"free form timestamp", "1990-03-07T10:00:00Z", "07", "03", "1990"},
		{"compact digits beyond serial range", "19900307", "07", "03", "1990"},
		{"only first token is parsed", "March 7, 1990", "March 7, 1990", "March 7, 1990", "March 7, 1990"},
		{"empty", "", "", "", ""},
		{"blank", "   ", "", "", ""},
		{"garbage passes through", "unknown", "unknown", "unknown", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, m, y := ExpandDate(tt.raw)
			assert.Equal(t, tt.day, d, "day")
			assert.Equal(t, tt.month, m, "month")
			assert.Equal(t, tt.year, y, "year")
		})
	}
}

func TestExpandDateDeterministic(t *testing.T) {
	for _, raw := range []string{"43845", "15/01/2020", "n/a"} {
		d1, m1, y1 := ExpandDate(raw)
		d2, m2, y2 := ExpandDate(raw)
		assert.Equal(t, []string{d1, m1, y1}, []string{d2, m2, y2})
	}
}
