package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCopyLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Acme", "Acme (Copy)"},
		{"Acme (Copy)", "Acme (Copy 2)"},
		{"Acme (Copy 2)", "Acme (Copy 3)"},
		{"Acme (Copy 9) ltd", "Acme (Copy 10) ltd"},
		{"", " (Copy)"},
		{"A (Copy 2) / B (Copy)", "A (Copy 3) / B (Copy 3)"},
		{"Acme (Copy x)", "Acme (Copy x) (Copy)"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CopyLabel(tt.in))
		})
	}
}

func TestCopyLabel_Chain(t *testing.T) {
	label := "X"
	var got []string
	for i := 0; i < 3; i++ {
		label = CopyLabel(label)
		got = append(got, label)
	}
	assert.Equal(t, []string{"X (Copy)", "X (Copy 2)", "X (Copy 3)"}, got)
}
