package teacher

import "testing"

func TestIsValidPhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		phone string
		want  bool
	}{
		{phone: "", want: false},
		{phone: "   ", want: false},
		{phone: "abcdef", want: false},
		{phone: "+1 (555) 123-4567", want: true},
		{phone: "5551234567", want: true},
		{phone: "(555) 123-4567", want: true},
		{phone: "555.123.4567", want: true},
		{phone: "+923001234567", want: true},
		{phone: "555-123-456789", want: true},
		{phone: "555-123-45", want: false},
		{phone: "12345", want: false},
		{phone: "555 123 4567 ", want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.phone, func(t *testing.T) {
			t.Parallel()
			if got := IsValidPhone(tt.phone); got != tt.want {
				t.Errorf("IsValidPhone(%q) = %v, want %v", tt.phone, got, tt.want)
			}
		})
	}
}
