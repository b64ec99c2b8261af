package validation

import "testing"

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{
			name:  "plain address",
			email: "buyer@example.com",
			valid: true,
		},
		{
			name:  "missing at sign",
			email: "buyer.example.com",
			valid: false,
		},
		{
			name:  "empty local part",
			email: "@example.com",
			valid: false,
		},
		{
			name:  "empty domain",
			email: "buyer@",
			valid: false,
		},
		{
			name:  "empty string",
			email: "",
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidEmail(tt.email)
			if got != tt.valid {
				t.Fatalf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.valid)
			}
		})
	}
}

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		valid bool
	}{
		{
			name:  "international format",
			phone: "+7 999 123-45-67",
			valid: true,
		},
		{
			name:  "bare digits",
			phone: "89991234567",
			valid: true,
		},
		{
			name:  "too short",
			phone: "1234",
			valid: false,
		},
		{
			name:  "contains letters",
			phone: "8999abc4567",
			valid: false,
		},
		{
			name:  "plus sign in the middle",
			phone: "8+9991234567",
			valid: false,
		},
		{
			name:  "empty string",
			phone: "",
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidPhone(tt.phone)
			if got != tt.valid {
				t.Fatalf("IsValidPhone(%q) = %v, want %v", tt.phone, got, tt.valid)
			}
		})
	}
}
