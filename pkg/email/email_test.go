package email

import "testing"

func TestDeriveNameFromEmail(t *testing.T) {
	cases := []struct {
		email string
		first string
		last  string
	}{
		{"jane.doe@example.com", "Jane", "Doe"},
		{"jane@example.com", "Jane", "User"},
		{"jane_van-doe@example.com", "Jane", "Doe"},
		{"", "User", "User"},
	}
	for _, tc := range cases {
		first, last := DeriveNameFromEmail(tc.email)
		if first != tc.first || last != tc.last {
			t.Errorf("DeriveNameFromEmail(%q) = %q, %q; want %q, %q", tc.email, first, last, tc.first, tc.last)
		}
	}
}
