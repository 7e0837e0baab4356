package session

import "testing"

func TestNewID(t *testing.T) {
	id := NewID()
	if len(id) != 36 {
		t.Errorf("NewID() = %q, expected length 36", id)
	}
	if !ValidID(id) {
		t.Errorf("NewID() = %q is not a valid UUID", id)
	}
	if other := NewID(); other == id {
		t.Errorf("NewID() returned %q twice", id)
	}
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"1b4e28ba-2fa1-11d2-883f-0016d3cca427", true},
		{"not-a-uuid", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidID(tt.id); got != tt.want {
			t.Errorf("ValidID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestShortID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"1b4e28ba-2fa1-11d2-883f-0016d3cca427", "1b4e28ba"},
		{"abcdefghijkl", "abcdefgh"},
		{"short", "short"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ShortID(tt.id); got != tt.want {
			t.Errorf("ShortID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
