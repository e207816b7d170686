package interaction

import (
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value string
		want  Command
	}{
		{"approve:c1", Approve("c1")},
		{"deny:c1", Deny("c1")},
		{"reject:c1:too_risky", Reject("c1", "too_risky")},
		{"respond:c2:yes", Respond("c2", "yes")},
		{"respond:c2:a:b:c", Respond("c2", "a:b:c")},
		{"approve:c1:", Approve("c1")},
		{"reject:c1", Reject("c1", "")},
		{"respond:c2:", Respond("c2", "")},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()
			got, err := Decode(tt.value)
			if err != nil {
				t.Fatalf("Decode(%q): %v", tt.value, err)
			}
			if got != tt.want {
				t.Errorf("Decode(%q) = %+v, want %+v", tt.value, got, tt.want)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value string
		want  error
	}{
		{"", ErrMalformedCommand},
		{"approve", ErrMalformedCommand},
		{"approve:", ErrMalformedCommand},
		{"reject:", ErrMalformedCommand},
		{"launch:c1", ErrUnknownCommand},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode(tt.value); !errors.Is(err, tt.want) {
				t.Errorf("Decode(%q) error = %v, want %v", tt.value, err, tt.want)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	for _, cmd := range []Command{
		Approve("run-1/c1"),
		Deny("c1"),
		Reject("c1", "policy:v2"),
		Respond("c2", "yes"),
	} {
		got, err := Decode(cmd.Encode())
		if err != nil {
			t.Fatalf("Decode(%q): %v", cmd.Encode(), err)
		}
		if got != cmd {
			t.Errorf("round trip %q = %+v, want %+v", cmd.Encode(), got, cmd)
		}
	}
}
