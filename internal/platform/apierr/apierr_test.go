package apierr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), NetworkOrServer},
		{"ctx", context.DeadlineExceeded, NetworkOrServer},
		{"typed", New(402, InsufficientPoint, nil), InsufficientPoint},
		{"wrapped", fmt.Errorf("submit: %w", Validation("name required")), ValidationFailed},
		{"unknown code", New(500, Code("SOMETHING_ELSE"), nil), NetworkOrServer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CodeOf(tc.err); got != tc.want {
				t.Fatalf("CodeOf: want=%q got=%q", tc.want, got)
			}
		})
	}
}

func TestNormalizeKeepsKnownErrors(t *testing.T) {
	orig := Processing("generating")
	if got := Normalize(orig); got != orig {
		t.Fatalf("Normalize should return the same *Error for known codes")
	}
	got := Normalize(errors.New("dial tcp: refused"))
	if got.Code != NetworkOrServer {
		t.Fatalf("Normalize code: want=%q got=%q", NetworkOrServer, got.Code)
	}
	if Normalize(nil) != nil {
		t.Fatalf("Normalize(nil) should be nil")
	}
}
