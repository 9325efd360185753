package slotz

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesByKindNotSubject(t *testing.T) {
	t.Parallel()

	err := SlotNotFound("alpha")
	probe := New(KindSlotNotFound, "", "")

	if !errors.Is(err, probe) {
		t.Fatalf("expected errors.Is to match on Kind alone")
	}
	if errors.Is(err, New(KindSlotAlreadyExists, "", "")) {
		t.Fatalf("errors.Is matched a different Kind")
	}
}

func TestWrapPreservesUnwrapChain(t *testing.T) {
	t.Parallel()

	root := errors.New("connection refused")
	wrapped := Wrap(KindGit, "alpha", root)

	if !errors.Is(wrapped, root) {
		t.Fatalf("expected errors.Is to see through Wrap to the root cause")
	}
}

func TestKindOfWalksWrappedErrors(t *testing.T) {
	t.Parallel()

	inner := SlotNotFound("alpha")
	outer := fmt.Errorf("creating slot: %w", inner)

	if got := KindOf(outer); got != KindSlotNotFound {
		t.Fatalf("KindOf(outer) = %v, want %v", got, KindSlotNotFound)
	}
}

func TestKindOfUnknownForPlainError(t *testing.T) {
	t.Parallel()

	if got := KindOf(errors.New("boom")); got != KindUnknown {
		t.Fatalf("KindOf(plain error) = %v, want %v", got, KindUnknown)
	}
	if got := KindOf(nil); got != KindUnknown {
		t.Fatalf("KindOf(nil) = %v, want %v", got, KindUnknown)
	}
}

func TestErrorMessageShapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  *Error
		want string
	}{
		{"subject only", New(KindSlotNotFound, "alpha", ""), `slot_not_found "alpha"`},
		{"subject and msg", New(KindInvalidConfig, "alpha", "missing apphost"), `invalid_config "alpha": missing apphost`},
		{"wrapped, no subject", Wrap(KindGit, "", errors.New("exit status 128")), "git: exit status 128"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Errorf("Error() = %q, want %q", got, tc.want)
			}
		})
	}
}
