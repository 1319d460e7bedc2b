package biz

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesByKind(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("verify: %w", WrapError(KindVerificationFailed, cause, "app store verification unavailable"))

	if !errors.Is(err, ErrVerificationFailed) {
		t.Error("wrapped error should match ErrVerificationFailed")
	}
	if errors.Is(err, ErrInvalidReceipt) {
		t.Error("wrapped error should not match another kind")
	}
	if !errors.Is(err, cause) {
		t.Error("cause should stay reachable")
	}

	be, ok := AsError(err)
	if !ok || be.Kind != KindVerificationFailed {
		t.Fatalf("AsError = %v, %v", be, ok)
	}
	if be.Kind.String() != "VERIFICATION_FAILED" {
		t.Errorf("String = %s", be.Kind.String())
	}
}

func TestErrorKindCodesAreDistinct(t *testing.T) {
	seen := make(map[int]ErrorKind)
	for k := KindNotFound; k <= KindInvalidArgument; k++ {
		if prev, ok := seen[k.Code()]; ok {
			t.Errorf("%s and %s share code %d", prev, k, k.Code())
		}
		seen[k.Code()] = k
	}
}
