package bindlessvk

import (
	"errors"
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestVkErrClassifiesOutOfDateAndSuboptimal(t *testing.T) {
	for _, ret := range []vk.Result{vk.ErrorOutOfDate, vk.Suboptimal} {
		err := vkErr(ret)
		if !IsOutOfDate(err) {
			t.Errorf("vkErr(%v) should classify as OutOfDate", ret)
		}
	}
}

func TestVkErrClassifiesSurfaceLostAsOutOfDate(t *testing.T) {
	err := vkErr(vk.ErrorSurfaceLost)
	if !IsOutOfDate(err) {
		t.Error("vkErr(ErrorSurfaceLost) should be treated as recoverable via IsOutOfDate")
	}
}

func TestVkErrClassifiesDeviceLost(t *testing.T) {
	err := vkErr(vk.ErrorDeviceLost)
	if !IsDeviceLost(err) {
		t.Error("vkErr(ErrorDeviceLost) should classify as DeviceLost")
	}
	if IsOutOfDate(err) {
		t.Error("DeviceLost must not be treated as a recoverable OutOfDate condition")
	}
}

func TestVkErrSuccessIsNil(t *testing.T) {
	if err := vkErr(vk.Success); err != nil {
		t.Errorf("vkErr(Success) = %v, want nil", err)
	}
}

func TestVkErrUnclassifiedFallsBackToInternal(t *testing.T) {
	err := vkErr(vk.ErrorInitializationFailed)
	e, ok := err.(*Error)
	if !ok {
		t.Fatalf("vkErr should always return *Error, got %T", err)
	}
	if e.Kind != Internal {
		t.Errorf("vkErr(ErrorInitializationFailed).Kind = %v, want Internal", e.Kind)
	}
}

func TestOrPanicCheckErrRoundTrip(t *testing.T) {
	sentinel := errors.New("boom")

	run := func() (err error) {
		defer checkErr(&err)
		orPanic(sentinel)
		t.Fatal("unreachable: orPanic should have panicked")
		return nil
	}

	if err := run(); err != sentinel {
		t.Fatalf("checkErr recovered = %v, want %v", err, sentinel)
	}
}

func TestOrPanicNilIsNoop(t *testing.T) {
	run := func() (err error) {
		defer checkErr(&err)
		orPanic(nil)
		return nil
	}
	if err := run(); err != nil {
		t.Fatalf("orPanic(nil) should never trigger a panic, got err=%v", err)
	}
}
