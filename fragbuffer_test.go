package bindlessvk

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

// newTestFragmentedBuffer builds a FragmentedBuffer whose free list can be
// exercised without a real device: Grab/Return/coalescing never touch
// alloc/device/mapped, only the free-list bookkeeping under test here.
func newTestFragmentedBuffer(size vk.DeviceSize) *FragmentedBuffer {
	return &FragmentedBuffer{
		size: size,
		free: []Fragment{{Offset: 0, Length: size}},
	}
}

func TestFragmentedBufferGrabSplitsFrontOfFragment(t *testing.T) {
	f := newTestFragmentedBuffer(100)

	frag, err := f.Grab(40)
	if err != nil {
		t.Fatalf("Grab: %v", err)
	}
	if frag.Offset != 0 || frag.Length != 40 {
		t.Fatalf("Grab(40) = %+v, want {0 40}", frag)
	}
	if len(f.free) != 1 || f.free[0].Offset != 40 || f.free[0].Length != 60 {
		t.Fatalf("free list after grab = %+v, want [{40 60}]", f.free)
	}
}

func TestFragmentedBufferGrabExactSizeRemovesFragment(t *testing.T) {
	f := newTestFragmentedBuffer(50)

	frag, err := f.Grab(50)
	if err != nil {
		t.Fatalf("Grab: %v", err)
	}
	if frag.Offset != 0 || frag.Length != 50 {
		t.Fatalf("Grab(50) = %+v, want {0 50}", frag)
	}
	if len(f.free) != 0 {
		t.Fatalf("free list after exhausting grab = %+v, want empty", f.free)
	}
}

func TestFragmentedBufferGrabFailsWhenNoFragmentFits(t *testing.T) {
	f := newTestFragmentedBuffer(10)

	if _, err := f.Grab(11); err == nil {
		t.Fatal("Grab(11) on a 10-byte buffer should fail")
	}
}

// TestFragmentedBufferRoundTripRestoresSingleFragment exercises the
// testable property that grabbing fragments off a buffer and returning
// every one of them restores the original single free fragment covering
// the whole buffer (Scenario D).
func TestFragmentedBufferRoundTripRestoresSingleFragment(t *testing.T) {
	const size = vk.DeviceSize(256)
	f := newTestFragmentedBuffer(size)

	a, err := f.Grab(64)
	if err != nil {
		t.Fatalf("Grab a: %v", err)
	}
	b, err := f.Grab(64)
	if err != nil {
		t.Fatalf("Grab b: %v", err)
	}
	c, err := f.Grab(128)
	if err != nil {
		t.Fatalf("Grab c: %v", err)
	}
	if len(f.free) != 0 {
		t.Fatalf("free list should be fully exhausted, got %+v", f.free)
	}

	f.Return(b)
	f.Return(a)
	f.Return(c)

	if len(f.free) != 1 {
		t.Fatalf("free list after full round trip = %+v, want a single fragment", f.free)
	}
	if f.free[0].Offset != 0 || f.free[0].Length != size {
		t.Fatalf("free list after full round trip = %+v, want [{0 %d}]", f.free, size)
	}
}

// TestFragmentedBufferReturnMergesAdjacentFragments pins down the
// resolution of the coalescing open question: two fragments that exactly
// touch end-to-start must merge into one, not stay separated by the
// source's one-byte-gap test.
func TestFragmentedBufferReturnMergesAdjacentFragments(t *testing.T) {
	f := &FragmentedBuffer{size: 100}

	f.Return(Fragment{Offset: 0, Length: 40})
	f.Return(Fragment{Offset: 40, Length: 60})

	if len(f.free) != 1 {
		t.Fatalf("adjacent fragments should merge into one, got %+v", f.free)
	}
	if f.free[0].Offset != 0 || f.free[0].Length != 100 {
		t.Fatalf("merged fragment = %+v, want {0 100}", f.free[0])
	}
}

func TestFragmentedBufferReturnDoesNotMergeNonAdjacentFragments(t *testing.T) {
	f := &FragmentedBuffer{size: 100}

	f.Return(Fragment{Offset: 0, Length: 40})
	f.Return(Fragment{Offset: 50, Length: 50})

	if len(f.free) != 2 {
		t.Fatalf("non-adjacent fragments should stay separate, got %+v", f.free)
	}
}
