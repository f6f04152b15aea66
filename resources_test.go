package bindlessvk

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestAttachmentContainerGetDispatchesByKind(t *testing.T) {
	perImage := AttachmentContainer{
		Kind: KindPerImage,
		Attachments: []Attachment{
			{Format: vk.FormatR8g8b8a8Unorm},
			{Format: vk.FormatR8g8b8a8Srgb},
		},
	}
	if got := perImage.Get(1, 0); got.Format != vk.FormatR8g8b8a8Srgb {
		t.Fatalf("KindPerImage.Get(1, 0) = %+v, want image index 1's attachment", got)
	}

	perFrame := AttachmentContainer{
		Kind: KindPerFrame,
		Attachments: []Attachment{
			{Format: vk.FormatR8g8b8a8Unorm},
			{Format: vk.FormatR8g8b8a8Srgb},
			{Format: vk.FormatB8g8r8a8Unorm},
		},
	}
	if got := perFrame.Get(0, 2); got.Format != vk.FormatB8g8r8a8Unorm {
		t.Fatalf("KindPerFrame.Get(0, 2) = %+v, want frame index 2's attachment", got)
	}

	single := AttachmentContainer{
		Kind:        KindSingle,
		Attachments: []Attachment{{Format: vk.FormatD32Sfloat}},
	}
	if got := single.Get(5, 5); got.Format != vk.FormatD32Sfloat {
		t.Fatalf("KindSingle.Get(*, *) = %+v, want the single attachment regardless of indices", got)
	}
}

func TestRenderResourcesAttachmentIndexLookup(t *testing.T) {
	r := &RenderResources{index: make(map[Fingerprint]int)}

	if idx := r.TryGetAttachmentIndex(42); idx != noAttachmentIndex {
		t.Fatalf("TryGetAttachmentIndex on empty index = %d, want noAttachmentIndex", idx)
	}

	r.AddKeyToAttachmentIndex(42, 3)
	if idx := r.TryGetAttachmentIndex(42); idx != 3 {
		t.Fatalf("TryGetAttachmentIndex(42) = %d, want 3", idx)
	}

	// a second fingerprint aliased onto the same index (input-hash reuse)
	// must resolve to the same container.
	r.AddKeyToAttachmentIndex(99, 3)
	if idx := r.TryGetAttachmentIndex(99); idx != 3 {
		t.Fatalf("aliased fingerprint lookup = %d, want 3", idx)
	}
}

func TestTryGetSuitableTransientAttachmentIndexMatchesExactTuple(t *testing.T) {
	r := &RenderResources{
		transients: []TransientAttachment{
			{Format: vk.FormatR8g8b8a8Unorm, SampleCount: vk.SampleCount4Bit, Extent: vk.Extent3D{Width: 800, Height: 600, Depth: 1}},
		},
	}

	bp := AttachmentBlueprint{Format: vk.FormatR8g8b8a8Unorm, SizeType: SizeAbsolute, Width: 800, Height: 600}
	if idx := r.TryGetSuitableTransientAttachmentIndex(bp, vk.SampleCount4Bit); idx != 0 {
		t.Fatalf("exact (format, samples, extent) match should reuse the pooled transient, got index %d", idx)
	}

	wrongSamples := r.TryGetSuitableTransientAttachmentIndex(bp, vk.SampleCount2Bit)
	if wrongSamples != noAttachmentIndex {
		t.Fatalf("a different sample count must not match, got index %d", wrongSamples)
	}

	wrongExtent := AttachmentBlueprint{Format: vk.FormatR8g8b8a8Unorm, SizeType: SizeAbsolute, Width: 1024, Height: 768}
	if idx := r.TryGetSuitableTransientAttachmentIndex(wrongExtent, vk.SampleCount4Bit); idx != noAttachmentIndex {
		t.Fatalf("a different extent must not match, got index %d", idx)
	}
}

func TestNewAttachmentRefLoadOpFromInputPresence(t *testing.T) {
	layout := vk.ImageLayoutColorAttachmentOptimal
	access := vk.AccessFlagBits(vk.AccessColorAttachmentWriteBit)
	stage := vk.PipelineStageFlagBits(vk.PipelineStageColorAttachmentOutputBit)

	fresh := newAttachmentRef(0, false, layout, access, stage)
	if fresh.LoadOp != vk.AttachmentLoadOpClear {
		t.Fatalf("newAttachmentRef with no input should Clear, got %v", fresh.LoadOp)
	}
	if fresh.TransientResourceIndex != -1 {
		t.Fatalf("newAttachmentRef should default TransientResourceIndex to -1, got %d", fresh.TransientResourceIndex)
	}
	if fresh.ImageLayout != layout || fresh.AccessMask != access || fresh.StageMask != stage {
		t.Fatalf("newAttachmentRef should carry the pass's required state, got %+v", fresh)
	}

	reused := newAttachmentRef(0, true, layout, access, stage)
	if reused.LoadOp != vk.AttachmentLoadOpLoad {
		t.Fatalf("newAttachmentRef with an input should Load, got %v", reused.LoadOp)
	}
	if reused.StoreOp != vk.AttachmentStoreOpStore {
		t.Fatalf("newAttachmentRef should always Store, got %v", reused.StoreOp)
	}
}
