package bindlessvk

import "testing"

func TestSortedBindingsOrdersByBindingIndex(t *testing.T) {
	in := []DescriptorBindingDesc{
		{Binding: 2, DescriptorType: 1},
		{Binding: 0, DescriptorType: 2},
		{Binding: 1, DescriptorType: 3},
	}
	out := sortedBindings(in)
	for i, b := range out {
		if int(b.Binding) != i {
			t.Fatalf("sortedBindings(%+v) = %+v, not ordered by Binding", in, out)
		}
	}
	// input slice must be left untouched
	if in[0].Binding != 2 {
		t.Fatalf("sortedBindings mutated its input: %+v", in)
	}
}

func TestFingerprintDescriptorSetLayoutIsOrderIndependent(t *testing.T) {
	a := []DescriptorBindingDesc{
		{Binding: 0, DescriptorType: 6, DescriptorCount: 1, StageFlags: 16},
		{Binding: 1, DescriptorType: 7, DescriptorCount: 2, StageFlags: 1},
	}
	b := []DescriptorBindingDesc{
		{Binding: 1, DescriptorType: 7, DescriptorCount: 2, StageFlags: 1},
		{Binding: 0, DescriptorType: 6, DescriptorCount: 1, StageFlags: 16},
	}

	fpA := fingerprintDescriptorSetLayout(0, a)
	fpB := fingerprintDescriptorSetLayout(0, b)
	if fpA != fpB {
		t.Fatalf("fingerprints differ for permuted binding lists: %v != %v", fpA, fpB)
	}
}

func TestFingerprintDescriptorSetLayoutDistinguishesDifferentBindings(t *testing.T) {
	a := []DescriptorBindingDesc{{Binding: 0, DescriptorType: 6, DescriptorCount: 1, StageFlags: 16}}
	b := []DescriptorBindingDesc{{Binding: 0, DescriptorType: 6, DescriptorCount: 2, StageFlags: 16}}

	if fingerprintDescriptorSetLayout(0, a) == fingerprintDescriptorSetLayout(0, b) {
		t.Fatal("fingerprints collide for structurally different binding lists")
	}
}

func TestFingerprintDescriptorSetLayoutIsDeterministic(t *testing.T) {
	bindings := []DescriptorBindingDesc{
		{Binding: 3, DescriptorType: 4, DescriptorCount: 1, StageFlags: 8},
	}
	fp1 := fingerprintDescriptorSetLayout(2, bindings)
	fp2 := fingerprintDescriptorSetLayout(2, bindings)
	if fp1 != fp2 {
		t.Fatalf("fingerprintDescriptorSetLayout is not deterministic: %v != %v", fp1, fp2)
	}
}

func TestFingerprintPipelineLayoutDistinguishesInputs(t *testing.T) {
	base := fingerprintPipelineLayout(0, 1, 2, 3)
	if fingerprintPipelineLayout(0, 1, 2, 4) == base {
		t.Fatal("changing the shader fingerprint should change the pipeline-layout fingerprint")
	}
	if fingerprintPipelineLayout(0, 9, 2, 3) == base {
		t.Fatal("changing the graph fingerprint should change the pipeline-layout fingerprint")
	}
}

func TestFingerprintAttachmentDistinguishesNameAndFormat(t *testing.T) {
	a := fingerprintAttachment("color", 37, SizeSwapchainRelative, 1.0, 1.0)
	b := fingerprintAttachment("depth", 37, SizeSwapchainRelative, 1.0, 1.0)
	c := fingerprintAttachment("color", 38, SizeSwapchainRelative, 1.0, 1.0)
	if a == b {
		t.Fatal("fingerprintAttachment collides across different names")
	}
	if a == c {
		t.Fatal("fingerprintAttachment collides across different formats")
	}
}
