package bindlessvk

import "sort"

// Fingerprint is the 64-bit structural hash used as the cache key for
// descriptor-set layouts, pipeline layouts, and attachment reuse (spec
// §3 "Fingerprint"). It is computed by folding integer fields with a
// non-commutative XOR mix, grounded on BindlessVk's
// LayoutAllocator::hash_descriptor_set_layout_info /
// hash_pipeline_layout_info.
type Fingerprint uint64

// foldHash XOR-mixes v into the running hash the way the source does:
// hash ^= hash_t(hash, v), where hash_t folds the previous hash with the
// new value through a multiplicative mix. We keep the XOR-fold contract
// (same observable inputs -> same fingerprint) but widen the mix itself
// to reduce accidental collisions, per the §9 "correctness upgrade"
// instruction — this is not a library hash because none exists anywhere
// in the retrieved corpus for this kind of structural fingerprinting
// (see DESIGN.md).
func foldHash(h Fingerprint, v uint64) Fingerprint {
	x := uint64(h) ^ v
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return h ^ Fingerprint(x)
}

// DescriptorBindingDesc mirrors a single vk.DescriptorSetLayoutBinding
// plus its extended binding-flags entry.
type DescriptorBindingDesc struct {
	Binding         uint32
	DescriptorType  uint32
	DescriptorCount uint32
	StageFlags      uint32
	BindingFlags    uint32
	// ImmutableSamplers must be empty: layouts carrying immutable
	// samplers are rejected by the layout allocator.
	ImmutableSamplers bool
}

// sortedBindings returns bindings normalized by ascending Binding index
// so permutation-equivalent binding lists fingerprint identically, per
// spec §9's "normalize binding lists (sort by binding index)" guidance.
func sortedBindings(bindings []DescriptorBindingDesc) []DescriptorBindingDesc {
	out := make([]DescriptorBindingDesc, len(bindings))
	copy(out, bindings)
	sort.Slice(out, func(i, j int) bool { return out[i].Binding < out[j].Binding })
	return out
}

// fingerprintDescriptorSetLayout computes the fingerprint for a
// descriptor-set-layout creation request, grounded on
// LayoutAllocator::hash_descriptor_set_layout_info.
func fingerprintDescriptorSetLayout(layoutFlags uint32, bindings []DescriptorBindingDesc) Fingerprint {
	sorted := sortedBindings(bindings)
	var h Fingerprint
	h = foldHash(h, uint64(layoutFlags))
	for _, b := range sorted {
		h = foldHash(h, uint64(b.Binding))
		h = foldHash(h, uint64(b.StageFlags))
		h = foldHash(h, uint64(b.DescriptorType))
		h = foldHash(h, uint64(b.DescriptorCount))
	}
	for _, b := range sorted {
		h = foldHash(h, uint64(b.BindingFlags))
	}
	return h
}

// fingerprintPipelineLayout computes the fingerprint for a pipeline
// layout from up to three descriptor-set-layout fingerprints plus
// creation flags, grounded on LayoutAllocator::hash_pipeline_layout_info.
func fingerprintPipelineLayout(flags uint32, graph, pass, shader Fingerprint) Fingerprint {
	var h Fingerprint
	h = foldHash(h, uint64(flags))
	h = foldHash(h, uint64(graph))
	h = foldHash(h, uint64(pass))
	h = foldHash(h, uint64(shader))
	return h
}

// fingerprintAttachment folds the stable identity of a color/depth
// attachment blueprint (name + format + extent class) into a
// Fingerprint used for attachment-reuse lookups.
func fingerprintAttachment(name string, format uint32, sizeType SizeType, w, h float32) Fingerprint {
	var fp Fingerprint
	for _, r := range name {
		fp = foldHash(fp, uint64(r))
	}
	fp = foldHash(fp, uint64(format))
	fp = foldHash(fp, uint64(sizeType))
	fp = foldHash(fp, uint64(uint32(w*1000)))
	fp = foldHash(fp, uint64(uint32(h*1000)))
	return fp
}
