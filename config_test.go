package bindlessvk

import "testing"

func TestPropertyBagResolveFindsOwnKey(t *testing.T) {
	bag := NewPropertyBag("child", 4)
	bag.Ints["frames"] = 3

	resolved, err := bag.Resolve("frames")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved != bag {
		t.Fatal("Resolve should return the bag itself when it declares the key")
	}
}

func TestPropertyBagResolveWalksParentChain(t *testing.T) {
	parent := NewPropertyBag("parent", 4)
	parent.Strings["appName"] = "demo"

	child := NewPropertyBag("child", 4)
	child.Parent = parent

	if !child.HasParent() {
		t.Fatal("HasParent() should be true once Parent is set")
	}

	resolved, err := child.Resolve("appName")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved != parent {
		t.Fatal("Resolve should walk up to the parent that declares the key")
	}
}

func TestPropertyBagResolveMissingKeyFails(t *testing.T) {
	bag := NewPropertyBag("root", 1)
	if _, err := bag.Resolve("missing"); err == nil {
		t.Fatal("Resolve of an undeclared key with no parent should fail")
	}
}

func TestDefaultDeviceConfigRequiresDynamicRenderingAndDescriptorIndexing(t *testing.T) {
	cfg := DefaultDeviceConfig("demo")
	want := map[string]bool{
		"VK_KHR_swapchain":            false,
		"VK_KHR_dynamic_rendering":    false,
		"VK_EXT_descriptor_indexing": false,
	}
	for _, ext := range cfg.DeviceExtensions {
		want[ext] = true
	}
	for ext, found := range want {
		if !found {
			t.Errorf("DefaultDeviceConfig is missing required extension %q", ext)
		}
	}
	if cfg.InFlightCount != InFlightCount {
		t.Errorf("DefaultDeviceConfig.InFlightCount = %d, want %d", cfg.InFlightCount, InFlightCount)
	}
}

func TestDefaultDescriptorPoolPolicy(t *testing.T) {
	p := DefaultDescriptorPoolPolicy()
	if p.MinPerType == 0 || p.MaxSets == 0 {
		t.Fatalf("DefaultDescriptorPoolPolicy should not leave either field zero: %+v", p)
	}
}
