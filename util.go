package bindlessvk

import vk "github.com/vulkan-go/vulkan"

// InstanceExtensions gets a list of instance extensions available on the platform.
func InstanceExtensions() (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumerateInstanceExtensionProperties("", &count, nil)
	orPanic(vkErr(ret))
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateInstanceExtensionProperties("", &count, list)
	orPanic(vkErr(ret))
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, err
}

// DeviceExtensions gets a list of extensions available on the provided physical device.
func DeviceExtensions(gpu vk.PhysicalDevice) (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil)
	orPanic(vkErr(ret))
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateDeviceExtensionProperties(gpu, "", &count, list)
	orPanic(vkErr(ret))
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, err
}

// ValidationLayers gets a list of validation layers available on the platform.
func ValidationLayers() (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumerateInstanceLayerProperties(&count, nil)
	orPanic(vkErr(ret))
	list := make([]vk.LayerProperties, count)
	ret = vk.EnumerateInstanceLayerProperties(&count, list)
	orPanic(vkErr(ret))
	for _, layer := range list {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, err
}

// hasExtension reports whether name is present in available.
func hasExtension(available []string, name string) bool {
	for _, a := range available {
		if a == name {
			return true
		}
	}
	return false
}

// filterSupported keeps only the entries of wanted that are present in
// available, the way the teacher's extensions.go intersects requested
// vs. enumerated extensions before passing them to vk.CreateInstance /
// vk.CreateDevice.
func filterSupported(wanted, available []string) []string {
	out := make([]string, 0, len(wanted))
	for _, w := range wanted {
		if hasExtension(available, w) {
			out = append(out, w)
		}
	}
	return out
}
