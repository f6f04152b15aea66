package bindlessvk

import (
	"os"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// LoadShaderModule reads a compiled SPIR-V binary from path and creates
// a vk.ShaderModule from it, grounded on the teacher's CoreShader
// (shader.go LoadShaderModule), adapted to return an error instead of
// exiting the process on failure.
func LoadShaderModule(device *Device, path string) (vk.ShaderModule, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return vk.NullShaderModule, err
	}

	var module vk.ShaderModule
	ret := vk.CreateShaderModule(device.Handle(), &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}, nil, &module)
	if isError(ret) {
		return vk.NullShaderModule, vkErr(ret)
	}
	return module, nil
}

// sliceUint32 reinterprets a SPIR-V byte blob as the uint32 words the
// API expects, the way the teacher's shader.go does for shader module
// creation.
func sliceUint32(data []byte) []uint32 {
	const wordSize = 4
	out := make([]uint32, len(data)/wordSize)
	src := unsafe.Pointer(&data[0])
	for i := range out {
		out[i] = *(*uint32)(unsafe.Pointer(uintptr(src) + uintptr(i*wordSize)))
	}
	return out
}
