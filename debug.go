package bindlessvk

import (
	"fmt"
	"log"
	"os"

	vk "github.com/vulkan-go/vulkan"
)

// Source identifies who raised a debug message.
type Source int

const (
	SourceEngine Source = iota
	SourceValidationLayers
	SourceAllocator
)

func (s Source) String() string {
	switch s {
	case SourceValidationLayers:
		return "ValidationLayers"
	case SourceAllocator:
		return "Allocator"
	default:
		return "Engine"
	}
}

// Level is the severity of a debug message.
type Level int

const (
	LevelTrace Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "ERROR"
	}
}

// DebugSink receives the internal diagnostics the core emits (allocator
// traces, object names, command-buffer labels). No validation-layer
// callback is installed, so validation-layer messages do not reach it.
// The host supplies one; a
// *log.Logger-backed default is provided below (see DESIGN.md for why
// this stays on the standard library logger).
type DebugSink interface {
	OnDebugMessage(source Source, level Level, message string, userData interface{})
}

// DebugSinkFunc adapts a function to a DebugSink.
type DebugSinkFunc func(source Source, level Level, message string, userData interface{})

func (f DebugSinkFunc) OnDebugMessage(source Source, level Level, message string, userData interface{}) {
	f(source, level, message, userData)
}

// LogSink is the default DebugSink: one line per message through the
// standard library logger.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink builds a LogSink writing to stderr with a
// date|time|shortfile flag set.
func NewLogSink() *LogSink {
	return &LogSink{logger: log.New(os.Stderr, "bindlessvk: ", log.Ldate|log.Ltime|log.Lshortfile)}
}

func (s *LogSink) OnDebugMessage(source Source, level Level, message string, userData interface{}) {
	s.logger.Printf("[%s][%s] %s", source, level, message)
}

// allocatorCallback routes MemoryAllocator allocate/free notifications
// to the sink at Trace level.
func allocatorCallback(sink DebugSink, verb string, size vk.DeviceSize, memType uint32) {
	if sink == nil {
		return
	}
	sink.OnDebugMessage(SourceAllocator, LevelTrace,
		fmt.Sprintf("%s: %d (memory type %d)", verb, size, memType), nil)
}

// SetObjectName attaches a debug name to a Vulkan object for
// validation-layer messages, the feature BindlessVk's DebugUtils.hpp
// provides that the distilled spec only alludes to via the
// "debug-name"/"debug labels" fields on Buffer and Pass (§3, §4.7). The
// vulkan-go binding used by the teacher does not expose
// VK_EXT_debug_utils, so this degrades to a sink message instead of a
// vkSetDebugUtilsObjectNameEXT call; real validation-layer naming is a
// one-line swap once that extension is wired into the loader.
func SetObjectName(sink DebugSink, kind string, handle uint64, name string) {
	if sink == nil || name == "" {
		return
	}
	sink.OnDebugMessage(SourceEngine, LevelTrace,
		fmt.Sprintf("naming %s %#x as %q", kind, handle, name), nil)
}

// DebugLabel brackets a section of command-buffer recording the way
// BindlessVk's RenderNode labels prepare/compute/graphics/barrier
// sections. Without VK_EXT_debug_utils in
// the bound vulkan-go package, labels are surfaced through the sink
// rather than vkCmdBeginDebugUtilsLabelEXT; BeginDebugLabel/EndDebugLabel
// keep the call sites symmetric so wiring the real extension later is a
// localized change.
func BeginDebugLabel(sink DebugSink, name string) {
	if sink == nil {
		return
	}
	sink.OnDebugMessage(SourceEngine, LevelTrace, fmt.Sprintf("begin label %q", name), nil)
}

func EndDebugLabel(sink DebugSink) {
	if sink == nil {
		return
	}
	sink.OnDebugMessage(SourceEngine, LevelTrace, "end label", nil)
}
