package bindlessvk

import (
	"fmt"
	"runtime"

	vk "github.com/vulkan-go/vulkan"
)

// Kind classifies an Error per spec §7's error taxonomy for the
// render-graph core.
type Kind int

const (
	// Internal covers any API error not categorized below.
	Internal Kind = iota
	// InvalidArgument is raised by immutable-sampler layouts, transient
	// attachments with fewer than 2 samples, and blueprint lists with no
	// backbuffer to mark.
	InvalidArgument
	// OutOfSpace is raised when a FragmentedBuffer cannot satisfy grab.
	OutOfSpace
	// OutOfDate is raised when acquire/present report the swapchain is
	// stale; recovered locally by invalidating the swapchain.
	OutOfDate
	// SurfaceLost mirrors OutOfDate for a lost (not merely stale) surface.
	SurfaceLost
	// DeviceLost is fatal; no recovery is attempted.
	DeviceLost
	// Unsupported is raised at init when no device/memory type qualifies,
	// and at build time for the relative-to-other size class.
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case OutOfSpace:
		return "OutOfSpace"
	case OutOfDate:
		return "OutOfDate"
	case SurfaceLost:
		return "SurfaceLost"
	case DeviceLost:
		return "DeviceLost"
	case Unsupported:
		return "Unsupported"
	default:
		return "Internal"
	}
}

// Error wraps a vk.Result (or a bare message) with a Kind and the call
// site that raised it, the way the teacher's newError attaches a stack
// frame to every Vulkan failure.
type Error struct {
	Kind   Kind
	Result vk.Result
	Frame  string
	msg    string
}

func (e *Error) Error() string {
	if e.msg != "" {
		return fmt.Sprintf("bindlessvk: %s: %s (at %s)", e.Kind, e.msg, e.Frame)
	}
	return fmt.Sprintf("bindlessvk: %s: vulkan result %d (at %s)", e.Kind, e.Result, e.Frame)
}

func (e *Error) Unwrap() error {
	if e.Result != vk.Success {
		return fmt.Errorf("vulkan result %d", e.Result)
	}
	return nil
}

func callerFrame(skip int) string {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	name := "unknown"
	if fn != nil {
		name = fn.Name()
	}
	return fmt.Sprintf("%s (%s:%d)", name, file, line)
}

// isError reports whether ret indicates failure.
func isError(ret vk.Result) bool {
	return ret != vk.Success
}

// vkErr classifies a vk.Result into a tagged Error, folding
// out-of-date/suboptimal into Kind OutOfDate per spec §7, and device
// loss into Kind DeviceLost.
func vkErr(ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	k := Internal
	switch ret {
	case vk.ErrorOutOfDate, vk.Suboptimal:
		k = OutOfDate
	case vk.ErrorSurfaceLost:
		k = SurfaceLost
	case vk.ErrorDeviceLost:
		k = DeviceLost
	}
	return &Error{Kind: k, Result: ret, Frame: callerFrame(1)}
}

func newErrorf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), Frame: callerFrame(1)}
}

// orPanic is the teacher's choke point: any non-nil error during
// construction aborts with a panic that surfaces through checkErr at the
// nearest deferred recovery, rather than being silently swallowed.
func orPanic(err error) {
	if err != nil {
		panic(err)
	}
}

// checkErr recovers a panic raised by orPanic into a named error return,
// preserving the teacher's defer checkErr(&err) idiom.
func checkErr(err *error) {
	if v := recover(); v != nil {
		if e, ok := v.(error); ok {
			*err = e
			return
		}
		*err = fmt.Errorf("%+v", v)
	}
}

// IsOutOfDate reports whether err represents a recoverable swapchain
// invalidation.
func IsOutOfDate(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == OutOfDate || e.Kind == SurfaceLost
}

// IsDeviceLost reports whether err is the fatal DeviceLost kind.
func IsDeviceLost(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == DeviceLost
}

// VkErr exports vkErr for callers outside the package (host
// applications driving their own Vulkan calls against library-owned
// handles, e.g. a pipeline built against a Pass's layout).
func VkErr(ret vk.Result) error {
	return vkErr(ret)
}
