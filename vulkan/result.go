package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"

	"github.com/vkngwrapper/frameloop/gpu"
)

func toResult(res common.VkResult) gpu.Result {
	switch res {
	case core1_0.VKSuccess:
		return gpu.Success
	case khr_swapchain.VKSuboptimal:
		return gpu.Suboptimal
	case khr_swapchain.VKErrorOutOfDate:
		return gpu.OutOfDate
	case khr_surface.VKErrorSurfaceLost:
		return gpu.SurfaceLost
	case core1_0.VKErrorDeviceLost:
		return gpu.DeviceLost
	case core1_0.VKTimeout:
		return gpu.Timeout
	}
	return gpu.Unknown
}

// checkResult converts a vkngwrapper result pair. Errors for results the
// render loop distinguishes are marked with the matching gpu sentinel.
func checkResult(res common.VkResult, err error, op string) (gpu.Result, error) {
	r := toResult(res)
	if err == nil {
		return r, nil
	}

	switch r {
	case gpu.OutOfDate, gpu.SurfaceLost, gpu.DeviceLost:
		err = errors.Mark(err, gpu.ResultError(r))
	}
	return r, errors.Wrapf(err, "%s (%s)", op, res)
}
