// Package vulkan implements gpu.Device on a vkngwrapper Vulkan 1.0 device
// presenting to an SDL2 window surface.
package vulkan

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/ext_debug_utils"
	"github.com/vkngwrapper/extensions/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/khr_portability_subset"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2"

	"github.com/vkngwrapper/frameloop"
	"github.com/vkngwrapper/frameloop/gpu"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

var deviceExtensions = []string{khr_swapchain.ExtensionName}

type Options struct {
	ApplicationName string
	// Validation enables the Khronos validation layer and forwards its
	// messages to the frameloop logger.
	Validation bool
}

// Backend owns the instance, surface, logical device and queues for one
// window.
type Backend struct {
	window *sdl.Window
	loader core.Loader

	instance       core1_0.Instance
	messenger      ext_debug_utils.DebugUtilsMessenger
	surface        khr_surface.Surface
	physicalDevice core1_0.PhysicalDevice
	device         core1_0.Device

	graphicsFamily int
	presentFamily  int
	graphicsQueue  core1_0.Queue
	presentQueue   core1_0.Queue
	commandPool    core1_0.CommandPool

	swapchainExtension khr_swapchain.Extension

	rel gpu.Releaser
}

var _ gpu.Device = (*Backend)(nil)

// New creates a device able to render to and present on window.
func New(window *sdl.Window, opts Options) (_ *Backend, err error) {
	b := &Backend{window: window}
	defer b.rel.ReleaseOnError(&err)

	b.loader, err = core.CreateLoaderFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "create vulkan loader")
	}

	if err = b.createInstance(opts); err != nil {
		return nil, err
	}

	surfaceLoader := khr_surface.CreateExtensionFromInstance(b.instance)
	b.surface, err = vkng_sdl2.CreateSurface(b.instance, surfaceLoader, window)
	if err != nil {
		return nil, errors.Wrap(err, "create window surface")
	}
	b.rel.AddFunc(func() { b.surface.Destroy(nil) })

	if err = b.pickPhysicalDevice(); err != nil {
		return nil, err
	}
	if err = b.createLogicalDevice(); err != nil {
		return nil, err
	}

	b.commandPool, _, err = b.device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: b.graphicsFamily,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create command pool")
	}
	b.rel.AddFunc(func() { b.commandPool.Destroy(nil) })

	b.swapchainExtension = khr_swapchain.CreateExtensionFromDevice(b.device)
	return b, nil
}

func (b *Backend) createInstance(opts Options) error {
	name := opts.ApplicationName
	if name == "" {
		name = "frameloop"
	}
	info := core1_0.InstanceCreateInfo{
		ApplicationName:    name,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "frameloop",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_0,
	}

	available, _, err := b.loader.AvailableExtensions()
	if err != nil {
		return errors.Wrap(err, "list instance extensions")
	}
	for _, ext := range b.window.VulkanGetInstanceExtensions() {
		if _, ok := available[ext]; !ok {
			return errors.Newf("window requires missing instance extension %s", ext)
		}
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, ext)
	}

	if _, ok := available[khr_portability_enumeration.ExtensionName]; ok {
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		info.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	validation := opts.Validation
	if validation {
		layers, _, err := b.loader.AvailableLayers()
		if err != nil {
			return errors.Wrap(err, "list instance layers")
		}
		_, hasLayer := layers[validationLayer]
		_, hasDebugUtils := available[ext_debug_utils.ExtensionName]
		if !hasLayer || !hasDebugUtils {
			frameloop.Logger().Warn("validation requested but not available", "layer", validationLayer)
			validation = false
		}
	}
	if validation {
		info.EnabledLayerNames = append(info.EnabledLayerNames, validationLayer)
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, ext_debug_utils.ExtensionName)
		info.Next = messengerInfo()
	}

	b.instance, _, err = b.loader.CreateInstance(nil, info)
	if err != nil {
		return errors.Wrap(err, "create instance")
	}
	b.rel.AddFunc(func() { b.instance.Destroy(nil) })

	if validation {
		debugUtils := ext_debug_utils.CreateExtensionFromInstance(b.instance)
		b.messenger, _, err = debugUtils.CreateDebugUtilsMessenger(b.instance, nil, messengerInfo())
		if err != nil {
			return errors.Wrap(err, "create debug messenger")
		}
		b.rel.AddFunc(func() { b.messenger.Destroy(nil) })
	}
	return nil
}

func messengerInfo() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning | ext_debug_utils.SeverityInfo,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    logValidation,
	}
}

func logValidation(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	level := slog.LevelDebug
	switch {
	case severity&ext_debug_utils.SeverityError != 0:
		level = slog.LevelError
	case severity&ext_debug_utils.SeverityWarning != 0:
		level = slog.LevelWarn
	}
	frameloop.Logger().Log(context.Background(), level, data.Message, "type", msgType)
	return false
}

type queueFamilies struct {
	graphics *int
	present  *int
}

func (q queueFamilies) complete() bool {
	return q.graphics != nil && q.present != nil
}

func (b *Backend) findQueueFamilies(pd core1_0.PhysicalDevice) (queueFamilies, error) {
	var families queueFamilies
	for i, family := range pd.QueueFamilyProperties() {
		if family.QueueFlags&core1_0.QueueGraphics != 0 && families.graphics == nil {
			idx := i
			families.graphics = &idx
		}

		supported, _, err := b.surface.PhysicalDeviceSurfaceSupport(pd, i)
		if err != nil {
			return families, errors.Wrapf(err, "query present support for queue family %d", i)
		}
		if supported && families.present == nil {
			idx := i
			families.present = &idx
		}

		if families.complete() {
			break
		}
	}
	return families, nil
}

func (b *Backend) suitable(pd core1_0.PhysicalDevice) bool {
	families, err := b.findQueueFamilies(pd)
	if err != nil || !families.complete() {
		return false
	}

	extensions, _, err := pd.EnumerateDeviceExtensionProperties()
	if err != nil {
		return false
	}
	for _, ext := range deviceExtensions {
		if _, ok := extensions[ext]; !ok {
			return false
		}
	}

	formats, _, err := b.surface.PhysicalDeviceSurfaceFormats(pd)
	if err != nil || len(formats) == 0 {
		return false
	}
	modes, _, err := b.surface.PhysicalDeviceSurfacePresentModes(pd)
	return err == nil && len(modes) > 0
}

func (b *Backend) pickPhysicalDevice() error {
	devices, _, err := b.instance.EnumeratePhysicalDevices()
	if err != nil {
		return errors.Wrap(err, "enumerate physical devices")
	}

	for _, pd := range devices {
		if b.suitable(pd) {
			b.physicalDevice = pd
			break
		}
	}
	if b.physicalDevice == nil {
		return errors.Newf("none of %d physical devices can present to the surface", len(devices))
	}

	if props, err := b.physicalDevice.Properties(); err == nil {
		frameloop.Logger().Info("physical device selected", "name", props.DeviceName)
	}
	return nil
}

func (b *Backend) createLogicalDevice() error {
	families, err := b.findQueueFamilies(b.physicalDevice)
	if err != nil {
		return err
	}
	b.graphicsFamily, b.presentFamily = *families.graphics, *families.present

	unique := []int{b.graphicsFamily}
	if b.presentFamily != b.graphicsFamily {
		unique = append(unique, b.presentFamily)
	}
	var queueInfos []core1_0.DeviceQueueCreateInfo
	for _, family := range unique {
		queueInfos = append(queueInfos, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: family,
			QueuePriorities:  []float32{1.0},
		})
	}

	extensionNames := append([]string{}, deviceExtensions...)
	available, _, err := b.physicalDevice.EnumerateDeviceExtensionProperties()
	if err != nil {
		return errors.Wrap(err, "list device extensions")
	}
	if _, ok := available[khr_portability_subset.ExtensionName]; ok {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	b.device, _, err = b.physicalDevice.CreateDevice(nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queueInfos,
		EnabledFeatures:       &core1_0.PhysicalDeviceFeatures{},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return errors.Wrap(err, "create logical device")
	}
	b.rel.AddFunc(func() { b.device.Destroy(nil) })

	b.graphicsQueue = b.device.GetQueue(b.graphicsFamily, 0)
	b.presentQueue = b.device.GetQueue(b.presentFamily, 0)
	return nil
}

func (b *Backend) Device() core1_0.Device                 { return b.device }
func (b *Backend) PhysicalDevice() core1_0.PhysicalDevice { return b.physicalDevice }
func (b *Backend) GraphicsQueue() core1_0.Queue           { return b.graphicsQueue }
func (b *Backend) CommandPool() core1_0.CommandPool       { return b.commandPool }

// Destroy waits for the device to idle and releases everything New created.
// Chains and render targets must be destroyed first.
func (b *Backend) Destroy() {
	if b.device != nil {
		if _, err := b.device.WaitIdle(); err != nil {
			frameloop.Logger().Warn("wait idle before destroy", "err", err)
		}
	}
	b.rel.Release()
}
