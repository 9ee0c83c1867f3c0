package gpu

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	ValidationLayer = "VK_LAYER_KHRONOS_validation"
	EngineName      = "umisu"
)

var DeviceExtensions = []string{
	"VK_KHR_swapchain",
	"VK_KHR_synchronization2",
	"VK_KHR_dynamic_rendering",
}

// Window is what the context needs from the platform window.
type Window interface {
	Title() string
	Width() uint32
	Height() uint32
	RequiredInstanceExtensions() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
	// InstanceProcAddr returns the vkGetInstanceProcAddr the loader was
	// initialised with.
	InstanceProcAddr() unsafe.Pointer
}

type options struct {
	logger         *zap.Logger
	validation     bool
	deviceSelector DeviceSelector
	queueSelector  QueueSelector
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithValidation toggles the Khronos validation layer. It is on by default
// and silently skipped when the layer is not installed.
func WithValidation(enabled bool) Option {
	return func(o *options) { o.validation = enabled }
}

func WithDeviceSelector(s DeviceSelector) Option {
	return func(o *options) {
		if s != nil {
			o.deviceSelector = s
		}
	}
}

func WithQueueSelector(s QueueSelector) Option {
	return func(o *options) {
		if s != nil {
			o.queueSelector = s
		}
	}
}

// Context is the Vulkan presentation context: instance, physical and
// logical device, one queue and the window surface. After Create it is
// read-only apart from the resources handed out through render.Device.
type Context struct {
	log  *zap.Logger
	opts options
	undo teardown

	instance       vk.Instance
	physicalDevice vk.PhysicalDevice
	deviceInfo     DeviceInfo
	device         vk.Device
	queue          vk.Queue
	queueFamily    uint32
	surface        vk.Surface
	cmds           deviceCommands

	swapchains *handleTable[swapchainEntry]
	images     *handleTable[vk.Image]
	views      *handleTable[vk.ImageView]
	pools      *handleTable[poolEntry]
	buffers    *handleTable[vk.CommandBuffer]
	fences     *handleTable[vk.Fence]
	semaphores *handleTable[vk.Semaphore]

	closed bool
}

// Create builds the context in order: instance, physical device and queue
// family, logical device and queue, device commands, surface. If any step fails, everything
// created before it is released in reverse order and the error is returned.
func Create(window Window, opts ...Option) (*Context, error) {
	o := options{
		logger:         zap.NewNop(),
		validation:     true,
		deviceSelector: FirstDevice,
		queueSelector:  FirstGraphicsFamily,
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Context{
		log:        o.logger.Named("gpu"),
		opts:       o,
		swapchains: newHandleTable[swapchainEntry](),
		images:     newHandleTable[vk.Image](),
		views:      newHandleTable[vk.ImageView](),
		pools:      newHandleTable[poolEntry](),
		buffers:    newHandleTable[vk.CommandBuffer](),
		fences:     newHandleTable[vk.Fence](),
		semaphores: newHandleTable[vk.Semaphore](),
	}
	err := c.build([]createStep{
		{"instance", func() error { return c.createInstance(window) }},
		{"physical device", c.selectPhysicalDevice},
		{"device", c.createDevice},
		{"device commands", func() error { return c.loadCommands(window) }},
		{"surface", func() error { return c.createSurface(window) }},
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("vulkan context ready",
		zap.String("device", c.deviceInfo.Name),
		zap.Stringer("type", c.deviceInfo.Type),
		zap.Uint32("queue_family", c.queueFamily))
	return c, nil
}

type createStep struct {
	name string
	run  func() error
}

// build runs steps in order. When one fails, whatever the earlier steps
// registered on the teardown stack is released newest first and the step's
// error is returned.
func (c *Context) build(steps []createStep) error {
	for _, step := range steps {
		if err := step.run(); err != nil {
			c.log.Error("context creation failed", zap.String("step", step.name), zap.Error(err))
			c.undo.run()
			return err
		}
		c.log.Debug("context step done", zap.String("step", step.name))
	}
	return nil
}

func (c *Context) createInstance(window Window) error {
	extensions := window.RequiredInstanceExtensions()
	var layers []string
	if c.opts.validation {
		if hasInstanceLayer(ValidationLayer) {
			layers = append(layers, ValidationLayer)
		} else {
			c.log.Warn("validation layer not available", zap.String("layer", ValidationLayer))
		}
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   safeString(window.Title()),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        safeString(EngineName),
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(1, 3, 0),
	}
	info := &vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     safeStrings(layers),
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}

	var instance vk.Instance
	if err := check(vk.CreateInstance(info, nil, &instance), "create instance"); err != nil {
		return err
	}
	c.instance = instance
	c.undo.push(func() { vk.DestroyInstance(instance, nil) })

	if err := vk.InitInstance(instance); err != nil {
		return errors.Wrap(err, "init instance")
	}
	c.log.Debug("instance created", zap.Strings("extensions", extensions), zap.Strings("layers", layers))
	return nil
}

func (c *Context) selectPhysicalDevice() error {
	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(c.instance, &count, nil), "enumerate physical devices"); err != nil {
		return err
	}
	if count == 0 {
		return ErrNoDevices
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := check(vk.EnumeratePhysicalDevices(c.instance, &count, devices), "enumerate physical devices"); err != nil {
		return err
	}

	infos := describeDevices(devices[:count])
	index, err := c.opts.deviceSelector(infos)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(infos) {
		return fmt.Errorf("device %d of %d: %w", index, len(infos), ErrNoSelection)
	}
	c.physicalDevice = devices[index]
	c.deviceInfo = infos[index]

	families := describeQueueFamilies(c.physicalDevice)
	family, err := c.opts.queueSelector(families)
	if err != nil {
		return err
	}
	if family < 0 || family >= len(families) {
		return fmt.Errorf("queue family %d of %d: %w", family, len(families), ErrNoSelection)
	}
	c.queueFamily = uint32(family)
	return nil
}

func (c *Context) createDevice() error {
	dynamicRendering := vk.PhysicalDeviceDynamicRenderingFeatures{
		SType:            vk.StructureTypePhysicalDeviceDynamicRenderingFeatures,
		DynamicRendering: vk.True,
	}
	dynamicRenderingRef, _ := dynamicRendering.PassRef()
	defer dynamicRendering.Free()
	sync2 := vk.PhysicalDeviceSynchronization2Features{
		SType:            vk.StructureTypePhysicalDeviceSynchronization2Features,
		PNext:            unsafe.Pointer(dynamicRenderingRef),
		Synchronization2: vk.True,
	}
	sync2Ref, _ := sync2.PassRef()
	defer sync2.Free()
	features := vk.PhysicalDeviceFeatures2{
		SType: vk.StructureTypePhysicalDeviceFeatures2,
		PNext: unsafe.Pointer(sync2Ref),
	}
	featuresRef, _ := features.PassRef()
	defer features.Free()

	info := &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		PNext:                unsafe.Pointer(featuresRef),
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: c.queueFamily,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}},
		EnabledExtensionCount:   uint32(len(DeviceExtensions)),
		PpEnabledExtensionNames: safeStrings(DeviceExtensions),
	}

	var device vk.Device
	if err := check(vk.CreateDevice(c.physicalDevice, info, nil, &device), "create device"); err != nil {
		return err
	}
	c.device = device
	c.undo.push(func() { vk.DestroyDevice(device, nil) })

	var queue vk.Queue
	vk.GetDeviceQueue(device, c.queueFamily, 0, &queue)
	c.queue = queue
	return nil
}

func (c *Context) loadCommands(window Window) error {
	cmds, err := loadDeviceCommands(window.InstanceProcAddr(), c.instance, c.device)
	if err != nil {
		return err
	}
	c.cmds = cmds
	return nil
}

func (c *Context) createSurface(window Window) error {
	surface, err := window.CreateSurface(c.instance)
	if err != nil {
		return err
	}
	c.surface = surface
	instance := c.instance
	c.undo.push(func() { vk.DestroySurface(instance, surface, nil) })
	return nil
}

// Close waits for the device to go idle, then destroys the surface, the
// device and the instance. Resources handed out through render.Device must
// be released before. Calling Close again is a no-op.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	err := check(vk.DeviceWaitIdle(c.device), "device wait idle")
	if leaked := c.live(); leaked > 0 {
		c.log.Warn("closing with live renderer resources", zap.Int("count", leaked))
	}
	c.undo.run()
	c.log.Info("vulkan context closed")
	return err
}

func (c *Context) live() int {
	return c.swapchains.len() + c.views.len() + c.pools.len() + c.fences.len() + c.semaphores.len()
}

func (c *Context) Instance() vk.Instance { return c.instance }

func (c *Context) PhysicalDevice() vk.PhysicalDevice { return c.physicalDevice }

func (c *Context) DeviceInfo() DeviceInfo { return c.deviceInfo }

func (c *Context) Device() vk.Device { return c.device }

func (c *Context) Queue() vk.Queue { return c.queue }

func (c *Context) QueueFamilyIndex() uint32 { return c.queueFamily }

func (c *Context) Surface() vk.Surface { return c.surface }

func hasInstanceLayer(name string) bool {
	var count uint32
	if vk.EnumerateInstanceLayerProperties(&count, nil) != vk.Success {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if vk.EnumerateInstanceLayerProperties(&count, layers) != vk.Success {
		return false
	}
	for _, layer := range layers {
		layer.Deref()
		if vk.ToString(layer.LayerName[:]) == name {
			return true
		}
	}
	return false
}

// safeString null-terminates s for the C side.
func safeString(s string) string {
	return s + "\x00"
}

func safeStrings(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}
