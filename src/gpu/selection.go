package gpu

import (
	"sort"

	vk "github.com/goki/vulkan"
)

type DeviceType int

const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeIntegrated
	DeviceTypeDiscrete
	DeviceTypeVirtual
	DeviceTypeCPU
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeIntegrated:
		return "integrated"
	case DeviceTypeDiscrete:
		return "discrete"
	case DeviceTypeVirtual:
		return "virtual"
	case DeviceTypeCPU:
		return "cpu"
	default:
		return "other"
	}
}

// DeviceInfo describes one enumerated physical device.
type DeviceInfo struct {
	Index      int
	Name       string
	Type       DeviceType
	APIVersion uint32
}

// QueueFamilyInfo describes one queue family of the chosen device.
type QueueFamilyInfo struct {
	Index    int
	Count    uint32
	Graphics bool
	Compute  bool
	Transfer bool
}

// DeviceSelector picks a physical device out of the enumerated ones and
// returns its position in the slice.
type DeviceSelector func(devices []DeviceInfo) (int, error)

// QueueSelector picks the queue family used for both submit and present.
type QueueSelector func(families []QueueFamilyInfo) (int, error)

// FirstDevice takes whatever the loader enumerated first.
func FirstDevice(devices []DeviceInfo) (int, error) {
	if len(devices) == 0 {
		return 0, ErrNoDevices
	}
	return 0, nil
}

var deviceRank = map[DeviceType]int{
	DeviceTypeDiscrete:   0,
	DeviceTypeIntegrated: 1,
	DeviceTypeVirtual:    2,
	DeviceTypeCPU:        3,
	DeviceTypeOther:      4,
}

// PreferDiscrete ranks discrete over integrated over virtual over cpu
// devices. Ties keep enumeration order.
func PreferDiscrete(devices []DeviceInfo) (int, error) {
	if len(devices) == 0 {
		return 0, ErrNoDevices
	}
	order := make([]int, len(devices))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return deviceRank[devices[order[a]].Type] < deviceRank[devices[order[b]].Type]
	})
	return order[0], nil
}

func FirstGraphicsFamily(families []QueueFamilyInfo) (int, error) {
	for i, f := range families {
		if f.Graphics && f.Count > 0 {
			return i, nil
		}
	}
	return 0, ErrNoQueueFamily
}

// SelectorByName maps a configuration value to a device selector.
func SelectorByName(name string) (DeviceSelector, bool) {
	switch name {
	case "", "first":
		return FirstDevice, true
	case "discrete":
		return PreferDiscrete, true
	default:
		return nil, false
	}
}

func deviceType(t vk.PhysicalDeviceType) DeviceType {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return DeviceTypeIntegrated
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return DeviceTypeDiscrete
	case vk.PhysicalDeviceTypeVirtualGpu:
		return DeviceTypeVirtual
	case vk.PhysicalDeviceTypeCpu:
		return DeviceTypeCPU
	default:
		return DeviceTypeOther
	}
}

func queueFamily(index int, props vk.QueueFamilyProperties) QueueFamilyInfo {
	props.Deref()
	flags := vk.QueueFlagBits(props.QueueFlags)
	return QueueFamilyInfo{
		Index:    index,
		Count:    props.QueueCount,
		Graphics: flags&vk.QueueGraphicsBit != 0,
		Compute:  flags&vk.QueueComputeBit != 0,
		Transfer: flags&vk.QueueTransferBit != 0,
	}
}

func describeDevices(devices []vk.PhysicalDevice) []DeviceInfo {
	infos := make([]DeviceInfo, len(devices))
	for i, pd := range devices {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &props)
		props.Deref()
		infos[i] = DeviceInfo{
			Index:      i,
			Name:       vk.ToString(props.DeviceName[:]),
			Type:       deviceType(props.DeviceType),
			APIVersion: props.ApiVersion,
		}
	}
	return infos
}

func describeQueueFamilies(pd vk.PhysicalDevice) []QueueFamilyInfo {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, props)

	families := make([]QueueFamilyInfo, count)
	for i := range props {
		families[i] = queueFamily(i, props[i])
	}
	return families
}
