package xevent

// XIEventType is the evtype of an XInput2 generic event.
type XIEventType uint16

// XInput2 event types.
const (
	XIDeviceChanged    XIEventType = 1
	XIKeyPress         XIEventType = 2
	XIKeyRelease       XIEventType = 3
	XIButtonPress      XIEventType = 4
	XIButtonRelease    XIEventType = 5
	XIMotion           XIEventType = 6
	XIEnter            XIEventType = 7
	XILeave            XIEventType = 8
	XIFocusIn          XIEventType = 9
	XIFocusOut         XIEventType = 10
	XIHierarchyChanged XIEventType = 11
	XIPropertyEvent    XIEventType = 12
	XITouchBegin       XIEventType = 18
	XITouchUpdate      XIEventType = 19
	XITouchEnd         XIEventType = 20
)

func (t XIEventType) String() string {
	switch t {
	case XIDeviceChanged:
		return "DeviceChanged"
	case XIKeyPress:
		return "KeyPress"
	case XIKeyRelease:
		return "KeyRelease"
	case XIButtonPress:
		return "ButtonPress"
	case XIButtonRelease:
		return "ButtonRelease"
	case XIMotion:
		return "Motion"
	case XIEnter:
		return "Enter"
	case XILeave:
		return "Leave"
	case XIFocusIn:
		return "FocusIn"
	case XIFocusOut:
		return "FocusOut"
	case XIHierarchyChanged:
		return "HierarchyChanged"
	case XIPropertyEvent:
		return "Property"
	case XITouchBegin:
		return "TouchBegin"
	case XITouchUpdate:
		return "TouchUpdate"
	case XITouchEnd:
		return "TouchEnd"
	default:
		return "Unknown"
	}
}

// IsDeviceEvent reports whether t is carried in the XIDeviceEvent layout.
func (t XIEventType) IsDeviceEvent() bool {
	switch t {
	case XIKeyPress, XIKeyRelease, XIButtonPress, XIButtonRelease, XIMotion,
		XITouchBegin, XITouchUpdate, XITouchEnd:
		return true
	}
	return false
}

// XIAllDevices and XIAllMasterDevices are the wildcard device ids.
const (
	XIAllDevices       uint16 = 0
	XIAllMasterDevices uint16 = 1
)

// XIPointerEmulated is set on device events synthesised from touch input.
const XIPointerEmulated uint32 = 1 << 16

// DeviceEvent is an XI2 key, button, motion or touch event.
type DeviceEvent struct {
	Header
	Extension uint8
	Type      XIEventType
	DeviceID  uint16
	SourceID  uint16
	Time      Timestamp
	Detail    uint32
	Root      Window
	Event     Window
	Child     Window
	RootX     float64
	RootY     float64
	EventX    float64
	EventY    float64
	Flags     uint32
	Mods      uint32
}

func (*DeviceEvent) Opcode() Opcode { return OpGeGeneric }

// DeviceCrossingEvent is an XI2 Enter or Leave.
type DeviceCrossingEvent struct {
	Header
	Extension  uint8
	Leave      bool
	DeviceID   uint16
	SourceID   uint16
	Time       Timestamp
	Mode       CrossingMode
	Detail     CrossingDetail
	Root       Window
	Event      Window
	Child      Window
	RootX      float64
	RootY      float64
	EventX     float64
	EventY     float64
	SameScreen bool
	Focus      bool
}

func (*DeviceCrossingEvent) Opcode() Opcode { return OpGeGeneric }

// Hierarchy change flags.
const (
	XIMasterAdded    uint32 = 1 << 0
	XIMasterRemoved  uint32 = 1 << 1
	XISlaveAdded     uint32 = 1 << 2
	XISlaveRemoved   uint32 = 1 << 3
	XISlaveAttached  uint32 = 1 << 4
	XISlaveDetached  uint32 = 1 << 5
	XIDeviceEnabled  uint32 = 1 << 6
	XIDeviceDisabled uint32 = 1 << 7
)

// HierarchyInfo describes one device in a hierarchy change.
type HierarchyInfo struct {
	DeviceID   uint16
	Attachment uint16
	Use        uint8
	Enabled    bool
	Flags      uint32
}

// HierarchyEvent reports that devices were added, removed, attached or
// detached.
type HierarchyEvent struct {
	Header
	Extension uint8
	DeviceID  uint16
	Time      Timestamp
	Flags     uint32
	Infos     []HierarchyInfo
}

func (*HierarchyEvent) Opcode() Opcode { return OpGeGeneric }

// DeviceChangeReason is the reason field of an XIDeviceChanged event.
type DeviceChangeReason uint8

const (
	// SlaveSwitch means the master device now reflects a different slave.
	SlaveSwitch DeviceChangeReason = 1
	// DeviceChange means the device's classes changed.
	DeviceChange DeviceChangeReason = 2
)

// DeviceChangedEvent is an XI2 DeviceChanged.
type DeviceChangedEvent struct {
	Header
	Extension uint8
	DeviceID  uint16
	SourceID  uint16
	Time      Timestamp
	Reason    DeviceChangeReason
}

func (*DeviceChangedEvent) Opcode() Opcode { return OpGeGeneric }

// GenericEvent is a GE payload no decoder recognised.
type GenericEvent struct {
	Header
	Extension uint8
	EvType    uint16
	Data      []byte
}

func (*GenericEvent) Opcode() Opcode { return OpGeGeneric }
