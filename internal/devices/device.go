// Package devices enumerates kernel input devices and tracks the per-device
// state the event source consults: scroll-class validity, blocked devices,
// and the touch pointer-emulation filter. It also reacts to hotplug by
// diffing enumerations and telling listeners what changed.
package devices

import (
	"strings"
)

// Kind is a bit set of input capabilities.
type Kind uint8

const (
	KindKeyboard Kind = 1 << iota
	KindPointer
	KindTouchpad
	KindTouchscreen
)

var kindNames = []struct {
	k    Kind
	name string
}{
	{KindKeyboard, "keyboard"},
	{KindPointer, "pointer"},
	{KindTouchpad, "touchpad"},
	{KindTouchscreen, "touchscreen"},
}

func (k Kind) String() string {
	if k == 0 {
		return "other"
	}
	var parts []string
	for _, n := range kindNames {
		if k&n.k != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Has reports whether every bit of other is set.
func (k Kind) Has(other Kind) bool { return k&other == other }

// Bus is how a device is attached.
type Bus int

const (
	BusUnknown Bus = iota
	BusUSB
	BusBluetooth
	BusPS2
	BusInternal
	BusVirtual
)

func (b Bus) String() string {
	switch b {
	case BusUSB:
		return "usb"
	case BusBluetooth:
		return "bluetooth"
	case BusPS2:
		return "ps2"
	case BusInternal:
		return "internal"
	case BusVirtual:
		return "virtual"
	default:
		return "unknown"
	}
}

// busFromCode maps the kernel's BUS_* value as printed in the I: line.
func busFromCode(code string) Bus {
	switch strings.ToUpper(code) {
	case "0003":
		return BusUSB
	case "0005":
		return BusBluetooth
	case "0011":
		return BusPS2
	case "0019", "0018", "001F":
		return BusInternal
	case "0006":
		return BusVirtual
	default:
		return BusUnknown
	}
}

// busFromPhys guesses the bus from the physical path when the code is not
// conclusive.
func busFromPhys(phys string) Bus {
	phys = strings.ToLower(phys)
	switch {
	case strings.HasPrefix(phys, "usb-"):
		return BusUSB
	case strings.Contains(phys, "bluetooth"), strings.HasPrefix(phys, "bt-"):
		return BusBluetooth
	case strings.HasPrefix(phys, "isa"), strings.Contains(phys, "i8042"), strings.Contains(phys, "serio"):
		return BusPS2
	case phys == "", strings.HasPrefix(phys, "virtual"):
		return BusVirtual
	}
	return BusUnknown
}

// Device is one kernel input device.
type Device struct {
	Name     string   `json:"name"`
	Phys     string   `json:"phys,omitempty"`
	Sysfs    string   `json:"sysfs,omitempty"`
	Node     string   `json:"node,omitempty"`
	Handlers []string `json:"handlers,omitempty"`
	Bus      Bus      `json:"bus"`
	Vendor   uint16   `json:"vendor"`
	Product  uint16   `json:"product"`
	Version  uint16   `json:"version"`
	Kind     Kind     `json:"kind"`
	Readable bool     `json:"readable"`
}

// Key identifies a device across enumerations.
func (d Device) Key() string {
	if d.Sysfs != "" {
		return d.Sysfs
	}
	return d.Name + "@" + d.Phys
}
