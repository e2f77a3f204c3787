package xevent

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortEvent is returned when a wire payload is smaller than its layout.
var ErrShortEvent = errors.New("xevent: short event payload")

// XI2 wire layout sizes.
const (
	geHeaderSize       = 16
	deviceEventSize    = 80
	crossingEventSize  = 52
	hierarchyEventSize = 32
	hierarchyInfoSize  = 12
	deviceChangedSize  = 32
)

// DecodeGeneric decodes a GenericEvent (code 35) payload. Events whose
// extension opcode is xiOpcode are decoded into the XI2 variants; anything
// else becomes a *GenericEvent. Data is little-endian, as the connection
// negotiates LSB-first byte order.
func DecodeGeneric(data []byte, xiOpcode uint8) (Raw, error) {
	if len(data) < geHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortEvent, len(data))
	}
	le := binary.LittleEndian
	ext := data[1]
	hdr := Header{Seq: le.Uint16(data[2:4])}
	evtype := XIEventType(le.Uint16(data[8:10]))
	if xiOpcode == 0 || ext != xiOpcode {
		return &GenericEvent{Header: hdr, Extension: ext, EvType: uint16(evtype), Data: data}, nil
	}

	deviceID := le.Uint16(data[10:12])
	t := Timestamp(le.Uint32(data[12:16]))

	switch {
	case evtype.IsDeviceEvent():
		if len(data) < deviceEventSize {
			return nil, fmt.Errorf("%w: XI %s needs %d bytes, got %d", ErrShortEvent, evtype, deviceEventSize, len(data))
		}
		return &DeviceEvent{
			Header:    hdr,
			Extension: ext,
			Type:      evtype,
			DeviceID:  deviceID,
			Time:      t,
			Detail:    le.Uint32(data[16:20]),
			Root:      Window(le.Uint32(data[20:24])),
			Event:     Window(le.Uint32(data[24:28])),
			Child:     Window(le.Uint32(data[28:32])),
			RootX:     fixed1616(le.Uint32(data[32:36])),
			RootY:     fixed1616(le.Uint32(data[36:40])),
			EventX:    fixed1616(le.Uint32(data[40:44])),
			EventY:    fixed1616(le.Uint32(data[44:48])),
			SourceID:  le.Uint16(data[52:54]),
			Flags:     le.Uint32(data[56:60]),
			Mods:      le.Uint32(data[72:76]),
		}, nil

	case evtype == XIEnter || evtype == XILeave:
		if len(data) < crossingEventSize {
			return nil, fmt.Errorf("%w: XI %s needs %d bytes, got %d", ErrShortEvent, evtype, crossingEventSize, len(data))
		}
		return &DeviceCrossingEvent{
			Header:     hdr,
			Extension:  ext,
			Leave:      evtype == XILeave,
			DeviceID:   deviceID,
			Time:       t,
			SourceID:   le.Uint16(data[16:18]),
			Mode:       CrossingMode(data[18]),
			Detail:     CrossingDetail(data[19]),
			Root:       Window(le.Uint32(data[20:24])),
			Event:      Window(le.Uint32(data[24:28])),
			Child:      Window(le.Uint32(data[28:32])),
			RootX:      fixed1616(le.Uint32(data[32:36])),
			RootY:      fixed1616(le.Uint32(data[36:40])),
			EventX:     fixed1616(le.Uint32(data[40:44])),
			EventY:     fixed1616(le.Uint32(data[44:48])),
			SameScreen: data[48] != 0,
			Focus:      data[49] != 0,
		}, nil

	case evtype == XIHierarchyChanged:
		if len(data) < hierarchyEventSize {
			return nil, fmt.Errorf("%w: XI %s needs %d bytes, got %d", ErrShortEvent, evtype, hierarchyEventSize, len(data))
		}
		n := int(le.Uint16(data[20:22]))
		ev := &HierarchyEvent{
			Header:    hdr,
			Extension: ext,
			DeviceID:  deviceID,
			Time:      t,
			Flags:     le.Uint32(data[16:20]),
		}
		off := hierarchyEventSize
		for i := 0; i < n && off+hierarchyInfoSize <= len(data); i++ {
			b := data[off : off+hierarchyInfoSize]
			ev.Infos = append(ev.Infos, HierarchyInfo{
				DeviceID:   le.Uint16(b[0:2]),
				Attachment: le.Uint16(b[2:4]),
				Use:        b[4],
				Enabled:    b[5] != 0,
				Flags:      le.Uint32(b[8:12]),
			})
			off += hierarchyInfoSize
		}
		return ev, nil

	case evtype == XIDeviceChanged:
		if len(data) < deviceChangedSize {
			return nil, fmt.Errorf("%w: XI %s needs %d bytes, got %d", ErrShortEvent, evtype, deviceChangedSize, len(data))
		}
		return &DeviceChangedEvent{
			Header:    hdr,
			Extension: ext,
			DeviceID:  deviceID,
			Time:      t,
			SourceID:  le.Uint16(data[18:20]),
			Reason:    DeviceChangeReason(data[20]),
		}, nil
	}

	return &GenericEvent{Header: hdr, Extension: ext, EvType: uint16(evtype), Data: data}, nil
}

func fixed1616(v uint32) float64 {
	return float64(int32(v)) / 65536.0
}
