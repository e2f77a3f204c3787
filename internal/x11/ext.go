package x11

import (
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// Extension names as the server registers them.
const (
	xkbExtension = "XKEYBOARD"
	xiExtension  = "XInputExtension"
)

// XKB minor opcodes and constants.
const (
	xkbUseExtension  = 0
	xkbPerClientFlag = 21
	xkbUseCoreKbd    = 0x0100
)

// XInput2 minor opcodes and event masks.
const (
	xiSelectEvents  = 46
	xiQueryVersion  = 47
	xiAllDevices       = 0
	xiAllMasterDevices = 1
	xiMajorVersion     = 2
	xiMinorVersion     = 0
	xiDeviceChanged    = 1 << 1
	xiKeyPress         = 1 << 2
	xiKeyRelease       = 1 << 3
	xiButtonPress      = 1 << 4
	xiButtonRelease    = 1 << 5
	xiMotion           = 1 << 6
	xiEnter            = 1 << 7
	xiLeave            = 1 << 8
	xiHierarchy        = 1 << 11

	xiTopologyMask = xiHierarchy | xiDeviceChanged
	xiInputMask    = xiKeyPress | xiKeyRelease | xiButtonPress | xiButtonRelease |
		xiMotion | xiEnter | xiLeave
)

// deviceMask is one entry of an XISelectEvents request.
type deviceMask struct {
	device uint16
	mask   uint32
}

// selectEventsRequest encodes XISelectEvents on window for masks, one
// 32-bit mask word per device.
func selectEventsRequest(opcode uint8, window xproto.Window, masks ...deviceMask) []byte {
	buf := make([]byte, 12+8*len(masks))
	buf[0] = opcode
	buf[1] = xiSelectEvents
	xgb.Put16(buf[2:], uint16(len(buf)/4))
	xgb.Put32(buf[4:], uint32(window))
	xgb.Put16(buf[8:], uint16(len(masks)))
	for i, m := range masks {
		off := 12 + 8*i
		xgb.Put16(buf[off:], m.device)
		xgb.Put16(buf[off+2:], 1)
		xgb.Put32(buf[off+4:], m.mask)
	}
	return buf
}

type extension struct {
	present bool
	opcode  uint8
}

// queryExtension resolves and caches an extension's major opcode.
func (c *Conn) queryExtension(name string) (extension, error) {
	c.extMu.Lock()
	defer c.extMu.Unlock()
	if ext, ok := c.exts[name]; ok {
		return ext, nil
	}
	reply, err := xproto.QueryExtension(c.x, uint16(len(name)), name).Reply()
	if err != nil {
		return extension{}, fmt.Errorf("query extension %s: %w", name, err)
	}
	ext := extension{present: reply.Present, opcode: reply.MajorOpcode}
	c.exts[name] = ext
	return ext, nil
}

// request sends a hand-built request and waits for its reply.
func (c *Conn) request(buf []byte, minLen int) ([]byte, error) {
	cookie := c.x.NewCookie(true, true)
	c.x.NewRequest(buf, cookie)
	reply, err := cookie.Reply()
	if err != nil {
		return nil, err
	}
	if len(reply) < minLen {
		return nil, fmt.Errorf("short reply: %d bytes", len(reply))
	}
	return reply, nil
}

// requestChecked sends a hand-built void request and waits for the server
// to accept or reject it.
func (c *Conn) requestChecked(buf []byte) error {
	cookie := c.x.NewCookie(true, false)
	c.x.NewRequest(buf, cookie)
	return cookie.Check()
}

// UseXkbExtension negotiates the XKB protocol version.
func (c *Conn) UseXkbExtension(major, minor uint16) (bool, error) {
	ext, err := c.queryExtension(xkbExtension)
	if err != nil || !ext.present {
		return false, err
	}
	buf := make([]byte, 8)
	buf[0] = ext.opcode
	buf[1] = xkbUseExtension
	xgb.Put16(buf[2:], uint16(len(buf)/4))
	xgb.Put16(buf[4:], major)
	xgb.Put16(buf[6:], minor)

	reply, err := c.request(buf, 12)
	if err != nil {
		return false, fmt.Errorf("xkb use extension: %w", err)
	}
	c.logger.Debug("xkb negotiated",
		"supported", reply[1] != 0,
		"server_major", xgb.Get16(reply[8:]),
		"server_minor", xgb.Get16(reply[10:]))
	return reply[1] != 0, nil
}

// SetXkbPerClientFlags changes per-client flags on the core keyboard.
func (c *Conn) SetXkbPerClientFlags(change, value uint32) (uint32, error) {
	ext, err := c.queryExtension(xkbExtension)
	if err != nil {
		return 0, err
	}
	if !ext.present {
		return 0, fmt.Errorf("%w: %s", ErrExtensionMissing, xkbExtension)
	}
	buf := make([]byte, 28)
	buf[0] = ext.opcode
	buf[1] = xkbPerClientFlag
	xgb.Put16(buf[2:], uint16(len(buf)/4))
	xgb.Put16(buf[4:], xkbUseCoreKbd)
	xgb.Put32(buf[8:], change)
	xgb.Put32(buf[12:], value)
	// ctrlsToChange, autoCtrls and autoCtrlsValues stay zero.

	reply, err := c.request(buf, 12)
	if err != nil {
		return 0, fmt.Errorf("xkb per client flags: %w", err)
	}
	return xgb.Get32(reply[8:]), nil
}

// SelectDeviceEvents announces XI 2.0 and selects hierarchy and
// device-changed events for all devices on the root window. Generic events
// are decoded as XI2 only once this succeeds.
//
// Key, button, motion and crossing events of the master devices are then
// selected as well. Button press selection on the root window is exclusive,
// so if another client holds it the input selection is retried without it;
// failing that, only topology events arrive.
func (c *Conn) SelectDeviceEvents() error {
	ext, err := c.queryExtension(xiExtension)
	if err != nil {
		return err
	}
	if !ext.present {
		return fmt.Errorf("%w: %s", ErrExtensionMissing, xiExtension)
	}

	buf := make([]byte, 8)
	buf[0] = ext.opcode
	buf[1] = xiQueryVersion
	xgb.Put16(buf[2:], uint16(len(buf)/4))
	xgb.Put16(buf[4:], xiMajorVersion)
	xgb.Put16(buf[6:], xiMinorVersion)
	reply, err := c.request(buf, 12)
	if err != nil {
		return fmt.Errorf("xi query version: %w", err)
	}
	if major := xgb.Get16(reply[8:]); major < xiMajorVersion {
		return fmt.Errorf("xi query version: server speaks %d.%d", major, xgb.Get16(reply[10:]))
	}

	c.xiOpcode.Store(uint32(ext.opcode))
	topology := selectEventsRequest(ext.opcode, c.root, deviceMask{xiAllDevices, xiTopologyMask})
	if err := c.requestChecked(topology); err != nil {
		c.xiOpcode.Store(0)
		return fmt.Errorf("xi select events: %w", err)
	}

	for _, mask := range []uint32{xiInputMask, xiInputMask &^ xiButtonPress} {
		err = c.requestChecked(selectEventsRequest(ext.opcode, c.root, deviceMask{xiAllMasterDevices, mask}))
		if err == nil {
			c.logger.Debug("selected xi input events", "mask", fmt.Sprintf("%#x", mask))
			return nil
		}
	}
	c.logger.Warn("xi input events unavailable, device filtering sees topology only", "error", err)
	return nil
}
