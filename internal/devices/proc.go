package devices

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// DefaultProcPath is the kernel's input device listing.
const DefaultProcPath = "/proc/bus/input/devices"

// DefaultDevDir holds the evdev nodes.
const DefaultDevDir = "/dev/input"

// Enumerator lists the current input devices.
type Enumerator interface {
	Enumerate() ([]Device, error)
}

// EnumeratorFunc adapts a function to Enumerator.
type EnumeratorFunc func() ([]Device, error)

func (f EnumeratorFunc) Enumerate() ([]Device, error) { return f() }

// ProcEnumerator reads /proc/bus/input/devices.
type ProcEnumerator struct {
	Path   string
	DevDir string
}

// Enumerate parses the listing and checks each event node for read access.
func (p ProcEnumerator) Enumerate() ([]Device, error) {
	path := p.Path
	if path == "" {
		path = DefaultProcPath
	}
	devDir := p.DevDir
	if devDir == "" {
		devDir = DefaultDevDir
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input device list: %w", err)
	}
	defer f.Close()

	devs, err := ParseDevices(f)
	if err != nil {
		return nil, err
	}
	for i := range devs {
		for _, h := range devs[i].Handlers {
			if strings.HasPrefix(h, "event") {
				devs[i].Node = filepath.Join(devDir, h)
				devs[i].Readable = unix.Access(devs[i].Node, unix.R_OK) == nil
				break
			}
		}
	}
	return devs, nil
}

// Linux input event codes used for classification.
const (
	evKey = 0x01
	evRel = 0x02
	evAbs = 0x03

	relX = 0x00
	relY = 0x01

	absX           = 0x00
	absY           = 0x01
	absMTPositionX = 0x35

	keyA      = 30
	keySpace  = 57
	btnLeft   = 0x110
	btnFinger = 0x145
	btnTouch  = 0x14a

	propPointer = 0x00
	propDirect  = 0x01
)

// bitmap is a capability mask from a B: line. Words are printed most
// significant first, one unsigned long each; 64-bit longs are assumed.
type bitmap []uint64

func parseBitmap(s string) bitmap {
	fields := strings.Fields(s)
	bm := make(bitmap, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 16, 64)
		if err != nil {
			return nil
		}
		bm[len(fields)-1-i] = v
	}
	return bm
}

func (b bitmap) has(bit int) bool {
	w := bit / 64
	return w < len(b) && b[w]&(1<<(bit%64)) != 0
}

type caps struct {
	ev, key, rel, abs, prop bitmap
}

func (c caps) kind() Kind {
	var k Kind
	if c.ev.has(evKey) && c.key.has(keyA) && c.key.has(keySpace) {
		k |= KindKeyboard
	}
	if c.ev.has(evRel) && c.rel.has(relX) && c.rel.has(relY) && c.key.has(btnLeft) {
		k |= KindPointer
	}
	if c.ev.has(evAbs) && (c.abs.has(absX) || c.abs.has(absMTPositionX)) {
		switch {
		case c.prop.has(propDirect) || (c.key.has(btnTouch) && !c.key.has(btnFinger)):
			k |= KindTouchscreen
		case c.prop.has(propPointer) || c.key.has(btnFinger):
			k |= KindTouchpad
		}
	}
	return k
}

// ParseDevices parses the /proc/bus/input/devices format. Blocks are
// separated by blank lines.
func ParseDevices(r io.Reader) ([]Device, error) {
	var (
		out  []Device
		cur  Device
		c    caps
		open bool
	)
	flush := func() {
		if open && cur.Name != "" {
			if cur.Bus == BusUnknown {
				cur.Bus = busFromPhys(cur.Phys)
			}
			cur.Kind = c.kind()
			out = append(out, cur)
		}
		cur, c, open = Device{}, caps{}, false
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			flush()
			continue
		}
		if len(line) < 3 || line[1] != ':' {
			continue
		}
		open = true
		val := strings.TrimSpace(line[2:])
		switch line[0] {
		case 'I':
			for _, part := range strings.Fields(val) {
				k, v, ok := strings.Cut(part, "=")
				if !ok {
					continue
				}
				n, err := strconv.ParseUint(v, 16, 16)
				switch k {
				case "Bus":
					cur.Bus = busFromCode(v)
				case "Vendor":
					if err == nil {
						cur.Vendor = uint16(n)
					}
				case "Product":
					if err == nil {
						cur.Product = uint16(n)
					}
				case "Version":
					if err == nil {
						cur.Version = uint16(n)
					}
				}
			}
		case 'N':
			cur.Name = strings.Trim(strings.TrimPrefix(val, "Name="), `"`)
		case 'P':
			cur.Phys = strings.TrimPrefix(val, "Phys=")
		case 'S':
			cur.Sysfs = strings.TrimPrefix(val, "Sysfs=")
		case 'H':
			cur.Handlers = strings.Fields(strings.TrimPrefix(val, "Handlers="))
		case 'B':
			k, v, ok := strings.Cut(val, "=")
			if !ok {
				continue
			}
			bm := parseBitmap(v)
			switch k {
			case "PROP":
				c.prop = bm
			case "EV":
				c.ev = bm
			case "KEY":
				c.key = bm
			case "REL":
				c.rel = bm
			case "ABS":
				c.abs = bm
			}
		}
	}
	flush()
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read input device list: %w", err)
	}
	return out, nil
}
