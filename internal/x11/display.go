package x11

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrBadDisplay is returned for display strings that do not parse.
var ErrBadDisplay = errors.New("x11: bad display string")

// Display is a parsed X display name of the form
// [protocol/][host]:display[.screen] or /path/to/socket:display.
type Display struct {
	Name     string
	Protocol string
	Host     string
	Socket   string
	Number   string
	Screen   int
}

// ParseDisplay parses name. An empty name falls back to $DISPLAY.
func ParseDisplay(name string) (Display, error) {
	if name == "" {
		name = os.Getenv("DISPLAY")
	}
	d := Display{Name: name}
	if name == "" {
		return d, fmt.Errorf("%w: empty", ErrBadDisplay)
	}

	colon := strings.LastIndex(name, ":")
	if colon < 0 {
		return d, fmt.Errorf("%w: %q", ErrBadDisplay, name)
	}
	if name[0] == '/' {
		d.Socket = name[:colon]
	} else if slash := strings.LastIndex(name[:colon], "/"); slash >= 0 {
		d.Protocol = name[:slash]
		d.Host = name[slash+1 : colon]
	} else {
		d.Host = name[:colon]
	}

	rest := name[colon+1:]
	if dot := strings.LastIndex(rest, "."); dot >= 0 {
		scr, err := strconv.Atoi(rest[dot+1:])
		if err != nil || scr < 0 {
			return d, fmt.Errorf("%w: %q", ErrBadDisplay, name)
		}
		d.Screen = scr
		rest = rest[:dot]
	}
	if n, err := strconv.Atoi(rest); err != nil || n < 0 {
		return d, fmt.Errorf("%w: %q", ErrBadDisplay, name)
	}
	d.Number = rest
	if d.Host == "unix" {
		d.Host = ""
	}
	return d, nil
}

// Local reports whether the display is reached over a unix socket.
func (d Display) Local() bool {
	return d.Socket != "" || d.Host == ""
}

// Network returns the dial network and address for the display.
func (d Display) Network() (network, address string) {
	switch {
	case d.Socket != "":
		return "unix", d.Socket + ":" + d.Number
	case d.Host != "":
		n, _ := strconv.Atoi(d.Number)
		proto := d.Protocol
		if proto == "" {
			proto = "tcp"
		}
		return proto, net.JoinHostPort(d.Host, strconv.Itoa(6000+n))
	default:
		return "unix", "/tmp/.X11-unix/X" + d.Number
	}
}

// Dial opens the transport to the display server.
func (d Display) Dial(timeout time.Duration) (net.Conn, error) {
	network, address := d.Network()
	c, err := net.DialTimeout(network, address, timeout)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to %s: %w", d.Name, err)
	}
	return c, nil
}
