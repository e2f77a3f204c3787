package x11

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDisplay(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Display
		network string
		address string
	}{
		{
			name:    "local",
			in:      ":0",
			want:    Display{Name: ":0", Number: "0"},
			network: "unix",
			address: "/tmp/.X11-unix/X0",
		},
		{
			name:    "local with screen",
			in:      ":1.2",
			want:    Display{Name: ":1.2", Number: "1", Screen: 2},
			network: "unix",
			address: "/tmp/.X11-unix/X1",
		},
		{
			name:    "unix host",
			in:      "unix:3",
			want:    Display{Name: "unix:3", Number: "3"},
			network: "unix",
			address: "/tmp/.X11-unix/X3",
		},
		{
			name:    "tcp host",
			in:      "example.org:10.0",
			want:    Display{Name: "example.org:10.0", Host: "example.org", Number: "10"},
			network: "tcp",
			address: "example.org:6010",
		},
		{
			name:    "explicit protocol",
			in:      "tcp6/::1:0",
			want:    Display{Name: "tcp6/::1:0", Protocol: "tcp6", Host: "::1", Number: "0"},
			network: "tcp6",
			address: "[::1]:6000",
		},
		{
			name:    "socket path",
			in:      "/private/tmp/launch-x/org.xquartz:0",
			want:    Display{Name: "/private/tmp/launch-x/org.xquartz:0", Socket: "/private/tmp/launch-x/org.xquartz", Number: "0"},
			network: "unix",
			address: "/private/tmp/launch-x/org.xquartz:0",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := ParseDisplay(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, d)
			network, address := d.Network()
			assert.Equal(t, tc.network, network)
			assert.Equal(t, tc.address, address)
		})
	}
}

func TestParseDisplayErrors(t *testing.T) {
	for _, in := range []string{"nocolon", ":", ":x", ":0.y", ":-1", "host:0.-2"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseDisplay(in)
			assert.ErrorIs(t, err, ErrBadDisplay)
		})
	}
}

func TestParseDisplayFromEnvironment(t *testing.T) {
	t.Setenv("DISPLAY", ":7")
	d, err := ParseDisplay("")
	require.NoError(t, err)
	assert.Equal(t, "7", d.Number)
	assert.True(t, d.Local())

	t.Setenv("DISPLAY", "")
	_, err = ParseDisplay("")
	assert.ErrorIs(t, err, ErrBadDisplay)
}
