package x11

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectEventsRequest(t *testing.T) {
	buf := selectEventsRequest(131, 0x2a,
		deviceMask{xiAllDevices, xiTopologyMask},
		deviceMask{xiAllMasterDevices, xiInputMask})

	require.Len(t, buf, 28)
	le := binary.LittleEndian
	assert.Equal(t, uint8(131), buf[0])
	assert.Equal(t, uint8(xiSelectEvents), buf[1])
	assert.Equal(t, uint16(7), le.Uint16(buf[2:]), "length in words")
	assert.Equal(t, uint32(0x2a), le.Uint32(buf[4:]))
	assert.Equal(t, uint16(2), le.Uint16(buf[8:]))

	assert.Equal(t, uint16(xiAllDevices), le.Uint16(buf[12:]))
	assert.Equal(t, uint16(1), le.Uint16(buf[14:]))
	assert.Equal(t, uint32(xiHierarchy|xiDeviceChanged), le.Uint32(buf[16:]))

	assert.Equal(t, uint16(xiAllMasterDevices), le.Uint16(buf[20:]))
	assert.Equal(t, uint16(1), le.Uint16(buf[22:]))
	mask := le.Uint32(buf[24:])
	for _, bit := range []uint32{xiKeyPress, xiKeyRelease, xiButtonPress, xiButtonRelease, xiMotion, xiEnter, xiLeave} {
		assert.NotZero(t, mask&bit, "mask %#x lacks %#x", mask, bit)
	}
	assert.Zero(t, mask&xiTopologyMask)
}
