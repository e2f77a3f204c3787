package x11

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedConn replays server bytes and records what the client writes.
type scriptedConn struct {
	net.Conn
	r      *bytes.Reader
	w      bytes.Buffer
	closed bool
}

func (s *scriptedConn) Read(p []byte) (int, error)  { return s.r.Read(p) }
func (s *scriptedConn) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *scriptedConn) Close() error {
	s.closed = true
	return nil
}

func frameOf(code byte, seq uint16, length uint32) []byte {
	buf := make([]byte, frameSize)
	buf[0] = code
	xgb.Put16(buf[2:], seq)
	xgb.Put32(buf[4:], length)
	return buf
}

func setupReply(words uint16) []byte {
	buf := make([]byte, setupHeadSize+int(words)*4)
	buf[0] = 1
	xgb.Put16(buf[2:], 11)
	xgb.Put16(buf[6:], words)
	for i := setupHeadSize; i < len(buf); i++ {
		buf[i] = byte(i)
	}
	return buf
}

func TestFrameConnSplitsGenericEvents(t *testing.T) {
	setup := setupReply(3)

	reply := frameOf(responseReply, 5, 2)
	reply = append(reply, 1, 2, 3, 4, 5, 6, 7, 8)

	ge := frameOf(geGenericOpcode, 6, 3)
	ge[1] = 131
	ge[28] = 0xaa
	geBody := bytes.Repeat([]byte{0xee}, 12)
	ge = append(ge, geBody...)

	prop := frameOf(28, 7, 0)

	var stream []byte
	for _, b := range [][]byte{setup, reply, ge, prop} {
		stream = append(stream, b...)
	}
	sc := &scriptedConn{r: bytes.NewReader(stream)}
	f := newFrameConn(sc, nil)
	defer f.Close()

	// Read the way xgb does.
	head := make([]byte, setupHeadSize)
	_, err := io.ReadFull(f, head)
	require.NoError(t, err)
	body := make([]byte, int(xgb.Get16(head[6:]))*4)
	_, err = io.ReadFull(f, body)
	require.NoError(t, err)
	assert.Equal(t, setup, append(head, body...))

	got := make([]byte, frameSize)
	_, err = io.ReadFull(f, got)
	require.NoError(t, err)
	assert.Equal(t, reply[:frameSize], got)
	extra := make([]byte, xgb.Get32(got[4:])*4)
	_, err = io.ReadFull(f, extra)
	require.NoError(t, err)
	assert.Equal(t, reply[frameSize:], extra)

	_, err = io.ReadFull(f, got)
	require.NoError(t, err)
	assert.Equal(t, f.id, xgb.Get32(got[stampOffset:]), "head is stamped with the connection id")

	ev := newGenericEvent(got)
	full, ok := ev.(genericEvent)
	require.True(t, ok)
	assert.Equal(t, ge, full.data, "payload keeps its body and original tail")

	_, err = io.ReadFull(f, got)
	require.NoError(t, err)
	assert.Equal(t, prop, got, "the stream stays aligned after a long event")

	_, err = f.Read(got)
	assert.ErrorIs(t, err, io.EOF)
}

func TestGenericEventFallback(t *testing.T) {
	buf := frameOf(geGenericOpcode, 1, 0)
	xgb.Put32(buf[stampOffset:], 0xffffffff)
	_, ok := newGenericEvent(buf).(xproto.GeGenericEvent)
	assert.True(t, ok, "unknown connections fall back to xgb's constructor")
}

func TestFrameConnCloseUnregisters(t *testing.T) {
	sc := &scriptedConn{r: bytes.NewReader(nil)}
	f := newFrameConn(sc, nil)
	require.Same(t, f, lookupFrame(f.id))
	require.NoError(t, f.Close())
	assert.Nil(t, lookupFrame(f.id))
	assert.True(t, sc.closed)
}

func xgbSetupRequest(name string, data []byte) []byte {
	buf := make([]byte, setupReqSize+xgb.Pad(len(name))+xgb.Pad(len(data)))
	buf[0] = 0x6c
	xgb.Put16(buf[2:], 11)
	xgb.Put16(buf[6:], uint16(len(name)))
	xgb.Put16(buf[8:], uint16(len(data)))
	copy(buf[setupReqSize:], name)
	copy(buf[setupReqSize+xgb.Pad(len(name)):], data)
	return buf
}

func TestFrameConnInjectsAuthority(t *testing.T) {
	auth := &Authority{Name: MagicCookie, Data: cookie(7)}

	t.Run("empty request gets the cookie", func(t *testing.T) {
		sc := &scriptedConn{r: bytes.NewReader(nil)}
		f := newFrameConn(sc, auth)
		defer f.Close()

		req := xgbSetupRequest("", nil)
		n, err := f.Write(req)
		require.NoError(t, err)
		assert.Equal(t, len(req), n)
		assert.Equal(t, xgbSetupRequest(MagicCookie, cookie(7)), sc.w.Bytes())

		sc.w.Reset()
		_, err = f.Write([]byte{1, 2, 3, 4})
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3, 4}, sc.w.Bytes(), "only the setup request is rewritten")
	})

	t.Run("existing credentials are kept", func(t *testing.T) {
		sc := &scriptedConn{r: bytes.NewReader(nil)}
		f := newFrameConn(sc, auth)
		defer f.Close()

		req := xgbSetupRequest(MagicCookie, cookie(1))
		_, err := f.Write(req)
		require.NoError(t, err)
		assert.Equal(t, req, sc.w.Bytes())
	})

	t.Run("no authority", func(t *testing.T) {
		sc := &scriptedConn{r: bytes.NewReader(nil)}
		f := newFrameConn(sc, nil)
		defer f.Close()

		req := xgbSetupRequest("", nil)
		_, err := f.Write(req)
		require.NoError(t, err)
		assert.Equal(t, req, sc.w.Bytes())
	})
}
