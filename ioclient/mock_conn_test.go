package ioclient_test

import (
	"bytes"
	"io"
)

// mockConn is a hand-rolled stand-in for a golang/mock-generated MockConn:
// a mockgen-style fake isn't runnable here since mockgen itself can't be
// invoked, so this records writes and serves reads from pre-seeded buffers.
type mockConn struct {
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
	closed   bool
}

func newMockConn(seed []byte) *mockConn {
	return &mockConn{
		readBuf:  bytes.NewBuffer(seed),
		writeBuf: &bytes.Buffer{},
	}
}

func (m *mockConn) Read(p []byte) (int, error) {
	if m.readBuf.Len() == 0 {
		return 0, io.EOF
	}
	return m.readBuf.Read(p)
}

func (m *mockConn) Write(p []byte) (int, error) {
	return m.writeBuf.Write(p)
}

func (m *mockConn) Close() error {
	m.closed = true
	return nil
}
