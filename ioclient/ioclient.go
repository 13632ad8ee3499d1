// Package ioclient implements the TCP streamer protocol a core uses to pull
// dynamic input blocks in and push output blocks out of the simulation:
// length-prefixed Request messages over port 7000, with a 4-byte
// big-endian length prefix (or -1/-2 sentinels) framing each response.
package ioclient

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sarchlab/bsim/errs"
	"github.com/sarchlab/bsim/identity"
	"github.com/sarchlab/bsim/memory"
	"github.com/sarchlab/bsim/noc"
)

// Port is the TCP port the streamer listens on.
const Port = 7000

// ChunkSize bounds how much response data is read per recv call.
const ChunkSize = 1 << 16

// noBlockSentinel and terminatorSentinel are the two lengths a response can
// carry instead of a real byte count.
const (
	noBlockSentinel   int32 = -1
	terminatorSentinel int32 = -2
)

// RequestType distinguishes the three kinds of request a core issues.
type RequestType int

const (
	StaticData RequestType = iota
	DynamicInput
	OutputData
)

// Request mirrors the original simulator's protobuf Request message.
type Request struct {
	RequestType   RequestType
	ID            string
	BlockID       int
	PhaseID       int
	Seed          uint32
	Precision     int
	Shape         []int
	BlockSize     int
	BeginPosition []int
	SocketID      int
	Nth           int
	TotalBlocks   int
	CaseName      string
	StoragePath   string
	Data          []byte
}

// Conn is the minimal network dependency Client needs, so tests can inject
// a mock in place of a real net.Conn.
type Conn interface {
	io.Reader
	io.Writer
	Close() error
}

// Dialer opens a Conn to the streamer; the default is net.Dial, overridable
// in tests.
type Dialer func(network, address string) (Conn, error)

func defaultDialer(network, address string) (Conn, error) {
	return net.Dial(network, address)
}

// Client drives the streamer protocol for one core: queued input/output
// requests per phase, and the connect-retry/response-handling loop.
type Client struct {
	CoreID   identity.ID
	NoC      *noc.NoC
	VMem     *memory.VMem
	CaseName string
	Seed     uint32

	Dial    Dialer
	Address string

	// RetryInterval overrides retryInterval between connect attempts; zero
	// means use the default. Tests set this to avoid real sleeps.
	RetryInterval time.Duration

	conn Conn

	inputRequests  map[int][]Request
	outputRequests map[int][]Request
}

// NewClient returns a Client for coreID dialing address (default
// "127.0.0.1:7000") on demand. A fetched input block's bytes are written
// through to vmem, keyed by the core's existing data block bookkeeping.
func NewClient(coreID identity.ID, n *noc.NoC, vmem *memory.VMem, address string) *Client {
	if address == "" {
		address = fmt.Sprintf("127.0.0.1:%d", Port)
	}
	return &Client{
		CoreID:         coreID,
		NoC:            n,
		VMem:           vmem,
		Address:        address,
		Dial:           defaultDialer,
		inputRequests:  make(map[int][]Request),
		outputRequests: make(map[int][]Request),
	}
}

// AddInputRequest queues a static- or dynamic-data request for phase.
func (c *Client) AddInputRequest(phase int, req Request) {
	c.inputRequests[phase] = append(c.inputRequests[phase], req)
}

// AddOutputRequest queues an output-data request for phase.
func (c *Client) AddOutputRequest(phase int, req Request) {
	c.outputRequests[phase] = append(c.outputRequests[phase], req)
}

// retryInterval mirrors the original streamer client's do_connect retry
// sleep.
const retryInterval = 5 * time.Second

// maxConnectAttempts bounds the retry loop so a genuinely absent streamer
// eventually surfaces as ErrIoUnavailable instead of hanging forever.
const maxConnectAttempts = 3

func (c *Client) connect() error {
	if c.conn != nil {
		return nil
	}

	interval := retryInterval
	if c.RetryInterval > 0 {
		interval = c.RetryInterval
	}

	var lastErr error
	for attempt := 0; attempt < maxConnectAttempts; attempt++ {
		conn, err := c.Dial("tcp", c.Address)
		if err == nil {
			c.conn = conn
			return nil
		}
		lastErr = err
		if attempt < maxConnectAttempts-1 {
			time.Sleep(interval)
		}
	}
	return errs.New("ioclient.connect", errs.ErrIoUnavailable, lastErr)
}

// DoIRequest sends every queued input request for phase, dialing the
// streamer (retrying every 5s) if not already connected. Each request's
// response is applied to the matching data block in VMem before the next
// request is sent, mirroring the original's one-request-one-response
// exchange.
func (c *Client) DoIRequest(phase int) error {
	reqs, ok := c.inputRequests[phase]
	if !ok {
		return nil
	}
	if err := c.connect(); err != nil {
		return err
	}
	for _, req := range reqs {
		if req.RequestType == OutputData {
			continue
		}
		if err := c.sendRequest(req); err != nil {
			return err
		}
		data, err := c.readResponse()
		if err != nil {
			return err
		}
		if err := c.applyResponse(req, data); err != nil {
			return err
		}
	}
	return nil
}

// DoORequest extracts every queued output block for phase from the NoC and
// sends it to the streamer, reading back the streamer's acknowledgment for
// each one sent.
func (c *Client) DoORequest(phase int) error {
	reqs, ok := c.outputRequests[phase]
	if !ok {
		return nil
	}
	if err := c.connect(); err != nil {
		return err
	}
	for _, req := range reqs {
		if req.RequestType != OutputData {
			continue
		}
		data, err := c.NoC.Extract(uint32(phase), req.BlockID, c.CoreID, req.BlockSize/2)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			continue
		}
		req.Data = data
		if err := c.sendRequest(req); err != nil {
			return err
		}
		if _, err := c.readResponse(); err != nil {
			return err
		}
	}
	return nil
}

// applyResponse writes a fetched input block's bytes through to VMem,
// preserving the block's existing Start/Length/Size bookkeeping - an empty
// response (the no-block sentinel) or an unnamed request is a no-op.
func (c *Client) applyResponse(req Request, data []byte) error {
	if len(data) == 0 || req.ID == "" {
		return nil
	}
	blockID := c.CoreID.NewDataBlock(req.ID)
	b, err := c.VMem.GetMemoryBlockRef(blockID)
	if err != nil {
		return err
	}
	b.Data = data
	return c.VMem.WriteMemoryBlock(b)
}

// sendRequest serializes req and writes it to the connection, length-
// prefixed exactly like a response so both directions share one framing
// convention.
func (c *Client) sendRequest(req Request) error {
	payload := encodeRequest(req)
	if len(payload) >= ChunkSize {
		return errs.New("ioclient.sendRequest", errs.ErrInvariant, fmt.Errorf("request too large: %d bytes", len(payload)))
	}
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(payload)))
	if _, err := c.conn.Write(length[:]); err != nil {
		return errs.New("ioclient.sendRequest", errs.ErrIoUnavailable, err)
	}
	if _, err := c.conn.Write(payload); err != nil {
		return errs.New("ioclient.sendRequest", errs.ErrIoUnavailable, err)
	}
	return nil
}

// readResponse reads one length-prefixed response from the connection and
// returns its payload. A length of noBlockSentinel means no block was
// available; a length of terminatorSentinel ends the exchange; both yield a
// nil payload. Otherwise that many bytes follow, read in ChunkSize pieces.
func (c *Client) readResponse() ([]byte, error) {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(c.conn, lengthBuf[:]); err != nil {
		return nil, errs.New("ioclient.readResponse", errs.ErrIoUnavailable, err)
	}
	length := int32(binary.BigEndian.Uint32(lengthBuf[:]))

	switch length {
	case noBlockSentinel, terminatorSentinel:
		return nil, nil
	}
	if length < 0 {
		return nil, errs.New("ioclient.readResponse", errs.ErrParse, fmt.Errorf("unexpected negative length %d", length))
	}

	out := make([]byte, 0, length)
	remaining := int(length)
	for remaining > 0 {
		n := remaining
		if n > ChunkSize {
			n = ChunkSize
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(c.conn, buf); err != nil {
			return nil, errs.New("ioclient.readResponse", errs.ErrIoUnavailable, err)
		}
		out = append(out, buf...)
		remaining -= n
	}
	return out, nil
}

// Close releases the underlying connection, if any.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// encodeRequest serializes req into a simple length-delimited field stream.
// The original wire format is a protobuf Request message; this simulator
// is not paired with a real protobuf-speaking streamer, so it uses its own
// deterministic encoding of the same field list instead.
func encodeRequest(req Request) []byte {
	var buf bytes.Buffer
	writeInt := func(v int) { binary.Write(&buf, binary.BigEndian, int64(v)) }
	writeString := func(s string) {
		writeInt(len(s))
		buf.WriteString(s)
	}
	writeInts := func(vs []int) {
		writeInt(len(vs))
		for _, v := range vs {
			writeInt(v)
		}
	}

	writeInt(int(req.RequestType))
	writeString(req.ID)
	writeInt(req.BlockID)
	writeInt(req.PhaseID)
	writeInt(int(req.Seed))
	writeInt(req.Precision)
	writeInts(req.Shape)
	writeInt(req.BlockSize)
	writeInts(req.BeginPosition)
	writeInt(req.SocketID)
	writeInt(req.Nth)
	writeInt(req.TotalBlocks)
	writeString(req.CaseName)
	writeString(req.StoragePath)
	writeInt(len(req.Data))
	buf.Write(req.Data)
	return buf.Bytes()
}
