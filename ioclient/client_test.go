package ioclient_test

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bsim/errs"
	"github.com/sarchlab/bsim/identity"
	"github.com/sarchlab/bsim/ioclient"
	"github.com/sarchlab/bsim/memory"
	"github.com/sarchlab/bsim/noc"
)

func newTestClient(core identity.ID, n *noc.NoC) *ioclient.Client {
	return ioclient.NewClient(core, n, memory.NewVMem(), "")
}

func dialerFor(conn *mockConn) ioclient.Dialer {
	return func(network, address string) (ioclient.Conn, error) {
		return conn, nil
	}
}

func terminatorResponse() []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(int32(-2)))
	return buf
}

var _ = Describe("Client", func() {
	var chip identity.ID
	var core identity.ID

	BeforeEach(func() {
		array := identity.NewChipArray("array")
		chip = array.NewChip(0, 0)
		core = chip.NewCore(0, 0)
	})

	Describe("DoIRequest", func() {
		It("sends every queued input request and reads the terminator response", func() {
			conn := newMockConn(terminatorResponse())
			c := newTestClient(core, noc.New())
			c.Dial = dialerFor(conn)

			c.AddInputRequest(0, ioclient.Request{RequestType: ioclient.StaticData, ID: "w0", BlockSize: 4})

			Expect(c.DoIRequest(0)).To(Succeed())
			Expect(conn.writeBuf.Len()).To(BeNumerically(">", 0))
		})

		It("does nothing for a phase with no queued requests", func() {
			conn := newMockConn(nil)
			c := newTestClient(core, noc.New())
			c.Dial = dialerFor(conn)

			Expect(c.DoIRequest(5)).To(Succeed())
			Expect(conn.writeBuf.Len()).To(Equal(0))
		})

		It("surfaces ErrIoUnavailable when the streamer can't be reached", func() {
			c := newTestClient(core, noc.New())
			c.RetryInterval = time.Millisecond
			c.Dial = func(network, address string) (ioclient.Conn, error) {
				return nil, fmt.Errorf("connection refused")
			}
			c.AddInputRequest(0, ioclient.Request{RequestType: ioclient.DynamicInput})

			err := c.DoIRequest(0)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, errs.ErrIoUnavailable)).To(BeTrue())
		})
	})

	Describe("DoORequest", func() {
		It("extracts the NoC output block and sends it before reading the response", func() {
			n := noc.New()
			// X: -20 pushes the destination chip coordinate negative, so
			// OffsetCore resolves it to the FPGA sentinel Extract reads from.
			header := noc.HeadBase{X: -20, Y: 0, A: 0}
			headerBlock := memory.Block{Core: core, Data: noc.HeadBaseBytes(header), Start: 0, Length: 4, Size: 4}
			payload := memory.Block{Core: core, Data: []byte{1, 2, 3, 4}, Start: 4, Length: 4, Size: 4}

			_, _, err := n.Route(core, noc.RouterParams{SendEn: true, HeaderMultipack: noc.SinglePack}, []memory.Block{headerBlock, payload}, 0)
			Expect(err).NotTo(HaveOccurred())

			conn := newMockConn(terminatorResponse())
			c := newTestClient(core, n)
			c.Dial = dialerFor(conn)
			c.AddOutputRequest(0, ioclient.Request{RequestType: ioclient.OutputData, BlockID: 0, BlockSize: 2})

			Expect(c.DoORequest(0)).To(Succeed())
		})
	})

	Describe("response handling", func() {
		It("treats the no-block sentinel as a successful empty read", func() {
			buf := make([]byte, 4)
			binary.BigEndian.PutUint32(buf, uint32(int32(-1)))
			conn := newMockConn(buf)
			c := newTestClient(core, noc.New())
			c.Dial = dialerFor(conn)
			c.AddInputRequest(0, ioclient.Request{RequestType: ioclient.StaticData})
			Expect(c.DoIRequest(0)).To(Succeed())
		})

		It("reads a positive-length payload in chunks and writes it through to VMem", func() {
			payload := make([]byte, 10)
			for i := range payload {
				payload[i] = byte(i)
			}
			lengthBuf := make([]byte, 4)
			binary.BigEndian.PutUint32(lengthBuf, uint32(len(payload)))
			seed := append(lengthBuf, payload...)
			conn := newMockConn(seed)

			vmem := memory.NewVMem()
			blockID := core.NewDataBlock("w0")
			Expect(vmem.InitMemoryBlock(memory.Block{
				ID: blockID, Core: core, Start: 0, Length: 10, Size: 10,
			})).To(Succeed())

			c := ioclient.NewClient(core, noc.New(), vmem, "")
			c.Dial = dialerFor(conn)
			c.AddInputRequest(0, ioclient.Request{RequestType: ioclient.StaticData, ID: "w0", BlockSize: 10})

			Expect(c.DoIRequest(0)).To(Succeed())

			got, err := vmem.ReadMemoryBlock(blockID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Data).To(Equal(payload))
		})
	})
})
