package noc

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bsim/identity"
	"github.com/sarchlab/bsim/memory"
)

func chipArray() identity.ID { return identity.NewChipArray("array") }

func singlePackInput(core identity.ID, dx, dy int32, q uint32, payload []byte) []memory.Block {
	header := HeadBase{Q: q, X: dx, Y: dy, A: 0}
	return []memory.Block{
		{Core: core, Data: HeadBaseBytes(header), Length: 4},
		{Core: core, Data: payload, Length: len(payload)},
	}
}

var _ = Describe("NoC.Route", func() {
	var n *NoC
	const phase = uint32(1)

	BeforeEach(func() {
		n = New()
	})

	It("delivers a single unicast packet from sender to receiver", func() {
		array := chipArray()
		chip := array.NewChip(0, 0)
		sender := chip.NewCore(0, 0)
		receiver := identity.OffsetCore(sender, 1, 0)

		in := singlePackInput(sender, 1, 0, 0, []byte{1, 2, 3, 4})
		sendParams := RouterParams{SendEn: true, HeaderMultipack: SinglePack, RecvEndPhase: phase}
		state, _, err := n.Route(sender, sendParams, in, phase)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(Equal(Success))

		recvParams := RouterParams{RecvEn: true, ReceivedStopNum: 1, RecvAddress: 0, DinLength: 1 << 16}
		state, out, err := n.Route(receiver, recvParams, nil, phase)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(Equal(Success))
		Expect(out).To(HaveLen(1))
		Expect(out[0].Data).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("returns Relay without consuming input when the receive precondition isn't met", func() {
		array := chipArray()
		chip := array.NewChip(0, 0)
		receiver := chip.NewCore(2, 2)

		recvParams := RouterParams{RecvEn: true, ReceivedStopNum: 1}
		state, out, err := n.Route(receiver, recvParams, nil, phase)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(Equal(Relay))
		Expect(out).To(BeNil())
	})

	It("multicasts to three destinations without consuming the source pool", func() {
		array := chipArray()
		chip := array.NewChip(0, 0)
		sender := chip.NewCore(0, 0)
		hub := identity.OffsetCore(sender, 1, 0)
		final := identity.OffsetCore(hub, 0, 1)

		for i := 0; i < 3; i++ {
			in := singlePackInput(sender, 1, 0, 1, []byte{byte(i)})
			_, _, err := n.Route(sender, RouterParams{SendEn: true, HeaderMultipack: SinglePack, RecvEndPhase: phase}, in, phase)
			Expect(err).NotTo(HaveOccurred())
		}

		multicastParams := RouterParams{
			MulticastRelayOrNot: Multicast,
			MulticastRelayNum:   3,
			Dx:                  0, Dy: 1,
		}
		state, _, err := n.Route(hub, multicastParams, nil, phase)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(Equal(Success))

		Expect(n.multicastRelayCount(hub, phase)).To(Equal(3), "multicast must not consume the source pool")

		recvParams := RouterParams{RecvEn: true, ReceivedStopNum: 3, RecvAddress: 0, DinLength: 1 << 16}
		state, out, err := n.Route(final, recvParams, nil, phase)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(Equal(Success))
		Expect(out).To(HaveLen(3))
	})

	It("relays and consumes the source pool", func() {
		array := chipArray()
		chip := array.NewChip(0, 0)
		sender := chip.NewCore(0, 0)
		hub := identity.OffsetCore(sender, 1, 0)
		final := identity.OffsetCore(hub, 0, 1)

		in := singlePackInput(sender, 1, 0, 1, []byte{9})
		_, _, err := n.Route(sender, RouterParams{SendEn: true, HeaderMultipack: SinglePack, RecvEndPhase: phase}, in, phase)
		Expect(err).NotTo(HaveOccurred())

		relayParams := RouterParams{
			MulticastRelayOrNot: Relay,
			MulticastRelayNum:   1,
			Dx:                  0, Dy: 1,
		}
		state, _, err := n.Route(hub, relayParams, nil, phase)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(Equal(Success))

		Expect(n.multicastRelayCount(hub, phase)).To(Equal(0), "relay must consume the source pool")

		recvParams := RouterParams{RecvEn: true, ReceivedStopNum: 1, RecvAddress: 0, DinLength: 1 << 16}
		_, out, err := n.Route(final, recvParams, nil, phase)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(1))
	})

	It("reports a CountMismatch when Extract's expected count is wrong", func() {
		array := chipArray()
		chip := array.NewChip(0, 0)
		sender := chip.NewCore(0, 0)

		in := []memory.Block{
			{Core: sender, Data: HeadBaseBytes(HeadBase{A: 0}), Length: 4},
			{Core: sender, Data: []byte{1, 2}, Length: 2},
		}
		_, _, err := n.Route(sender, RouterParams{SendEn: true, HeaderMultipack: SinglePack}, in, phase)
		Expect(err).NotTo(HaveOccurred())

		// The header's zero offset addresses the packet back to the sender
		// itself (OffsetCore(sender, 0, 0)), so no packet was ever addressed
		// to FPGA and any positive expectation must fail with CountMismatch.
		_, err = n.Extract(phase, 0, sender, 1)
		Expect(err).To(HaveOccurred())
	})
})
