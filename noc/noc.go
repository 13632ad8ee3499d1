package noc

import (
	"fmt"
	"sync"

	"github.com/sarchlab/bsim/errs"
	"github.com/sarchlab/bsim/identity"
	"github.com/sarchlab/bsim/memory"
)

// RouterState is the router PI's per-core progress through a phase's
// send/multicast-or-relay/receive cascade. A router PI is re-invoked every
// cycle it isn't done; Route returns the state reached so the caller can
// decide whether to retry.
type RouterState int

const (
	Init RouterState = iota
	Send
	Relay
	Received
	Success
)

func (s RouterState) String() string {
	switch s {
	case Init:
		return "Init"
	case Send:
		return "Send"
	case Relay:
		return "Relay"
	case Received:
		return "Received"
	case Success:
		return "Success"
	default:
		return "Unknown"
	}
}

// Done reports whether the router PI has finished this phase.
func (s RouterState) Done() bool { return s == Success }

// phaseKey indexes the packet pool by destination core and receiving phase.
type phaseKey struct {
	core  identity.ID
	phase uint32
}

// NoC is the packet-switched interconnect shared by every core on a chip
// array: a destination-indexed pool of in-flight packets and a per-core
// router progress table, each behind its own lock so a lookup on one never
// blocks a mutation of the other. Grounded on original_source's noc.h/.cpp.
type NoC struct {
	poolMu sync.RWMutex
	pool   map[phaseKey][]Packet

	stateMu sync.RWMutex
	state   map[identity.ID]RouterState
}

// New returns an empty NoC.
func New() *NoC {
	return &NoC{
		pool:  make(map[phaseKey][]Packet),
		state: make(map[identity.ID]RouterState),
	}
}

func (n *NoC) getState(core identity.ID) RouterState {
	n.stateMu.RLock()
	s, ok := n.state[core]
	n.stateMu.RUnlock()
	if ok {
		return s
	}
	return Init
}

func (n *NoC) setState(core identity.ID, s RouterState) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.state[core] = s
}

func (n *NoC) clearState(core identity.ID) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	delete(n.state, core)
}

func (n *NoC) send(packets []Packet) {
	n.poolMu.Lock()
	defer n.poolMu.Unlock()
	for _, p := range packets {
		key := phaseKey{core: p.Header.Destination, phase: p.Header.RecvEndPhase}
		n.pool[key] = append(n.pool[key], p)
	}
}

func (n *NoC) multicastRelayCount(core identity.ID, phase uint32) int {
	n.poolMu.RLock()
	defer n.poolMu.RUnlock()
	count := 0
	for _, p := range n.pool[phaseKey{core, phase}] {
		if p.Header.BroadcastOrRelay {
			count++
		}
	}
	return count
}

func (n *NoC) stopCount(core identity.ID, phase uint32) int {
	n.poolMu.RLock()
	defer n.poolMu.RUnlock()
	count := 0
	for _, p := range n.pool[phaseKey{core, phase}] {
		if p.Header.Stop {
			count++
		}
	}
	return count
}

// peekMulticast returns up to n broadcast-flagged packets from core's pool
// at phase without removing them - multicast is non-destructive because
// every downstream hop reads the same multicast packets again.
func (n *NoC) peekMulticast(core identity.ID, phase uint32, limit int) []Packet {
	n.poolMu.RLock()
	defer n.poolMu.RUnlock()
	var out []Packet
	for _, p := range n.pool[phaseKey{core, phase}] {
		if p.Header.BroadcastOrRelay && len(out) < limit {
			out = append(out, p)
		}
	}
	return out
}

// takeRelay removes up to limit broadcast-flagged packets from core's pool
// at phase and returns them - relay is destructive, since the packet is
// forwarded on rather than replicated.
func (n *NoC) takeRelay(core identity.ID, phase uint32, limit int) []Packet {
	n.poolMu.Lock()
	defer n.poolMu.Unlock()
	key := phaseKey{core, phase}
	pool := n.pool[key]
	var taken, kept []Packet
	for _, p := range pool {
		if p.Header.BroadcastOrRelay && len(taken) < limit {
			taken = append(taken, p)
		} else {
			kept = append(kept, p)
		}
	}
	n.pool[key] = kept
	return taken
}

// takeReceived consumes stopNum stop-terminated packet runs from core's pool
// at phase, in FIFO order, and returns everything up to and including the
// stopNum-th Stop-flagged packet.
func (n *NoC) takeReceived(core identity.ID, phase uint32, stopNum int) []Packet {
	n.poolMu.Lock()
	defer n.poolMu.Unlock()
	key := phaseKey{core, phase}
	pool := n.pool[key]

	count := stopNum
	cut := len(pool)
	for idx, p := range pool {
		if p.Header.Stop {
			count--
			if count == 0 {
				cut = idx + 1
				break
			}
		}
	}

	received := make([]Packet, cut)
	copy(received, pool[:cut])
	n.pool[key] = pool[cut:]
	return received
}

// Route drives one core's router PI through the Init->Send->Relay->
// Received->Success cascade for one phase, falling through to the next
// stage only when that stage's precondition is met; a stage whose
// precondition isn't yet met returns its own state so the caller retries.
// Grounded line-for-line on original_source's NoC::route.
func (n *NoC) Route(core identity.ID, params RouterParams, inBlocks []memory.Block, phase uint32) (RouterState, []memory.Block, error) {
	state := n.getState(core)

	if state == Init {
		if params.SendEn {
			packets, err := Pack(inBlocks, params)
			if err != nil {
				return state, nil, err
			}
			n.send(packets)
		}
		n.setState(core, Send)
		state = Send
	}

	if state == Send {
		if params.MulticastRelayOrNot != Normal {
			have := n.multicastRelayCount(core, phase)
			if have < params.MulticastRelayNum {
				return Send, nil, nil
			}

			var selected []Packet
			switch params.MulticastRelayOrNot {
			case Multicast:
				selected = n.peekMulticast(core, phase, params.MulticastRelayNum)
			case Relay:
				selected = n.takeRelay(core, phase, params.MulticastRelayNum)
			}
			n.send(Repack(selected, params.Dx, params.Dy))
		}
		n.setState(core, Relay)
		state = Relay
	}

	var outBlocks []memory.Block
	if state == Relay {
		if params.RecvEn {
			if n.stopCount(core, phase) < params.ReceivedStopNum {
				return Relay, nil, nil
			}
			received := n.takeReceived(core, phase, params.ReceivedStopNum)
			outBlocks = Unpack(received, params.RecvAddress, params.DinLength)
		}
		n.setState(core, Received)
		state = Received
	}

	if state == Received {
		n.clearState(core)
		return Success, outBlocks, nil
	}

	return state, nil, errs.New("noc.Route", errs.ErrInvariant,
		fmt.Errorf("unexpected router state %v for core %s", state, core))
}

// Extract collects every packet a core sent to the FPGA sentinel for a
// given output block during phase, sorted by offset, and concatenates their
// payload bytes - the path the IO client uses to read an output block back
// out of the NoC. A mismatch between the declared and actual packet count is
// a CountMismatch error, never a silent truncation.
func (n *NoC) Extract(phase uint32, blockID int, source identity.ID, expected int) ([]byte, error) {
	n.poolMu.Lock()
	key := phaseKey{core: identity.FPGA(), phase: phase}
	pool := n.pool[key]

	var matched []Packet
	var kept []Packet
	for _, p := range pool {
		if p.Header.Source == source && p.Header.BlockID == blockID {
			matched = append(matched, p)
		} else {
			kept = append(kept, p)
		}
	}
	n.pool[key] = kept
	n.poolMu.Unlock()

	if len(matched) != expected {
		return nil, errs.New("noc.Extract", errs.ErrCountMismatch,
			fmt.Errorf("block %d: got %d packets, expected %d", blockID, len(matched), expected))
	}

	sortByOffset(matched)

	var out []byte
	for _, p := range matched {
		out = append(out, p.Data.Data...)
	}
	return out, nil
}
