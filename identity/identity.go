// Package identity defines the hierarchical naming scheme used across the
// simulator: fabrics, chips, cores, resources, and data blocks are all named
// by dotted, leaf-first strings built from a small, closed set of
// constructors.
package identity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the level of the hierarchy an ID names.
type Kind int

const (
	Invalid Kind = iota
	ChipArrayKind
	ChipKind
	CoreKind
	ResourceKind
	DataBlockKind
	FpgaKind
)

func (k Kind) String() string {
	switch k {
	case ChipArrayKind:
		return "ChipArray"
	case ChipKind:
		return "Chip"
	case CoreKind:
		return "Core"
	case ResourceKind:
		return "Resource"
	case DataBlockKind:
		return "DataBlock"
	case FpgaKind:
		return "Fpga"
	default:
		return "Invalid"
	}
}

// Fabric geometry constants. A chip is a CoresPerChipX x CoresPerChipY
// rectangle of cores; OffsetCore wraps dx/dy through these.
const (
	CoresPerChipX = 16
	CoresPerChipY = 10
)

// ID is an immutable, comparable hierarchical name. The zero value is
// Invalid. IDs are built exclusively through the constructors below, which
// enforce that a Chip is only built from a ChipArray, a Core only from a
// Chip, and so on.
type ID struct {
	kind Kind
	// segs holds the leaf-first dotted path, e.g. for a Core:
	// []string{"2_3", "0_0", "array"}.
	segs []string
}

// ErrParse is returned by Parse when a string is not a well-formed ID.
var ErrParse = errors.New("identity: malformed id string")

// NewChipArray constructs the unique ChipArray-kind ID with the given name.
func NewChipArray(name string) ID {
	return ID{kind: ChipArrayKind, segs: []string{name}}
}

// NewChip builds a Chip ID from its owning ChipArray.
func (a ID) NewChip(x, y uint32) ID {
	if a.kind != ChipArrayKind {
		panic("identity: NewChip requires a ChipArray id")
	}
	return ID{kind: ChipKind, segs: append([]string{coord(x, y)}, a.segs...)}
}

// NewCore builds a Core ID from its owning Chip.
func (c ID) NewCore(x, y uint32) ID {
	if c.kind != ChipKind {
		panic("identity: NewCore requires a Chip id")
	}
	return ID{kind: CoreKind, segs: append([]string{coord(x, y)}, c.segs...)}
}

// NewResource builds a Resource ID from its owning Core.
func (c ID) NewResource(name string) ID {
	if c.kind != CoreKind {
		panic("identity: NewResource requires a Core id")
	}
	return ID{kind: ResourceKind, segs: append([]string{name}, c.segs...)}
}

// NewDataBlock builds a DataBlock ID from its owning Core.
func (c ID) NewDataBlock(name string) ID {
	if c.kind != CoreKind {
		panic("identity: NewDataBlock requires a Core id")
	}
	return ID{kind: DataBlockKind, segs: append([]string{name}, c.segs...)}
}

// FPGA returns the sentinel identity used as the destination for packets
// leaving the simulated fabric.
func FPGA() ID {
	return ID{kind: FpgaKind, segs: []string{"FPGA"}}
}

func coord(x, y uint32) string {
	return strconv.FormatUint(uint64(x), 10) + "_" + strconv.FormatUint(uint64(y), 10)
}

// Kind returns the ID's hierarchy level.
func (id ID) Kind() Kind { return id.kind }

// Valid reports whether id is anything other than the zero value.
func (id ID) Valid() bool { return id.kind != Invalid }

// IsCore reports whether id names a Core.
func (id ID) IsCore() bool { return id.kind == CoreKind }

// IsFpga reports whether id is the FPGA sentinel.
func (id ID) IsFpga() bool { return id.kind == FpgaKind }

// String renders the dotted, leaf-first textual form.
func (id ID) String() string {
	if id.kind == Invalid {
		return ""
	}
	return strings.Join(id.segs, ".")
}

// Parse is the inverse of String for any ID previously produced by this
// package's constructors. The textual form does not carry the Kind tag, so
// the caller passes the expected kind: Parse checks that s has that kind's
// number of dotted segments (or is exactly "FPGA" for FpgaKind) and does
// not otherwise validate the segments. Resource and DataBlock strings have
// the same shape, so only the kind argument tells them apart.
func Parse(s string, kind Kind) (ID, error) {
	if s == "" {
		return ID{}, ErrParse
	}
	if kind == FpgaKind {
		if s != "FPGA" {
			return ID{}, ErrParse
		}
		return FPGA(), nil
	}
	segs := strings.Split(s, ".")
	want := segLenForKind(kind)
	if want < 0 || len(segs) != want {
		return ID{}, fmt.Errorf("%w: %q", ErrParse, s)
	}
	return ID{kind: kind, segs: segs}, nil
}

func segLenForKind(k Kind) int {
	switch k {
	case ChipArrayKind:
		return 1
	case ChipKind:
		return 2
	case CoreKind:
		return 3
	case ResourceKind, DataBlockKind:
		return 4
	default:
		return -1
	}
}

// GetChipArrayID returns the ChipArray ancestor of id.
func (id ID) GetChipArrayID() ID {
	switch id.kind {
	case ChipArrayKind:
		return id
	case ChipKind, CoreKind, ResourceKind, DataBlockKind:
		return ID{kind: ChipArrayKind, segs: []string{id.segs[len(id.segs)-1]}}
	default:
		return ID{}
	}
}

// GetChipID returns the Chip ancestor of id.
func (id ID) GetChipID() ID {
	switch id.kind {
	case ChipKind:
		return id
	case CoreKind, ResourceKind, DataBlockKind:
		n := len(id.segs)
		return ID{kind: ChipKind, segs: id.segs[n-2:]}
	default:
		return ID{}
	}
}

// GetCoreID returns the Core ancestor of id.
func (id ID) GetCoreID() ID {
	switch id.kind {
	case CoreKind:
		return id
	case ResourceKind, DataBlockKind:
		n := len(id.segs)
		return ID{kind: CoreKind, segs: id.segs[n-3:]}
	default:
		return ID{}
	}
}

// GetCoreXY returns the (x, y) tile coordinate encoded in a Core (or
// Resource/DataBlock descendant) ID.
func (id ID) GetCoreXY() (x, y uint32, err error) {
	core := id.GetCoreID()
	if !core.Valid() {
		return 0, 0, fmt.Errorf("identity: GetCoreXY on non-core id %q", id)
	}
	return parseCoord(core.segs[0])
}

// GetChipXY returns the (x, y) coordinate encoded in a Chip (or descendant)
// ID.
func (id ID) GetChipXY() (x, y uint32, err error) {
	chip := id.GetChipID()
	if !chip.Valid() {
		return 0, 0, fmt.Errorf("identity: GetChipXY on non-chip id %q", id)
	}
	return parseCoord(chip.segs[0])
}

func parseCoord(s string) (x, y uint32, err error) {
	parts := strings.SplitN(s, "_", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: bad coordinate %q", ErrParse, s)
	}
	xv, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrParse, err)
	}
	yv, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return uint32(xv), uint32(yv), nil
}

// OffsetCore computes the core identity reached by moving (dx, dy) from id,
// wrapping across chip boundaries through CoresPerChipX/Y. If the
// resulting chip coordinate is negative in either dimension, the FPGA
// sentinel identity is returned.
func OffsetCore(id ID, dx, dy int32) ID {
	if id.kind != CoreKind {
		panic("identity: OffsetCore requires a Core id")
	}

	coreX, coreY, err := id.GetCoreXY()
	if err != nil {
		panic(err)
	}
	chipX, chipY, err := id.GetChipXY()
	if err != nil {
		panic(err)
	}

	rawCoreX := int32(coreX)
	rawCoreY := int32(coreY)
	rawChipX := int32(chipX)
	rawChipY := int32(chipY)

	chipDX := dx / CoresPerChipX
	chipDY := dy / CoresPerChipY

	newCoreX := rawCoreX + dx%CoresPerChipX
	newCoreY := rawCoreY + dy%CoresPerChipY

	if newCoreX >= CoresPerChipX {
		newCoreX -= CoresPerChipX
		chipDX++
	} else if newCoreX < 0 {
		newCoreX += CoresPerChipX
		chipDX--
	}

	if newCoreY >= CoresPerChipY {
		newCoreY -= CoresPerChipY
		chipDY++
	} else if newCoreY < 0 {
		newCoreY += CoresPerChipY
		chipDY--
	}

	newChipX := rawChipX + chipDX
	newChipY := rawChipY + chipDY

	if newChipX < 0 || newChipY < 0 {
		return FPGA()
	}

	array := id.GetChipArrayID()
	chip := array.NewChip(uint32(newChipX), uint32(newChipY))
	return chip.NewCore(uint32(newCoreX), uint32(newCoreY))
}
