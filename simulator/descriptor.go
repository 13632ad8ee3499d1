// Package simulator builds the component tree - ChipArray, Chip, Core,
// per-phase PI groups, and the initial data blocks - out of a binary
// instruction descriptor. Grounded on the original's Simulator::mapConfig,
// which does the same job against a protobuf assembly.Config; this
// simulator isn't paired with that protobuf schema, so the descriptor here
// is the module's own JSON encoding: chips -> cores -> phase groups -> the
// four PI slots, plus static/dynamic data blocks keyed by chip/core. It has
// no per-step level; n_step is a single top-level count.
package simulator

// Descriptor is the top-level parsed shape: one chip array's worth of
// chips, each carrying its cores' phase groups, plus the data blocks that
// seed them.
type Descriptor struct {
	Seed          uint32          `json:"seed"`
	NStep         int             `json:"n_step"`
	Chips         []ChipConfig    `json:"chips"`
	StaticBlocks  []BlockConfig   `json:"static_blocks"`
	DynamicBlocks []BlockConfig   `json:"dynamic_blocks"`
}

// ChipConfig is one chip's coordinate plus its cores.
type ChipConfig struct {
	X     uint32       `json:"x"`
	Y     uint32       `json:"y"`
	Cores []CoreConfig `json:"cores"`
}

// CoreConfig is one core's coordinate plus its ordered phase groups.
type CoreConfig struct {
	X      uint32        `json:"x"`
	Y      uint32        `json:"y"`
	Phases []PhaseConfig `json:"phases"`
}

// PhaseConfig is one phase group's four PI slots, any of which may be
// absent.
type PhaseConfig struct {
	Axon   *PrimConfig `json:"axon,omitempty"`
	Soma1  *PrimConfig `json:"soma1,omitempty"`
	Router *PrimConfig `json:"router,omitempty"`
	Soma2  *PrimConfig `json:"soma2,omitempty"`

	// OutputSegments names (start, length) memory spans to register with
	// the memory visitor for this phase, e.g. for compare-mode dumps.
	OutputSegments []SegmentConfig `json:"output_segments,omitempty"`
}

// SegmentConfig is one memvisitor.AddSegment call's arguments.
type SegmentConfig struct {
	Start  int    `json:"start"`
	Length int    `json:"length"`
	Name   string `json:"name"`
}

// PrimConfig is one PI slot's opcode, parameters, and block wiring. Exactly
// one of Axon/Soma/Router should be populated, matching Kind.
type PrimConfig struct {
	Kind    string   `json:"kind"` // "axon", "soma", "router"
	Op      string   `json:"op"`
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`

	Axon   *AxonParamConfig   `json:"axon_params,omitempty"`
	Soma   *SomaParamConfig   `json:"soma_params,omitempty"`
	Router *RouterParamConfig `json:"router_params,omitempty"`
}

// AxonParamConfig mirrors primitive.AxonParams.
type AxonParamConfig struct {
	Bias      int32  `json:"bias"`
	Stride    int    `json:"stride"`
	KernelH   int    `json:"kernel_h"`
	KernelW   int    `json:"kernel_w"`
	Precision string `json:"precision"`
}

// SomaParamConfig mirrors primitive.SomaParams.
type SomaParamConfig struct {
	WindowH   int    `json:"window_h"`
	WindowW   int    `json:"window_w"`
	Threshold int32  `json:"threshold"`
	LUT       []byte `json:"lut,omitempty"`
	Precision string `json:"precision"`
}

// RouterParamConfig mirrors noc.RouterParams.
type RouterParamConfig struct {
	SendEn              bool   `json:"send_en"`
	RecvEn              bool   `json:"recv_en"`
	MulticastRelayOrNot string `json:"multicast_relay_or_not,omitempty"` // "", "multicast", "relay"
	MulticastRelayNum   int    `json:"multicast_relay_num"`
	ReceivedStopNum     int    `json:"received_stop_num"`
	Dx                  int32  `json:"dx"`
	Dy                  int32  `json:"dy"`
	RecvAddress         int    `json:"recv_address"`
	DinLength           int    `json:"din_length"`
	RecvEndPhase        uint32 `json:"recv_end_phase"`
	HeaderMultipack     string `json:"header_multipack,omitempty"` // "single", "multi"
}

// BlockConfig is one data block, either baked into the descriptor (static)
// or streamed through the IO client at run time (dynamic).
type BlockConfig struct {
	ChipX  uint32 `json:"chip_x"`
	ChipY  uint32 `json:"chip_y"`
	CoreX  uint32 `json:"core_x"`
	CoreY  uint32 `json:"core_y"`
	ID     string `json:"id"`
	Start  int    `json:"start"`
	Length int    `json:"length"`
	Size   int    `json:"size"`
	Data   []byte `json:"data,omitempty"`
	Phase  uint32 `json:"phase"`
	IOType string `json:"io_type,omitempty"` // "input", "output"; meaningless for static blocks

	// InputSourceID, when set, names another block on the same core whose
	// bytes this block materializes on read instead of its own backing
	// memory - the intra-core pipeline producer/consumer wiring.
	InputSourceID string `json:"input_source_id,omitempty"`

	// IOBlockID identifies a dynamic output block's packets in the NoC -
	// it must match the A field of the router PI header that sends this
	// block off-chip. Meaningless for static blocks and dynamic input
	// blocks.
	IOBlockID int `json:"io_block_id,omitempty"`
}
