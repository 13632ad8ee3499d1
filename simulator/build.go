package simulator

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/bsim/chip"
	"github.com/sarchlab/bsim/config"
	"github.com/sarchlab/bsim/context"
	"github.com/sarchlab/bsim/core"
	"github.com/sarchlab/bsim/errs"
	"github.com/sarchlab/bsim/identity"
	"github.com/sarchlab/bsim/ioclient"
	"github.com/sarchlab/bsim/memory"
	"github.com/sarchlab/bsim/memvisitor"
	"github.com/sarchlab/bsim/noc"
	"github.com/sarchlab/bsim/primitive"
)

// Result is everything Build assembles: the runnable component tree plus
// the shared Context and memory visitor a caller needs to inspect output
// after running it.
type Result struct {
	ChipArray *chip.ChipArray
	Context   *context.Context
	Visitor   *memvisitor.Visitor
}

// Build parses descriptor (this module's JSON encoding of BehaviorConfig
// plus DataConfig) and constructs the Chip -> Core -> PhaseGroup tree, plus
// every static and dynamic data block it names. Parsing is strict: any
// malformed or unrecognized field aborts with ParseError before a single
// goroutine is spawned, matching the original's "parse once at start-up,
// abort before any thread spawns" contract.
func Build(descriptor []byte, arrayName, caseName string, ioAddress string, cfg config.Config) (*Result, error) {
	var d Descriptor
	dec := json.NewDecoder(bytes.NewReader(descriptor))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return nil, errs.New("simulator.Build", errs.ErrParse, err)
	}

	cfg.Seed = d.Seed
	ctx := context.New(cfg)
	ctx.NStep = d.NStep
	ctx.Seed = d.Seed

	visitor := memvisitor.New()

	arrayID := identity.NewChipArray(arrayName)
	cores := make(map[coreKey]*core.Core)
	coreIDs := make(map[coreKey]identity.ID)
	ioClients := make(map[coreKey]*ioclient.Client)

	chips := make([]*chip.Chip, 0, len(d.Chips))
	for _, cc := range d.Chips {
		chipID := arrayID.NewChip(cc.X, cc.Y)

		chipCores := make([]*core.Core, 0, len(cc.Cores))
		for _, co := range cc.Cores {
			coreID := chipID.NewCore(co.X, co.Y)
			ctx.Register(coreID)

			groups, err := buildGroups(ctx, coreID, co.Phases, visitor)
			if err != nil {
				return nil, err
			}

			ioClient := ioclient.NewClient(coreID, ctx.NoC, ctx.VMem, ioAddress)
			ioClient.CaseName = caseName
			ioClient.Seed = d.Seed

			built := core.Build(coreID.String(), sim.NewSerialEngine(), 1, coreID, ctx, groups)
			built.IOClient = ioClient
			built.Visitor = visitor

			key := coreKey{cc.X, cc.Y, co.X, co.Y}
			cores[key] = built
			coreIDs[key] = coreID
			ioClients[key] = ioClient
			chipCores = append(chipCores, built)
		}

		chips = append(chips, &chip.Chip{ID: chipID, Cores: chipCores})
	}

	for _, bc := range d.StaticBlocks {
		if err := loadBlock(ctx, arrayID, bc); err != nil {
			return nil, err
		}
	}
	for _, bc := range d.DynamicBlocks {
		if err := loadDynamicBlock(ctx, arrayID, ioClients, bc); err != nil {
			return nil, err
		}
	}

	return &Result{
		ChipArray: &chip.ChipArray{ID: arrayID, Chips: chips},
		Context:   ctx,
		Visitor:   visitor,
	}, nil
}

type coreKey struct{ chipX, chipY, coreX, coreY uint32 }

func loadBlock(ctx *context.Context, arrayID identity.ID, bc BlockConfig) error {
	chipID := arrayID.NewChip(bc.ChipX, bc.ChipY)
	coreID := chipID.NewCore(bc.CoreX, bc.CoreY)
	if !ctx.Known(coreID) {
		return errs.New("simulator.loadBlock", errs.ErrNotFound,
			fmt.Errorf("block %s references unknown core %s", bc.ID, coreID.String()))
	}

	blockID := coreID.NewDataBlock(bc.ID)
	length := bc.Length
	if length == 0 {
		length = bc.Size
	}

	var inputSource identity.ID
	if bc.InputSourceID != "" {
		inputSource = coreID.NewDataBlock(bc.InputSourceID)
	}

	return ctx.VMem.InitMemoryBlock(memory.Block{
		ID:          blockID,
		Core:        coreID,
		Data:        bc.Data,
		Start:       bc.Start,
		Length:      length,
		Size:        bc.Size,
		InputSource: inputSource,
	})
}

// loadDynamicBlock queues a dynamic block's IO request on its core's
// ioclient.Client instead of writing data straight into VMem: an "input"
// block is fetched from the streamer on its declared phase and applied to
// VMem once the response arrives (ioclient.Client.applyResponse); an
// "output" block is extracted from the NoC and pushed to the streamer
// instead.
func loadDynamicBlock(ctx *context.Context, arrayID identity.ID, ioClients map[coreKey]*ioclient.Client, bc BlockConfig) error {
	key := coreKey{bc.ChipX, bc.ChipY, bc.CoreX, bc.CoreY}
	ioClient, ok := ioClients[key]
	if !ok {
		return errs.New("simulator.loadDynamicBlock", errs.ErrNotFound,
			fmt.Errorf("dynamic block %s references unknown core (%d,%d,%d,%d)", bc.ID, bc.ChipX, bc.ChipY, bc.CoreX, bc.CoreY))
	}

	chipID := arrayID.NewChip(bc.ChipX, bc.ChipY)
	coreID := chipID.NewCore(bc.CoreX, bc.CoreY)

	req := ioclient.Request{
		ID:        bc.ID,
		BlockID:   bc.IOBlockID,
		PhaseID:   int(bc.Phase),
		Seed:      ioClient.Seed,
		BlockSize: bc.Size,
		CaseName:  ioClient.CaseName,
	}

	switch bc.IOType {
	case "input":
		req.RequestType = ioclient.DynamicInput
		length := bc.Length
		if length == 0 {
			length = bc.Size
		}
		blockID := coreID.NewDataBlock(bc.ID)
		if err := ctx.VMem.InitMemoryBlock(memory.Block{
			ID: blockID, Core: coreID, Start: bc.Start, Length: length, Size: bc.Size,
		}); err != nil {
			return err
		}
		ioClient.AddInputRequest(int(bc.Phase), req)

	case "output":
		req.RequestType = ioclient.OutputData
		ioClient.AddOutputRequest(int(bc.Phase), req)

	default:
		return errs.New("simulator.loadDynamicBlock", errs.ErrParse,
			fmt.Errorf("dynamic block %s has unknown io_type %q", bc.ID, bc.IOType))
	}
	return nil
}

func buildGroups(ctx *context.Context, coreID identity.ID, phases []PhaseConfig, visitor *memvisitor.Visitor) ([]primitive.Group, error) {
	groups := make([]primitive.Group, len(phases))
	for i, pc := range phases {
		var err error
		groups[i].Axon, err = buildPrim(coreID, pc.Axon)
		if err != nil {
			return nil, err
		}
		groups[i].Soma1, err = buildPrim(coreID, pc.Soma1)
		if err != nil {
			return nil, err
		}
		groups[i].Router, err = buildPrim(coreID, pc.Router)
		if err != nil {
			return nil, err
		}
		groups[i].Soma2, err = buildPrim(coreID, pc.Soma2)
		if err != nil {
			return nil, err
		}

		for _, seg := range pc.OutputSegments {
			visitor.AddSegment(coreID, uint32(i), seg.Start, seg.Length, seg.Name)
		}
	}
	return groups, nil
}

// buildPrim constructs a Primitive from its slot config. The PI's Kind
// comes from pc.Kind, not from which of the four slots it was declared
// under: a Soma1 slot commonly holds an Axon-kind PI (e.g. the echo
// scenario's AddBias), matching the original's own slot/kind independence.
func buildPrim(coreID identity.ID, pc *PrimConfig) (*primitive.Primitive, error) {
	if pc == nil {
		return nil, nil
	}

	kind, err := parseKind(pc.Kind)
	if err != nil {
		return nil, err
	}

	inputs := make([]identity.ID, len(pc.Inputs))
	for i, name := range pc.Inputs {
		inputs[i] = coreID.NewDataBlock(name)
	}
	outputs := make([]identity.ID, len(pc.Outputs))
	for i, name := range pc.Outputs {
		outputs[i] = coreID.NewDataBlock(name)
	}

	params, err := buildParams(kind, pc)
	if err != nil {
		return nil, err
	}

	return &primitive.Primitive{
		Kind:    kind,
		Op:      pc.Op,
		Params:  params,
		Inputs:  inputs,
		Outputs: outputs,
	}, nil
}

func parseKind(s string) (primitive.Kind, error) {
	switch s {
	case "axon":
		return primitive.Axon, nil
	case "soma":
		return primitive.Soma, nil
	case "router":
		return primitive.Router, nil
	default:
		return 0, errs.New("simulator.parseKind", errs.ErrParse, fmt.Errorf("unknown PI kind %q", s))
	}
}

func buildParams(kind primitive.Kind, pc *PrimConfig) (primitive.Params, error) {
	switch kind {
	case primitive.Axon:
		if pc.Axon == nil {
			return nil, errs.New("simulator.buildParams", errs.ErrParse,
				fmt.Errorf("axon PI %q missing axon_params", pc.Op))
		}
		prec, err := parsePrecision(pc.Axon.Precision)
		if err != nil {
			return nil, err
		}
		return primitive.AxonParams{
			Op:       pc.Op,
			Bias:     pc.Axon.Bias,
			Stride:   pc.Axon.Stride,
			KernelHW: [2]int{pc.Axon.KernelH, pc.Axon.KernelW},
			Prec:     prec,
		}, nil

	case primitive.Soma:
		if pc.Soma == nil {
			return nil, errs.New("simulator.buildParams", errs.ErrParse,
				fmt.Errorf("soma PI %q missing soma_params", pc.Op))
		}
		prec, err := parsePrecision(pc.Soma.Precision)
		if err != nil {
			return nil, err
		}
		return primitive.SomaParams{
			Op:        pc.Op,
			WindowHW:  [2]int{pc.Soma.WindowH, pc.Soma.WindowW},
			Threshold: pc.Soma.Threshold,
			LUT:       pc.Soma.LUT,
			Prec:      prec,
		}, nil

	case primitive.Router:
		if pc.Router == nil {
			return nil, errs.New("simulator.buildParams", errs.ErrParse,
				fmt.Errorf("router PI missing router_params"))
		}
		broadcast, err := parseBroadcastKind(pc.Router.MulticastRelayOrNot)
		if err != nil {
			return nil, err
		}
		packType, err := parsePacketType(pc.Router.HeaderMultipack)
		if err != nil {
			return nil, err
		}
		return primitive.RouterParams{RouterParams: noc.RouterParams{
			SendEn:              pc.Router.SendEn,
			RecvEn:              pc.Router.RecvEn,
			MulticastRelayOrNot: broadcast,
			MulticastRelayNum:   pc.Router.MulticastRelayNum,
			ReceivedStopNum:     pc.Router.ReceivedStopNum,
			Dx:                  pc.Router.Dx,
			Dy:                  pc.Router.Dy,
			RecvAddress:         pc.Router.RecvAddress,
			DinLength:           pc.Router.DinLength,
			RecvEndPhase:        pc.Router.RecvEndPhase,
			HeaderMultipack:     packType,
		}}, nil
	}

	return nil, errs.New("simulator.buildParams", errs.ErrInvariant,
		fmt.Errorf("unknown PI kind %v", kind))
}

func parsePrecision(s string) (primitive.Precision, error) {
	switch s {
	case "", "int32":
		return primitive.Int32, nil
	case "int8":
		return primitive.Int8, nil
	case "uint8":
		return primitive.UInt8, nil
	case "ternary":
		return primitive.Ternary, nil
	default:
		return 0, errs.New("simulator.parsePrecision", errs.ErrParse, fmt.Errorf("unknown precision %q", s))
	}
}

func parseBroadcastKind(s string) (noc.BroadcastKind, error) {
	switch s {
	case "":
		return noc.Normal, nil
	case "multicast":
		return noc.Multicast, nil
	case "relay":
		return noc.Relay, nil
	default:
		return 0, errs.New("simulator.parseBroadcastKind", errs.ErrParse, fmt.Errorf("unknown broadcast kind %q", s))
	}
}

func parsePacketType(s string) (noc.PacketType, error) {
	switch s {
	case "", "single":
		return noc.SinglePack, nil
	case "multi":
		return noc.MultiPack, nil
	default:
		return 0, errs.New("simulator.parsePacketType", errs.ErrParse, fmt.Errorf("unknown packet type %q", s))
	}
}
