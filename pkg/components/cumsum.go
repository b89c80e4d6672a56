package components

import (
	"context"
	"fmt"
	"strings"

	"github.com/paramforge/paramforge/pkg/domain"
	"github.com/paramforge/paramforge/pkg/engine"
)

// DefaultGraphName names the generated class when the caller gives none.
const DefaultGraphName = "default_graphname"

const cumsumHeader = "cumsum_graph.hpp"

var cumsumSearchPaths = []string{
	"L2/include/aie",
	"L2/tests/aie/common/inc",
	"L1/include/aie",
	"L1/src/aie",
	"L1/tests/aie/inc",
	"L1/tests/aie/src",
}

// CumsumModel returns the model of the cumsum component. Buffer sizes are
// computed in the output type, which is never narrower than the input.
func CumsumModel() engine.Capabilities {
	return engine.Capabilities{
		"AIE_VARIANT":   {Update: fixed(domain.NewEnum(domain.Ints(VariantAIE, VariantAIEML, VariantAIEMLv2)...))},
		"TT_DATA":       {Update: updateCumsumData},
		"TT_OUT_DATA":   {Update: updateCumsumOutData},
		"TP_DIM_A":      {Update: updateDimA},
		"TP_DIM_B":      {Update: updateDimB},
		"TP_NUM_FRAMES": {Update: updateNumFrames},
		"TP_MODE":       {Update: updateMode},
		"TP_SHIFT":      {Update: updateShift},
		"TP_RND":        {Update: updateRounding},
		"TP_SAT":        {Update: fixed(domain.NewEnum(domain.Ints(0, 1, 3)...))},
	}
}

func updateCumsumData(env *engine.Env) (domain.Domain, error) {
	switch env.Int("AIE_VARIANT") {
	case VariantAIEML:
		return domain.NewEnum(domain.Strs("int16", "cint16", "int32", "cint32", "bfloat16", "cbfloat16")...), nil
	case VariantAIEMLv2:
		return domain.NewEnum(domain.Strs("int16", "cint16", "int32", "cint32", "bfloat16")...), nil
	default:
		return domain.NewEnum(domain.Strs("int16", "cint16", "int32", "cint32", "float", "cfloat")...), nil
	}
}

func updateCumsumOutData(env *engine.Env) (domain.Domain, error) {
	switch dt := env.String("TT_DATA"); dt {
	case "int16":
		return domain.NewEnum(domain.Strs("int16", "int32")...), nil
	case "cint16":
		return domain.NewEnum(domain.Strs("cint16", "cint32")...), nil
	default:
		return domain.NewEnum(domain.Str(dt)), nil
	}
}

// frameGeometry holds the buffer arithmetic shared by the size updaters and
// the port descriptors.
type frameGeometry struct {
	memBytes    int64
	sampleBytes int64
	samplesInIO int64
}

func geometry(variant int64, outType string) (frameGeometry, error) {
	n, err := SizeOf(outType)
	if err != nil {
		return frameGeometry{}, err
	}
	return frameGeometry{
		memBytes:    dataMemoryBytes(variant),
		sampleBytes: n,
		samplesInIO: maxReadWriteBits(variant) / 8 / n,
	}, nil
}

// dimACeil is TP_DIM_A padded to a whole number of load/store widths.
func (g frameGeometry) dimACeil(dimA int64) int64 {
	return ceilMultiple(dimA, g.samplesInIO)
}

// sizeRange is [1, max] with the ping-pong bound at half of max.
func sizeRange(max int64) domain.Domain {
	return domain.NewRangeWithPingPong(1, max, max/2)
}

func updateDimA(env *engine.Env) (domain.Domain, error) {
	g, err := geometry(env.Int("AIE_VARIANT"), env.String("TT_OUT_DATA"))
	if err != nil {
		return nil, err
	}
	return sizeRange(g.memBytes / g.sampleBytes), nil
}

func updateDimB(env *engine.Env) (domain.Domain, error) {
	g, err := geometry(env.Int("AIE_VARIANT"), env.String("TT_OUT_DATA"))
	if err != nil {
		return nil, err
	}
	return sizeRange(g.memBytes / (g.dimACeil(env.Int("TP_DIM_A")) * g.sampleBytes)), nil
}

func updateNumFrames(env *engine.Env) (domain.Domain, error) {
	g, err := geometry(env.Int("AIE_VARIANT"), env.String("TT_OUT_DATA"))
	if err != nil {
		return nil, err
	}
	frame := g.dimACeil(env.Int("TP_DIM_A")) * env.Int("TP_DIM_B")
	return sizeRange(g.memBytes / (frame * g.sampleBytes)), nil
}

func updateMode(env *engine.Env) (domain.Domain, error) {
	single := env.Int("TP_DIM_B") == 1
	var modes []int64
	switch {
	case env.Int("AIE_VARIANT") == VariantAIE && single:
		modes = []int64{0}
	case env.Int("AIE_VARIANT") == VariantAIE:
		modes = []int64{0, 1}
	case single:
		modes = []int64{0, 2}
	default:
		modes = []int64{0, 1, 2}
	}

	vals := domain.Ints(modes...)
	switch env.String("TT_DATA") {
	case "bfloat16", "cbfloat16":
		vals = domain.Restrict(vals, func(v domain.Value) bool { return v.AsInt() != 2 })
	}
	return domain.NewEnum(vals...), nil
}

func updateShift(env *engine.Env) (domain.Domain, error) {
	var max int64
	switch env.String("TT_OUT_DATA") {
	case "int16", "cint16":
		max = 31
	case "int32", "cint32":
		max = 59
	}
	return domain.NewRange(0, max), nil
}

func updateRounding(env *engine.Env) (domain.Domain, error) {
	if env.Int("AIE_VARIANT") == VariantAIE {
		return domain.NewRange(0, 7), nil
	}
	return domain.NewEnum(domain.Ints(0, 1, 8, 9, 10, 11, 12, 13)...), nil
}

func emitCumsum(_ context.Context, cfg *engine.Configuration, graphName string) (*engine.Artifact, error) {
	if graphName == "" {
		graphName = DefaultGraphName
	}
	variant := num(cfg, "AIE_VARIANT")
	in, out := str(cfg, "TT_DATA"), str(cfg, "TT_OUT_DATA")
	dimA, dimB, frames := num(cfg, "TP_DIM_A"), num(cfg, "TP_DIM_B"), num(cfg, "TP_NUM_FRAMES")

	g, err := geometry(variant, out)
	if err != nil {
		return nil, err
	}
	window := g.dimACeil(dimA) * dimB * frames

	var sb strings.Builder
	fmt.Fprintf(&sb, "class %s : public adf::graph {\npublic:\n", graphName)
	sb.WriteString("  static constexpr unsigned int TP_SSR = 1;\n")
	sb.WriteString("  template <typename dir>\n  using ssr_port_array = std::array<adf::port<dir>, TP_SSR>;\n\n")
	sb.WriteString("  ssr_port_array<input> in;\n  ssr_port_array<output> out;\n\n")
	sb.WriteString("  xf::dsp::aie::cumsum::cumsum_graph<\n")
	fmt.Fprintf(&sb, "    %s, //TT_DATA\n", in)
	fmt.Fprintf(&sb, "    %s, //TT_OUT_DATA\n", out)
	for _, name := range []string{"TP_DIM_A", "TP_DIM_B", "TP_NUM_FRAMES", "TP_MODE", "TP_SHIFT", "TP_RND"} {
		fmt.Fprintf(&sb, "    %d, //%s\n", num(cfg, name), name)
	}
	fmt.Fprintf(&sb, "    %d //TP_SAT\n  > cumsum;\n\n", num(cfg, "TP_SAT"))
	fmt.Fprintf(&sb, "  %s() : cumsum() {\n", graphName)
	sb.WriteString("    for (int i = 0; i < TP_SSR; i++) {\n")
	sb.WriteString("      adf::connect<> net_in(in[i], cumsum.in[i]);\n")
	sb.WriteString("      adf::connect<> net_out(cumsum.out[i], out[i]);\n")
	sb.WriteString("    }\n  }\n};\n")

	return &engine.Artifact{
		Text:        sb.String(),
		HeaderFile:  cumsumHeader,
		SearchPaths: append([]string(nil), cumsumSearchPaths...),
		Ports: []engine.Port{
			{Name: "in[0]", Direction: engine.PortIn, Kind: engine.PortBlock, DataType: in, Count: window},
			{Name: "out[0]", Direction: engine.PortOut, Kind: engine.PortBlock, DataType: out, Count: window},
		},
	}, nil
}
