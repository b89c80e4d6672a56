package components

import (
	"context"
	"fmt"
	"strings"

	"github.com/paramforge/paramforge/pkg/domain"
	"github.com/paramforge/paramforge/pkg/engine"
)

const (
	maxSSR        = 16
	maxCascLen    = 16
	maxKernels    = 64
	maxWindow     = 4096
	maxPingPong   = maxWindow / 2
	ssrCascHeader = "ssr_casc_graph.hpp"
)

// lanes is the number of samples one vector operation consumes.
func lanes(dataType string) int64 {
	switch dataType {
	case "int16", "cint16":
		return 8
	default:
		return 4
	}
}

// SSRCascModel returns the model of the ssr_casc component. TP_SSR divides 16,
// TP_CASC_LEN divides 8 and their product, the kernel count, may not exceed 64.
func SSRCascModel() engine.Capabilities {
	return engine.Capabilities{
		"TT_DATA": {Update: fixed(domain.NewEnum(domain.Strs("int16", "cint16", "int32", "cint32", "float", "cfloat")...))},
		"TP_SSR":  {Update: fixed(domain.NewEnum(domain.Divisors(16, 1, maxSSR)...))},
		"TP_CASC_LEN": {
			Update:   fixed(domain.NewEnum(domain.Divisors(8, 1, maxCascLen)...)),
			Validate: validateKernelCount,
		},
		"TP_WINDOW_VSIZE": {Update: updateWindow},
	}
}

func validateKernelCount(v domain.Value, env *engine.Env) error {
	if n := env.Int("TP_SSR") * v.AsInt(); n > maxKernels {
		return fmt.Errorf("TP_SSR * TP_CASC_LEN = %d exceeds %d kernels", n, maxKernels)
	}
	return nil
}

// updateWindow splits the window evenly over the SSR ports in whole vectors.
func updateWindow(env *engine.Env) (domain.Domain, error) {
	g := lanes(env.String("TT_DATA")) * env.Int("TP_SSR")
	return domain.NewRangeWithPingPong(g, maxWindow, maxPingPong).WithStep(g), nil
}

func emitSSRCasc(_ context.Context, cfg *engine.Configuration, graphName string) (*engine.Artifact, error) {
	if graphName == "" {
		graphName = DefaultGraphName
	}
	dt := str(cfg, "TT_DATA")
	ssr := num(cfg, "TP_SSR")
	casc := num(cfg, "TP_CASC_LEN")
	window := num(cfg, "TP_WINDOW_VSIZE")
	if ssr <= 0 {
		return nil, fmt.Errorf("TP_SSR must be positive, got %d", ssr)
	}

	ports := make([]engine.Port, 0, 2*ssr)
	for i := int64(0); i < ssr; i++ {
		ports = append(ports, engine.Port{
			Name: fmt.Sprintf("in[%d]", i), Direction: engine.PortIn, Kind: engine.PortBlock,
			DataType: dt, Count: window / ssr,
		})
	}
	for i := int64(0); i < ssr; i++ {
		ports = append(ports, engine.Port{
			Name: fmt.Sprintf("out[%d]", i), Direction: engine.PortOut, Kind: engine.PortBlock,
			DataType: dt, Count: window / ssr,
		})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "class %s : public adf::graph {\npublic:\n", graphName)
	fmt.Fprintf(&sb, "  std::array<adf::port<input>, %d> in;\n", ssr)
	fmt.Fprintf(&sb, "  std::array<adf::port<output>, %d> out;\n\n", ssr)
	fmt.Fprintf(&sb, "  xf::dsp::aie::ssr_casc::ssr_casc_graph<\n    %s, //TT_DATA\n    %d, //TP_SSR\n    %d, //TP_CASC_LEN\n    %d //TP_WINDOW_VSIZE\n  > kernel;\n\n",
		dt, ssr, casc, window)
	fmt.Fprintf(&sb, "  %s() : kernel() {\n    for (int i = 0; i < %d; i++) {\n", graphName, ssr)
	sb.WriteString("      adf::connect<> net_in(in[i], kernel.in[i]);\n")
	sb.WriteString("      adf::connect<> net_out(kernel.out[i], out[i]);\n")
	sb.WriteString("    }\n  }\n};\n")

	return &engine.Artifact{
		Text:        sb.String(),
		HeaderFile:  ssrCascHeader,
		SearchPaths: []string{"L2/include/aie", "L1/include/aie", "L1/src/aie"},
		Ports:       ports,
	}, nil
}

func num(cfg *engine.Configuration, name string) int64 {
	v, _ := cfg.Get(name)
	return v.AsInt()
}

func str(cfg *engine.Configuration, name string) string {
	v, _ := cfg.Get(name)
	return v.AsString()
}
