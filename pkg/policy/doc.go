// Package policy filters explored configurations with Open Policy Agent (OPA)
// Rego policies.
//
// An Engine compiles policies once into prepared queries and implements
// engine.ConfigurationFilter, so it can be passed in ExploreOptions.Filters.
// Every configuration that passes the capacity model's validators is then
// evaluated against each enabled policy; a configuration with a blocking
// violation is dropped and counted as filtered.
//
// # Writing policies
//
// A policy is a Rego module in a package under paramforge.explore that
// defines a deny set. The input document is:
//
//	{
//	  "component": "ssr_casc",
//	  "config":    {"TT_DATA": "cint16", "TP_SSR": 4, ...},
//	  "params":    ["TT_DATA", "TP_SSR", ...]
//	}
//
// Deny entries are strings or objects with a message and an optional
// severity:
//
//	# Keep explorations on small cascades.
//	# severity: error
//	# components: ssr_casc
//	package paramforge.explore.cascade
//
//	import rego.v1
//
//	deny contains msg if {
//	    input.config.TP_CASC_LEN > 4
//	    msg := sprintf("cascade of %d is too long", [input.config.TP_CASC_LEN])
//	}
//
// Violations of severity error or critical exclude the configuration;
// info and warning violations are only reported by Evaluate. Files default
// to severity error. Leading "# severity:" and "# components:" comments set
// the severity and restrict the policy to the listed components.
//
// # Loading
//
// The Loader reads .rego files and .json policy definitions or bundles from
// files and directories. Engine.Watch loads a set of paths and hot-reloads
// them through fsnotify, so a long exploration picks up edited policies:
//
//	pe := policy.NewEngine(logger)
//	if err := pe.LoadBuiltins(ctx); err != nil {
//	    return err
//	}
//	if err := pe.Watch(ctx, []string{"policies/"}); err != nil {
//	    return err
//	}
//	res, err := explorer.Explore(ctx, c, engine.ExploreOptions{
//	    Filters: []engine.ConfigurationFilter{pe},
//	})
//
// # Built-in Policies
//
//   - tile-budget: TP_SSR x TP_CASC_LEN must not exceed 32 kernels.
//   - power-of-two-sizes: TP_DIM_A, TP_DIM_B, TP_WINDOW_VSIZE and
//     TP_POINT_SIZE must be powers of two when present.
package policy
