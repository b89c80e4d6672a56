// Package engine resolves the parameters of configurable components and
// explores their legal configuration spaces.
//
// # Overview
//
// A component declares an ordered list of parameters. Each parameter has a
// domain updater, which computes the legal domain from the parameters before
// it, and an optional validator for side constraints. The declared order is a
// topological order: capabilities may only read earlier parameters, and reads
// outside that prefix are reported as dependency order violations.
//
// The engine offers three ways to walk a component:
//
//  1. Session - interactive, one parameter at a time, with backtracking
//  2. Explorer (exhaustive) - depth-first enumeration on an explicit stack
//  3. Explorer (random) - random walks followed by parallel hypercube sampling
//
// # Capabilities
//
// Capabilities are bound at registration through a CapacityModel:
//
//	model := engine.Capabilities{
//	    "TP_DIM": {Update: func(env *engine.Env) (domain.Domain, error) {
//	        return domain.NewRange(1, 1024), nil
//	    }},
//	}
//	c, err := engine.NewComponent(decl, model, emitter)
//
// Capabilities receive an Env restricted to their declared arguments.
// A validator returns a plain error to reject a candidate; the message is
// shown to the operator and recorded during exploration.
//
// # Errors
//
// All engine failures are *EngineError values classified by ErrorClass.
// Rejections (ErrorClassValidation) and empty domains are recoverable: a
// session re-prompts and an explorer prunes the subtree. Order violations and
// failing capabilities abandon the path and are logged with the partial
// environment.
//
// # Exploration
//
//	res, err := engine.NewExplorer(engine.WithExplorerLogger(logger)).
//	    Explore(ctx, c, engine.ExploreOptions{
//	        Strategy: engine.StrategyRandom,
//	        Walks:    200,
//	        Target:   50,
//	        Workers:  4,
//	    })
//
// A random run that stops at its attempt budget returns the configurations it
// found with status partial and a budget-exceeded warning.
package engine
