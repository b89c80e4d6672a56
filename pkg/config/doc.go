// Package config loads component declarations, their Starlark capacity
// models, externally supplied defaults and the tool settings file.
//
// # Overview
//
// A scripted component is a declaration file plus a Starlark script. The
// declaration lists parameters in resolution order; the script provides one
// domain updater per parameter and, optionally, validators and the artifact
// emitter. The loader validates declarations against built-in CUE schemas
// before anything is bound.
//
// # Components
//
// MetadataLoader: reads YAML, JSON or CUE declarations, validates them and
// binds them into an engine.Component.
//
// SchemaRegistry: CUE definitions for #Component and #Parameter, plus custom
// schemas registered at runtime.
//
// StarlarkModel: an engine.CapacityModel and engine.ArtifactEmitter backed by
// a frozen Starlark module.
//
// StarlarkEvaluator: evaluates standalone scripts such as defaults files with
// a timeout and a step bound.
//
// # Declaration Example
//
//	name: casc
//	script: casc.star
//	parameters:
//	  - name: TT_DATA
//	    type: typename
//	    updater: {args: []}
//	  - name: TP_WINDOW_VSIZE
//	    type: int
//	    updater: {args: [TT_DATA]}
//	    default: 256
//
// # Script Example
//
//	def update_TT_DATA(args):
//	    return {"enum": ["int16", "cint16"]}
//
//	def update_TP_WINDOW_VSIZE(args):
//	    g = 8 if args["TT_DATA"] == "int16" else 4
//	    return {"minimum": g, "maximum": 4096, "maximum_pingpong_buf": 2048, "granularity": g}
//
// Updater args list the earlier parameters a function may read. Reading
// anything else is a dependency order violation. Omitting args allows every
// earlier parameter.
//
// # Error Handling
//
// Load problems are reported as ValidationErrors carrying the file, line,
// column and path when known.
//
// # Thread Safety
//
// A bound StarlarkModel may be called from several goroutines; every call
// runs on its own thread against frozen globals.
package config
