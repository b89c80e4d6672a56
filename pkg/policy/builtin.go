package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		tileBudgetPolicy(),
		powerOfTwoSizesPolicy(),
	}
}

// tileBudgetPolicy caps the number of kernels an SSR/cascade configuration
// places on the array.
func tileBudgetPolicy() Policy {
	return Policy{
		Name:        "tile-budget",
		Description: "Rejects configurations that need more than 32 kernels (TP_SSR x TP_CASC_LEN)",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"resources"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package paramforge.explore.tiles

import rego.v1

max_tiles := 32

deny contains msg if {
	ssr := input.config.TP_SSR
	casc := input.config.TP_CASC_LEN
	tiles := ssr * casc
	tiles > max_tiles
	msg := sprintf("%d kernels exceed the budget of %d", [tiles, max_tiles])
}
`,
	}
}

// powerOfTwoSizesPolicy keeps buffer dimensions on powers of two.
func powerOfTwoSizesPolicy() Policy {
	return Policy{
		Name:        "power-of-two-sizes",
		Description: "Rejects buffer dimensions that are not powers of two",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"sizes"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package paramforge.explore.sizes

import rego.v1

size_params := {"TP_DIM_A", "TP_DIM_B", "TP_WINDOW_VSIZE", "TP_POINT_SIZE"}

power_of_two(v) if {
	v > 0
	bits.and(v, v - 1) == 0
}

deny contains msg if {
	some name in size_params
	v := input.config[name]
	is_number(v)
	not power_of_two(v)
	msg := sprintf("%s=%d is not a power of two", [name, v])
}
`,
	}
}
