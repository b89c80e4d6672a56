package components

import (
	"github.com/paramforge/paramforge/pkg/domain"
	"github.com/paramforge/paramforge/pkg/engine"
)

func fixed(d domain.Domain) engine.UpdateFunc {
	return func(*engine.Env) (domain.Domain, error) { return d, nil }
}

// ToyModel returns the model of the toy component: A in {0,1}, B in {0,1,2}
// and C in {0,1}. An optional constraint validates C against A and B.
func ToyModel(constraint engine.ValidateFunc) engine.Capabilities {
	return engine.Capabilities{
		"A": {Update: fixed(domain.NewRange(0, 1))},
		"B": {Update: fixed(domain.NewEnum(domain.Ints(0, 1, 2)...))},
		"C": {Update: fixed(domain.NewRange(0, 1)), Validate: constraint},
	}
}
