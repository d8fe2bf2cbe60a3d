package builtins

import "github.com/gibsonxiong/vtrader/internal/strategy"

// Register adds every builtin strategy to the registry.
func Register(r *strategy.Registry) {
	r.Register(DoubleMADefinition())
	r.Register(RSIDefinition())
}
