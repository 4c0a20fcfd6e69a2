package ports

import (
	"gosobol/domain/inventory"
)

// ExchangeSource is a host model whose raw quantities can be made uncertain.
// Exchanges returns pointers into the model; rewriting an Amount rewrites
// the model.
type ExchangeSource interface {
	Exchanges() []*inventory.Exchange
}
