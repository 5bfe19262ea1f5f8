package damnrich

// Exchange is a catalog entry for a market data venue. The sync engine
// never modifies exchanges; they are seeded by the catalog initializer
// and resolved by name at the start of every sync pass.
type Exchange struct {
	ID   int64
	Name string
}

type ExchangeRepository interface {
	CreateExchange(exchange *Exchange) error

	ExchangeByName(name string) (*Exchange, error)

	ExchangesCount() (int, error)
}
