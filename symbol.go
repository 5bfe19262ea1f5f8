package damnrich

// Symbol is a catalog entry for a trading pair. Like exchanges, symbols
// are read-only to the sync engine and seeded by the catalog initializer.
type Symbol struct {
	ID       int64
	Ticker   string
	Base     Asset
	Quote    Asset
	Active   bool
	Tradable bool
}

func (s *Symbol) Pair() Pair {
	return Pair{Base: s.Base, Quote: s.Quote}
}

type SymbolRepository interface {
	CreateSymbol(symbol *Symbol) error

	// ActiveSymbols returns symbols that are both active and tradable.
	ActiveSymbols() ([]*Symbol, error)

	SymbolsCount() (int, error)
}
