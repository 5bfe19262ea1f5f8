package inmem

import (
	"fmt"
	damnrich "github.com/HikaRiwwww/damn-rich"
	"sync"
)

type ExchangeRepository struct {
	exchangesMutex sync.RWMutex
	exchanges      []*damnrich.Exchange
	lastID         int64
}

func NewExchangeRepository() *ExchangeRepository {
	return &ExchangeRepository{
		exchanges: make([]*damnrich.Exchange, 0),
	}
}

func (er *ExchangeRepository) CreateExchange(
	exchange *damnrich.Exchange,
) error {
	er.exchangesMutex.Lock()
	defer er.exchangesMutex.Unlock()

	er.lastID++
	exchange.ID = er.lastID
	er.exchanges = append(er.exchanges, exchange)

	return nil
}

func (er *ExchangeRepository) ExchangeByName(
	name string,
) (*damnrich.Exchange, error) {
	er.exchangesMutex.RLock()
	defer er.exchangesMutex.RUnlock()

	for _, exchange := range er.exchanges {
		if exchange.Name == name {
			return exchange, nil
		}
	}

	return nil, fmt.Errorf("no exchange with name [%v]", name)
}

func (er *ExchangeRepository) ExchangesCount() (int, error) {
	er.exchangesMutex.RLock()
	defer er.exchangesMutex.RUnlock()

	return len(er.exchanges), nil
}

type SymbolRepository struct {
	symbolsMutex sync.RWMutex
	symbols      []*damnrich.Symbol
	lastID       int64
}

func NewSymbolRepository() *SymbolRepository {
	return &SymbolRepository{
		symbols: make([]*damnrich.Symbol, 0),
	}
}

func (sr *SymbolRepository) CreateSymbol(symbol *damnrich.Symbol) error {
	sr.symbolsMutex.Lock()
	defer sr.symbolsMutex.Unlock()

	sr.lastID++
	symbol.ID = sr.lastID
	sr.symbols = append(sr.symbols, symbol)

	return nil
}

func (sr *SymbolRepository) ActiveSymbols() ([]*damnrich.Symbol, error) {
	sr.symbolsMutex.RLock()
	defer sr.symbolsMutex.RUnlock()

	symbols := make([]*damnrich.Symbol, 0)
	for _, symbol := range sr.symbols {
		if symbol.Active && symbol.Tradable {
			symbols = append(symbols, symbol)
		}
	}

	return symbols, nil
}

func (sr *SymbolRepository) SymbolsCount() (int, error) {
	sr.symbolsMutex.RLock()
	defer sr.symbolsMutex.RUnlock()

	return len(sr.symbols), nil
}
