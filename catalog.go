package damnrich

import "fmt"

// CatalogInitializer seeds the exchange and symbol catalog on startup.
type CatalogInitializer struct {
	exchangeRepository ExchangeRepository
	symbolRepository   SymbolRepository
	logger             Logger
}

func NewCatalogInitializer(
	exchangeRepository ExchangeRepository,
	symbolRepository SymbolRepository,
	logger Logger,
) *CatalogInitializer {
	return &CatalogInitializer{
		exchangeRepository: exchangeRepository,
		symbolRepository:   symbolRepository,
		logger:             logger,
	}
}

// EnsureCatalog seeds the given exchanges and symbol tickers. A table
// that already holds any rows is left untouched, so repeated startups
// do not overwrite a catalog edited by hand.
func (ci *CatalogInitializer) EnsureCatalog(
	exchanges []string,
	tickers []string,
) error {
	if err := ci.ensureExchanges(exchanges); err != nil {
		return err
	}

	return ci.ensureSymbols(tickers)
}

func (ci *CatalogInitializer) ensureExchanges(exchanges []string) error {
	count, err := ci.exchangeRepository.ExchangesCount()
	if err != nil {
		return fmt.Errorf("could not count exchanges: [%v]", err)
	}

	if count > 0 {
		ci.logger.Debugf("exchange catalog already seeded")
		return nil
	}

	for _, name := range exchanges {
		exchange := &Exchange{Name: name}

		if err := ci.exchangeRepository.CreateExchange(exchange); err != nil {
			return fmt.Errorf(
				"could not create exchange [%v]: [%v]",
				name,
				err,
			)
		}
	}

	ci.logger.Infof("seeded [%v] exchanges", len(exchanges))

	return nil
}

func (ci *CatalogInitializer) ensureSymbols(tickers []string) error {
	count, err := ci.symbolRepository.SymbolsCount()
	if err != nil {
		return fmt.Errorf("could not count symbols: [%v]", err)
	}

	if count > 0 {
		ci.logger.Debugf("symbol catalog already seeded")
		return nil
	}

	for _, ticker := range tickers {
		pair := ParsePair(ticker)
		if len(pair.Quote) == 0 {
			return fmt.Errorf("malformed ticker: [%v]", ticker)
		}

		symbol := &Symbol{
			Ticker:   ticker,
			Base:     pair.Base,
			Quote:    pair.Quote,
			Active:   true,
			Tradable: true,
		}

		if err := ci.symbolRepository.CreateSymbol(symbol); err != nil {
			return fmt.Errorf(
				"could not create symbol [%v]: [%v]",
				ticker,
				err,
			)
		}
	}

	ci.logger.Infof("seeded [%v] symbols", len(tickers))

	return nil
}
