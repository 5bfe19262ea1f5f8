package postgres

import (
	"fmt"
	damnrich "github.com/HikaRiwwww/damn-rich"
)

type ExchangeRepository struct {
	client *Client
}

func NewExchangeRepository(client *Client) *ExchangeRepository {
	return &ExchangeRepository{client}
}

func (er *ExchangeRepository) CreateExchange(
	exchange *damnrich.Exchange,
) error {
	query := `INSERT INTO exchange (name) VALUES ($1) RETURNING id`

	err := er.client.instance().Get(&exchange.ID, query, exchange.Name)
	if err != nil {
		return fmt.Errorf(
			"could not execute command for exchange [%v]: [%v]",
			exchange.Name,
			err,
		)
	}

	return nil
}

func (er *ExchangeRepository) ExchangeByName(
	name string,
) (*damnrich.Exchange, error) {
	var exchange damnrich.Exchange

	query := `SELECT * FROM exchange WHERE name = $1`

	err := er.client.instance().Get(&exchange, query, name)
	if err != nil {
		return nil, fmt.Errorf(
			"could not execute query for exchange [%v]: [%v]",
			name,
			err,
		)
	}

	return &exchange, nil
}

func (er *ExchangeRepository) ExchangesCount() (int, error) {
	var count int

	query := `SELECT COUNT(*) FROM exchange`

	if err := er.client.instance().Get(&count, query); err != nil {
		return 0, fmt.Errorf("could not execute query: [%v]", err)
	}

	return count, nil
}

type SymbolRepository struct {
	client *Client
}

func NewSymbolRepository(client *Client) *SymbolRepository {
	return &SymbolRepository{client}
}

func (sr *SymbolRepository) CreateSymbol(symbol *damnrich.Symbol) error {
	query := `INSERT INTO symbol (ticker, base, quote, active, tradable)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	err := sr.client.instance().Get(
		&symbol.ID,
		query,
		symbol.Ticker,
		string(symbol.Base),
		string(symbol.Quote),
		symbol.Active,
		symbol.Tradable,
	)
	if err != nil {
		return fmt.Errorf(
			"could not execute command for symbol [%v]: [%v]",
			symbol.Ticker,
			err,
		)
	}

	return nil
}

func (sr *SymbolRepository) ActiveSymbols() ([]*damnrich.Symbol, error) {
	var symbols []*damnrich.Symbol

	query := `SELECT * FROM symbol WHERE active AND tradable ORDER BY id`

	if err := sr.client.instance().Select(&symbols, query); err != nil {
		return nil, fmt.Errorf("could not execute query: [%v]", err)
	}

	return symbols, nil
}

func (sr *SymbolRepository) SymbolsCount() (int, error) {
	var count int

	query := `SELECT COUNT(*) FROM symbol`

	if err := sr.client.instance().Get(&count, query); err != nil {
		return 0, fmt.Errorf("could not execute query: [%v]", err)
	}

	return count, nil
}
