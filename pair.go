package damnrich

import "strings"

type Asset string

// PairSymbol is the concatenated exchange form of a pair, e.g. "BTCUSDT".
type PairSymbol string

type Pair struct {
	Base, Quote Asset
}

func ParsePair(pair string) Pair {
	assets := strings.SplitN(pair, "/", 2)
	if len(assets) != 2 {
		return Pair{Base: Asset(pair)}
	}

	return Pair{
		Base:  Asset(assets[0]),
		Quote: Asset(assets[1]),
	}
}

func (p Pair) Symbol() PairSymbol {
	return PairSymbol(p.Base + p.Quote)
}

func (p Pair) String() string {
	return string(p.Base) + "/" + string(p.Quote)
}
