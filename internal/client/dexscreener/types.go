package dexscreener

// TokensResponse is the body of /latest/dex/tokens/{addresses}.
type TokensResponse struct {
	SchemaVersion string `json:"schemaVersion"`
	Pairs         []Pair `json:"pairs"`
}

// Pair is one trading pair record. Numeric fields absent upstream decode as zero.
type Pair struct {
	ChainID     string     `json:"chainId"`
	DexID       string     `json:"dexId"`
	URL         string     `json:"url"`
	PairAddress string     `json:"pairAddress"`
	BaseToken   Token      `json:"baseToken"`
	QuoteToken  Token      `json:"quoteToken"`
	PriceNative string     `json:"priceNative"`
	PriceUsd    string     `json:"priceUsd"`
	Volume      Volume     `json:"volume"`
	Liquidity   *Liquidity `json:"liquidity"`
	Fdv         float64    `json:"fdv"`
	MarketCap   float64    `json:"marketCap"`
	Info        *Info      `json:"info"`
}

type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type Volume struct {
	M5  float64 `json:"m5"`
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

type Liquidity struct {
	Usd   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

type Info struct {
	ImageURL string `json:"imageUrl"`
}

// LiquidityUSD returns 0 when the pair reports no liquidity block.
func (p Pair) LiquidityUSD() float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.Usd
}

func (p Pair) ImageURL() string {
	if p.Info == nil {
		return ""
	}
	return p.Info.ImageURL
}
