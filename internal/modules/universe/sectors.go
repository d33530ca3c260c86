package universe

// sectorBySymbol maps well-known US tickers to their GICS-style sector.
// The free quote providers do not expose sector data, so new stocks get
// their sector from this table; unmapped symbols stay NULL and show up as
// "Unknown" in the allocation chart.
var sectorBySymbol = map[string]string{
	// Technology
	"AAPL": "Technology", "MSFT": "Technology", "CRM": "Technology",
	"ORCL": "Technology", "ADBE": "Technology", "INTC": "Technology",
	"AMD": "Technology", "NVDA": "Technology", "IBM": "Technology",
	"NOW": "Technology",

	// Communication Services
	"GOOGL": "Communication Services", "GOOG": "Communication Services",
	"META": "Communication Services", "NFLX": "Communication Services",
	"DIS": "Communication Services", "T": "Communication Services",
	"VZ": "Communication Services", "CMCSA": "Communication Services",

	// Consumer Discretionary
	"AMZN": "Consumer Discretionary", "TSLA": "Consumer Discretionary",
	"HD": "Consumer Discretionary", "NKE": "Consumer Discretionary",
	"LOW": "Consumer Discretionary", "SBUX": "Consumer Discretionary",

	// Healthcare
	"JNJ": "Healthcare", "PFE": "Healthcare", "UNH": "Healthcare",
	"ABBV": "Healthcare", "TMO": "Healthcare", "DHR": "Healthcare",
	"BMY": "Healthcare", "MRK": "Healthcare",

	// Financials
	"JPM": "Financials", "BAC": "Financials", "WFC": "Financials",
	"GS": "Financials", "MS": "Financials", "AXP": "Financials",
	"BLK": "Financials", "C": "Financials",
	"BRK-A": "Financials", "BRK-B": "Financials",
	"BRK.A": "Financials", "BRK.B": "Financials",
	"V": "Financials", "MA": "Financials", "PYPL": "Financials",
	"COF": "Financials",

	// Consumer Staples
	"PG": "Consumer Staples", "KO": "Consumer Staples",
	"PEP": "Consumer Staples", "WMT": "Consumer Staples",
	"COST": "Consumer Staples", "CL": "Consumer Staples",

	// Industrials
	"MMM": "Industrials", "BA": "Industrials", "CAT": "Industrials",
	"GE": "Industrials", "DE": "Industrials", "HON": "Industrials",
	"UPS": "Industrials", "RTX": "Industrials", "LMT": "Industrials",
	"NOC": "Industrials", "FDX": "Industrials",

	// Energy
	"XOM": "Energy", "CVX": "Energy", "COP": "Energy",
	"SLB": "Energy", "EOG": "Energy",

	// Utilities
	"NEE": "Utilities", "DUK": "Utilities", "SO": "Utilities",
	"D": "Utilities",

	// Real Estate
	"AMT": "Real Estate", "PLD": "Real Estate", "O": "Real Estate",
	"SPG": "Real Estate", "EXR": "Real Estate", "PSA": "Real Estate",
	"WELL": "Real Estate", "EQIX": "Real Estate",

	// Materials
	"LIN": "Materials", "APD": "Materials", "SHW": "Materials",
	"FCX": "Materials",
}

// sectorForSymbol returns the mapped sector for a normalized symbol, or nil
// when the symbol is not in the table.
func sectorForSymbol(symbol string) *string {
	if sector, ok := sectorBySymbol[symbol]; ok {
		return &sector
	}
	return nil
}
