package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
)

func TestNormalizeSymbolTwEquity(t *testing.T) {
	t.Parallel()

	id, err := domain.NormalizeSymbol(domain.AssetClassTwEquity, "2330")
	require.NoError(t, err)
	require.Equal(t, domain.AssetClassTwEquity, id.Class)
	require.Equal(t, "2330", id.Symbol)

	for _, raw := range []string{"", "  ", "233", "23300", "2a30", "TSMC", "２３３０"} {
		_, err := domain.NormalizeSymbol(domain.AssetClassTwEquity, raw)
		require.Errorf(t, err, "raw=%q", raw)
		require.True(t, domain.IsKind(err, domain.KindInvalidSymbolFormat), "raw=%q got %v", raw, err)
	}
}

func TestNormalizeSymbolUsEquityUppercases(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"aapl":  "AAPL",
		"AAPL":  "AAPL",
		"brk.b": "BRK.B",
		"F":     "F",
		"googl": "GOOGL",
	}
	for raw, want := range cases {
		id, err := domain.NormalizeSymbol(domain.AssetClassUsEquity, raw)
		require.NoErrorf(t, err, "raw=%q", raw)
		require.Equal(t, want, id.Symbol)
	}

	for _, raw := range []string{"", "TOOLONGG", "BRK.BB", ".B", "AAPL.", "12AB", "AA-PL"} {
		_, err := domain.NormalizeSymbol(domain.AssetClassUsEquity, raw)
		require.Errorf(t, err, "raw=%q", raw)
	}
}

func TestNormalizeSymbolFuture(t *testing.T) {
	t.Parallel()

	id, err := domain.NormalizeSymbol(domain.AssetClassFuture, "txfa24")
	require.NoError(t, err)
	require.Equal(t, "TXFA24", id.Symbol)

	id, err = domain.NormalizeSymbol(domain.AssetClassFuture, "MXFL5")
	require.NoError(t, err)
	require.Equal(t, "MXFL5", id.Symbol)

	// M 不是合法的交割月代码（只允许 A..L）
	for _, raw := range []string{"", "TXF", "TXFM24", "T1FA24", "TXFA245", "TXFAXX", "TXXXA24"} {
		_, err := domain.NormalizeSymbol(domain.AssetClassFuture, raw)
		require.Errorf(t, err, "raw=%q", raw)
	}
}

func TestNormalizeSymbolIdempotent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		class domain.AssetClass
		raw   string
	}{
		{domain.AssetClassTwEquity, "2330"},
		{domain.AssetClassUsEquity, "brk.b"},
		{domain.AssetClassFuture, "txfa24"},
	}
	for _, tc := range cases {
		first, err := domain.NormalizeSymbol(tc.class, tc.raw)
		require.NoError(t, err)
		second, err := domain.NormalizeSymbol(tc.class, first.Symbol)
		require.NoError(t, err)
		require.Equal(t, first, second)
	}
}

func TestParseFutureSymbol(t *testing.T) {
	t.Parallel()

	product, month, year, err := domain.ParseFutureSymbol("TXFA24")
	require.NoError(t, err)
	require.Equal(t, "TXF", product)
	require.Equal(t, time.January, month)
	require.Equal(t, 2024, year)

	product, month, year, err = domain.ParseFutureSymbol("MXL5")
	require.NoError(t, err)
	require.Equal(t, "MX", product)
	require.Equal(t, time.December, month)
	require.Equal(t, 2005, year)

	_, _, _, err = domain.ParseFutureSymbol("TXFM24")
	require.Error(t, err)
}

func TestFutureMonthCodeRoundTrip(t *testing.T) {
	t.Parallel()

	for m := time.January; m <= time.December; m++ {
		code, ok := domain.FutureMonthCode(m)
		require.True(t, ok)
		back, ok := domain.FutureDeliveryMonth(code)
		require.True(t, ok)
		require.Equal(t, m, back)
	}

	_, ok := domain.FutureDeliveryMonth('M')
	require.False(t, ok)
}

func TestParseAssetClass(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]domain.AssetClass{
		"tw":      domain.AssetClassTwEquity,
		"TW":      domain.AssetClassTwEquity,
		"us":      domain.AssetClassUsEquity,
		"futures": domain.AssetClassFuture,
		"future":  domain.AssetClassFuture,
	} {
		got, err := domain.ParseAssetClass(raw)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := domain.ParseAssetClass("crypto")
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.KindInvalidSymbolFormat))
}
