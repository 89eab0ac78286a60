package providers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
	"github.com/fynnwu/marketdata/internal/marketdata/infrastructure/providers"
)

func TestYahooProviderMetadata(t *testing.T) {
	t.Parallel()

	p := providers.NewYahooProvider()
	require.Equal(t, "yahoo", p.Name())
	require.Equal(t, domain.AssetClassUsEquity, p.Class())
}

func TestYahooFetchCancelled(t *testing.T) {
	t.Parallel()

	p := providers.NewYahooProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Fetch(ctx, domain.AssetIdentifier{Class: domain.AssetClassUsEquity, Symbol: "AAPL"})
	require.Error(t, err)
	require.Equal(t, domain.KindUpstreamUnavailable, domain.KindOf(err))
}
