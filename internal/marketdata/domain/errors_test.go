package domain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
)

func TestErrorWrapping(t *testing.T) {
	t.Parallel()

	id := domain.AssetIdentifier{Class: domain.AssetClassTwEquity, Symbol: "2330"}
	cause := errors.New("connection refused")
	err := domain.NewError(domain.KindUpstreamUnavailable, id, cause)

	require.ErrorIs(t, err, cause)
	require.Equal(t, domain.KindUpstreamUnavailable, domain.KindOf(err))
	require.True(t, domain.IsKind(err, domain.KindUpstreamUnavailable))
	require.Contains(t, err.Error(), "tw:2330")

	// 多层包装后仍可提取类别
	wrapped := fmt.Errorf("refresh failed: %w", err)
	require.Equal(t, domain.KindUpstreamUnavailable, domain.KindOf(wrapped))
}

func TestKindOfUnclassified(t *testing.T) {
	t.Parallel()

	require.Equal(t, domain.Kind(""), domain.KindOf(errors.New("plain")))
	require.Equal(t, domain.Kind(""), domain.KindOf(nil))
	require.False(t, domain.IsKind(errors.New("plain"), domain.KindUnknownSymbol))
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	id := domain.AssetIdentifier{Class: domain.AssetClassUsEquity, Symbol: "AAPL"}

	require.True(t, domain.IsTransient(domain.NewError(domain.KindUpstreamUnavailable, id, nil)))
	require.True(t, domain.IsTransient(domain.NewError(domain.KindUpstreamTimeout, id, nil)))
	require.False(t, domain.IsTransient(domain.NewError(domain.KindUnknownSymbol, id, nil)))
	require.False(t, domain.IsTransient(domain.NewError(domain.KindMalformedResponse, id, nil)))
	require.False(t, domain.IsTransient(domain.NewError(domain.KindInvalidSymbolFormat, id, nil)))
	require.False(t, domain.IsTransient(errors.New("plain")))
}

func TestWrapFetchError(t *testing.T) {
	t.Parallel()

	id := domain.AssetIdentifier{Class: domain.AssetClassFuture, Symbol: "TXFA24"}

	err := domain.WrapFetchError(id, context.DeadlineExceeded)
	require.Equal(t, domain.KindUpstreamTimeout, err.Kind)

	wrapped := domain.WrapFetchError(id, fmt.Errorf("do request: %w", context.DeadlineExceeded))
	require.Equal(t, domain.KindUpstreamTimeout, wrapped.Kind)

	err = domain.WrapFetchError(id, errors.New("dial tcp: connection refused"))
	require.Equal(t, domain.KindUpstreamUnavailable, err.Kind)
}
