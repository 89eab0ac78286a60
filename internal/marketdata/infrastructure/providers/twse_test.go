package providers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
	"github.com/fynnwu/marketdata/internal/marketdata/infrastructure/providers"
)

func twID(symbol string) domain.AssetIdentifier {
	return domain.AssetIdentifier{Class: domain.AssetClassTwEquity, Symbol: symbol}
}

func TestTWSEFetch(t *testing.T) {
	t.Parallel()

	var gotExCh string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotExCh = r.URL.Query().Get("ex_ch")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"msgArray": [
				{"c": "2330", "n": "台積電", "z": "605.0000", "y": "600.0000", "tlong": "1741058400000"}
			],
			"rtcode": "0000"
		}`))
	}))
	defer srv.Close()

	p := providers.NewTWSEProvider(srv.URL, 5*time.Second)
	require.Equal(t, "twse", p.Name())
	require.Equal(t, domain.AssetClassTwEquity, p.Class())

	snap, err := p.Fetch(context.Background(), twID("2330"))
	require.NoError(t, err)
	require.Equal(t, "tse_2330.tw", gotExCh)
	require.Equal(t, "台積電", snap.Name)
	require.True(t, snap.LastPrice.Equal(decimal.RequireFromString("605.0000")))
	require.Equal(t, "TWD", snap.Currency)
	require.Equal(t, "twse", snap.Source)
	require.Equal(t, int64(1741058400000), snap.AsOf.UnixMilli())
	require.NotEmpty(t, snap.Raw)
}

func TestTWSEFetchFallsBackToPrevClose(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"msgArray": [
				{"c": "2330", "n": "台積電", "z": "-", "y": "600.0000", "tlong": "0"}
			],
			"rtcode": "0000"
		}`))
	}))
	defer srv.Close()

	p := providers.NewTWSEProvider(srv.URL, 5*time.Second)
	snap, err := p.Fetch(context.Background(), twID("2330"))
	require.NoError(t, err)
	require.True(t, snap.LastPrice.Equal(decimal.RequireFromString("600.0000")))
	require.WithinDuration(t, time.Now(), snap.AsOf, 5*time.Second, "tlong 无效时以当前时间记时")
}

func TestTWSEFetchUnknownSymbol(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"msgArray": [], "rtcode": "0000"}`))
	}))
	defer srv.Close()

	p := providers.NewTWSEProvider(srv.URL, 5*time.Second)
	_, err := p.Fetch(context.Background(), twID("9999"))
	require.Error(t, err)
	require.Equal(t, domain.KindUnknownSymbol, domain.KindOf(err))
}

func TestTWSEFetchMalformed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"非法 JSON", `<html>maintenance</html>`},
		{"最新价与昨收皆缺", `{"msgArray": [{"c": "2330", "n": "台積電", "z": "-", "y": "-"}], "rtcode": "0000"}`},
		{"价格不可解析", `{"msgArray": [{"c": "2330", "n": "台積電", "z": "abc", "y": "600"}], "rtcode": "0000"}`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			p := providers.NewTWSEProvider(srv.URL, 5*time.Second)
			_, err := p.Fetch(context.Background(), twID("2330"))
			require.Error(t, err)
			require.Equal(t, domain.KindMalformedResponse, domain.KindOf(err))
		})
	}
}

func TestTWSEFetchUpstreamDown(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := providers.NewTWSEProvider(srv.URL, 5*time.Second)
	_, err := p.Fetch(context.Background(), twID("2330"))
	require.Error(t, err)
	require.Equal(t, domain.KindUpstreamUnavailable, domain.KindOf(err))
	require.True(t, domain.IsTransient(err))
}
