package providers

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-alerts-aggregation/internal/currency"
	"github.com/i474232898/weather-alerts-aggregation/internal/fetch"
)

func testOptions(baseURL, key string) Options {
	return Options{
		APIKey:   key,
		BaseURL:  baseURL,
		Executor: fetch.NewExecutor(&http.Client{}, zap.NewNop()),
		Policy:   fetch.Policy{MaxAttempts: 1, Timeout: time.Second},
	}
}

func TestPrivatBank_CourseIDPerType(t *testing.T) {
	var gotCourse string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCourse = r.URL.Query().Get("coursid")
		_, _ = io.WriteString(w, `[
			{"ccy":"EUR","base_ccy":"UAH","buy":"44.10000","sale":"45.10000"},
			{"ccy":"USD","base_ccy":"UAH","buy":"41.20000","sale":"41.80000"}
		]`)
	}))
	defer srv.Close()

	p := NewPrivatBankProvider(testOptions(srv.URL, ""))
	for rt, want := range map[currency.RateType]string{currency.Cash: "5", currency.NonCash: "11"} {
		got, err := p.Rates(context.Background(), rt)
		if err != nil {
			t.Fatalf("Rates(%s): %v", rt, err)
		}
		if gotCourse != want {
			t.Fatalf("Rates(%s) used coursid %q", rt, gotCourse)
		}
		if len(got.Rates) != 2 || got.Rates[1].Currency != "USD" || got.Rates[1].Sale != 41.8 || got.Type != rt {
			t.Fatalf("unexpected rates %+v", got)
		}
	}
}

func TestPrivatBank_MalformedNumberIsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"ccy":"USD","base_ccy":"UAH","buy":"n/a","sale":"41.8"}]`)
	}))
	defer srv.Close()

	_, err := NewPrivatBankProvider(testOptions(srv.URL, "")).Rates(context.Background(), currency.Cash)
	var fe *fetch.Error
	if !errors.As(err, &fe) || fe.Kind != fetch.KindDecode {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestExchangeRate_InvertsRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v6/secret/latest/UAH" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"result":"success","base_code":"UAH","conversion_rates":{"UAH":1,"USD":0.025,"EUR":0.02}}`)
	}))
	defer srv.Close()

	got, err := NewExchangeRateProvider(testOptions(srv.URL, "secret")).Rates(context.Background(), currency.Cash)
	if err != nil {
		t.Fatalf("Rates: %v", err)
	}
	if len(got.Rates) != 2 {
		t.Fatalf("expected UAH to be excluded, got %+v", got.Rates)
	}
	eur, usd := got.Rates[0], got.Rates[1]
	if eur.Currency != "EUR" || math.Abs(eur.Buy-50) > 1e-9 || eur.Buy != eur.Sale {
		t.Fatalf("unexpected EUR %+v", eur)
	}
	if usd.Currency != "USD" || math.Abs(usd.Sale-40) > 1e-9 {
		t.Fatalf("unexpected USD %+v", usd)
	}
}

func TestExchangeRate_ErrorResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"result":"error","error-type":"invalid-key"}`)
	}))
	defer srv.Close()

	_, err := NewExchangeRateProvider(testOptions(srv.URL, "bad")).Rates(context.Background(), currency.Cash)
	var fe *fetch.Error
	if !errors.As(err, &fe) || fe.Kind != fetch.KindAuth || fe.Message != "invalid-key" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestExchangeRate_MissingKey(t *testing.T) {
	_, err := NewExchangeRateProvider(Options{}).Rates(context.Background(), currency.Cash)
	var fe *fetch.Error
	if !errors.As(err, &fe) || fe.Kind != fetch.KindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}
