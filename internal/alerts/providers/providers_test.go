package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-alerts-aggregation/internal/alerts"
	"github.com/i474232898/weather-alerts-aggregation/internal/fetch"
)

func testOptions(baseURL, token string) Options {
	return Options{
		Token:    token,
		BaseURL:  baseURL,
		Executor: fetch.NewExecutor(&http.Client{}, zap.NewNop()),
		Policy:   fetch.Policy{MaxAttempts: 1, Timeout: time.Second},
	}
}

func TestUkraineAlarm_Active(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/alerts" || r.Header.Get("Authorization") != "raw-token" {
			t.Errorf("unexpected request %s auth=%q", r.URL.Path, r.Header.Get("Authorization"))
		}
		_, _ = io.WriteString(w, `[
			{"regionId":"22","regionType":"State","regionName":"Харківська область","activeAlerts":[{"type":"AIR"}]},
			{"regionId":"31","regionType":"State","regionName":"м. Київ","activeAlerts":[]},
			{"regionId":"1293","regionType":"Community","regionName":"Нікопольська територіальна громада","activeAlerts":[{"type":"ARTILLERY"}]}
		]`)
	}))
	defer srv.Close()

	recs, err := NewUkraineAlarmProvider(testOptions(srv.URL, "raw-token")).Active(context.Background())
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %+v", recs)
	}
	if recs[0].SubOblast || recs[0].AlertType != "air" || recs[0].Code != "22" {
		t.Fatalf("unexpected state record %+v", recs[0])
	}
	if !recs[1].SubOblast || recs[1].Code != "" {
		t.Fatalf("community record must be sub-oblast without an oblast code: %+v", recs[1])
	}
}

func TestAlertsInUA_Active(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("unexpected auth %q", r.Header.Get("Authorization"))
		}
		_, _ = io.WriteString(w, `{"alerts":[
			{"location_title":"Луганська область","location_type":"oblast","location_uid":"16","alert_type":"air_raid"},
			{"location_title":"Конотопський район","location_oblast":"Сумська область","location_type":"raion","location_uid":"117","location_oblast_uid":20,"alert_type":"air_raid"}
		]}`)
	}))
	defer srv.Close()

	recs, err := NewAlertsInUAProvider(testOptions(srv.URL, "tok")).Active(context.Background())
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %+v", recs)
	}
	if recs[0].SubOblast || recs[0].Code != "16" {
		t.Fatalf("unexpected oblast record %+v", recs[0])
	}
	if !recs[1].SubOblast || recs[1].Code != "20" || recs[1].Oblast != "Сумська область" {
		t.Fatalf("unexpected raion record %+v", recs[1])
	}

	table := alerts.NewRegionTable(alerts.DefaultRegions)
	name, ok := table.Resolve(recs[1])
	if !ok || name != "Сумська область" {
		t.Fatalf("raion must roll up to its oblast, got %q", name)
	}
}

func TestProviders_MissingToken(t *testing.T) {
	for _, p := range []alerts.Provider{
		NewUkraineAlarmProvider(Options{}),
		NewAlertsInUAProvider(Options{}),
	} {
		_, err := p.Active(context.Background())
		var fe *fetch.Error
		if !errors.As(err, &fe) || fe.Kind != fetch.KindConfig {
			t.Fatalf("%s: expected config error, got %v", p.Name(), err)
		}
	}
}

func TestAlertsInUA_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"API token required"}`)
	}))
	defer srv.Close()

	_, err := NewAlertsInUAProvider(testOptions(srv.URL, "bad")).Active(context.Background())
	var fe *fetch.Error
	if !errors.As(err, &fe) || fe.Kind != fetch.KindAuth || fe.Message != "API token required" {
		t.Fatalf("unexpected error %v", err)
	}
}
