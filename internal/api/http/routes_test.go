package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/readings"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/store"
)

var testNow = time.Date(2026, 7, 1, 15, 0, 0, 0, time.UTC)

type testServer struct {
	app          *fiber.App
	engine       *readings.Engine
	stationCalls int32
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}

	stations := readings.FetchFunc{SourceName: "stations", Fn: func(context.Context) (readings.RawList, error) {
		atomic.AddInt32(&ts.stationCalls, 1)
		return readings.RawList{Items: []readings.RawRecord{
			{"_id": "s1", "beachName": "Cherry Beach", "lat": 43.6366, "lng": -79.3444, "Result": 21.0},
			{"_id": "s2", "beachName": "Sunnyside", "lat": 43.6370, "lng": -79.4550, "Result": 19.5},
		}}, nil
	}}
	users := readings.FetchFunc{SourceName: "user-points", Fn: func(context.Context) (readings.RawList, error) {
		return readings.RawList{Items: []readings.RawRecord{
			{"_id": "a", "lat": 43.6400, "lon": -79.3800, "temp": 18, "timestamp": "2026-07-01T10:00:00Z"},
			{"_id": "b", "lat": 43.6445, "lon": -79.3800, "temp": 19, "timestamp": "2026-07-01T11:00:00Z"},
			{"_id": "c", "lat": 43.6850, "lon": -79.3800, "temp": 22, "timestamp": "2026-07-01T12:00:00Z"},
		}}, nil
	}}

	now := func() time.Time { return testNow }
	cache := store.NewSnapshotCache(store.NewMemoryKV(), "test")
	engine, err := readings.NewEngine(context.Background(), cache, stations, users, readings.EngineConfig{Now: now})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.Refresh(context.Background())

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, Deps{Engine: engine, Now: now})

	ts.app = app
	ts.engine = engine
	return ts
}

type listResponse struct {
	Status           string           `json:"status"`
	Count            int              `json:"count"`
	Total            int              `json:"total"`
	LocationRequired bool             `json:"locationRequired"`
	Markers          []markerResponse `json:"markers"`
}

type markerResponse struct {
	Kind    string `json:"kind"`
	Reading *struct {
		ID           string  `json:"id"`
		TemperatureC float64 `json:"temperatureC"`
	} `json:"reading"`
	Group *struct {
		ID          string `json:"id"`
		MemberCount int    `json:"memberCount"`
	} `json:"group"`
}

func (m markerResponse) id() string {
	if m.Group != nil {
		return m.Group.ID
	}
	if m.Reading != nil {
		return m.Reading.ID
	}
	return ""
}

func (ts *testServer) do(t *testing.T, req *http.Request, wantStatus int, out any) {
	t.Helper()
	resp, err := ts.app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected status %d, got %d (%s)", req.Method, req.URL, wantStatus, resp.StatusCode, body)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("decode %s: %v", body, err)
		}
	}
}

func (ts *testServer) get(t *testing.T, target string, wantStatus int, out any) {
	t.Helper()
	ts.do(t, httptest.NewRequest(http.MethodGet, target, nil), wantStatus, out)
}

func (ts *testServer) postJSON(t *testing.T, target, body string, wantStatus int, out any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	ts.do(t, req, wantStatus, out)
}

func TestMarkersEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var resp listResponse
	ts.get(t, "/api/v1/markers", http.StatusOK, &resp)

	if resp.Status != string(readings.StatusFresh) {
		t.Errorf("expected fresh status, got %q", resp.Status)
	}
	// Cherry Beach, Sunnyside, group {a, b}, c
	if resp.Count != 4 || len(resp.Markers) != 4 {
		t.Fatalf("expected 4 markers, got %d", len(resp.Markers))
	}
	if resp.Markers[2].Kind != "group" || resp.Markers[2].Group.MemberCount != 2 {
		t.Errorf("expected the nearby user readings grouped, got %+v", resp.Markers[2])
	}
}

func TestFilterEndpoint(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		name             string
		query            string
		wantIDs          []string
		locationRequired bool
	}{
		{"temperature range", "minTemp=19&maxTemp=20", []string{"s2", "a"}, false},
		{"distance without location", "maxDistanceKm=1", []string{}, true},
		{"distance from coordinates", "lat=43.64&lon=-79.38&maxDistanceKm=1", []string{"a"}, false},
		{"distance from place", "near=43.685,-79.38&maxDistanceKm=1", []string{"c"}, false},
		{"unresolvable place", "near=Cherry%20Beach&maxDistanceKm=1", []string{}, true},
		{"sorted by temperature", "sort=temp-desc", []string{"c", "s1", "s2", "a"}, false},
		{"sorted by distance", "lat=43.685&lon=-79.38&sort=distance", []string{"c", "a", "s1", "s2"}, false},
		{"no criteria", "", []string{"s1", "s2", "a", "c"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var resp listResponse
			ts.get(t, "/api/v1/markers/filter?"+tc.query, http.StatusOK, &resp)

			got := make([]string, 0, len(resp.Markers))
			for _, m := range resp.Markers {
				got = append(got, m.id())
			}
			if strings.Join(got, ",") != strings.Join(tc.wantIDs, ",") {
				t.Errorf("expected %v, got %v", tc.wantIDs, got)
			}
			if resp.LocationRequired != tc.locationRequired {
				t.Errorf("expected locationRequired=%v", tc.locationRequired)
			}
			if resp.Total != 4 {
				t.Errorf("expected total 4, got %d", resp.Total)
			}
		})
	}
}

// TestFilterValidation verifies that malformed query parameters are rejected.
func TestFilterValidation(t *testing.T) {
	ts := newTestServer(t)

	for _, query := range []string{
		"minTemp=warm",
		"minTemp=NaN",
		"minTemp=25&maxTemp=10",
		"maxDistanceKm=-1",
		"maxAgeDays=-2",
		"lat=43.64",
		"lat=95&lon=0",
		"sort=nearest",
	} {
		ts.get(t, "/api/v1/markers/filter?"+query, http.StatusBadRequest, nil)
	}
}

func TestSubmitReading(t *testing.T) {
	ts := newTestServer(t)

	var resp struct {
		Reading struct {
			ID     string `json:"id"`
			Origin string `json:"origin"`
		} `json:"reading"`
		Marker markerResponse `json:"marker"`
		Count  int            `json:"count"`
	}
	ts.postJSON(t, "/api/v1/readings", `{"id":"new","lat":43.6401,"lon":-79.3801,"temp":20.5}`, http.StatusCreated, &resp)

	if resp.Reading.ID != "new" || resp.Reading.Origin != "user" {
		t.Errorf("unexpected reading %+v", resp.Reading)
	}
	if resp.Marker.Group == nil || resp.Marker.Group.ID != "a" || resp.Marker.Group.MemberCount != 3 {
		t.Errorf("expected the submission to join group a, got %+v", resp.Marker)
	}
	if resp.Count != 4 {
		t.Errorf("expected 4 markers, got %d", resp.Count)
	}

	if got := ts.engine.Current().Markers; len(got) != 4 {
		t.Errorf("expected engine to publish the new set, got %d markers", len(got))
	}
}

func TestSubmitReadingValidation(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []string{
		`{"lat":43.64,"lon":-79.38}`,
		`{"lat":95,"lon":-79.38,"temp":18}`,
		`{"lon":-79.38,"temp":18}`,
		`not json`,
	} {
		ts.postJSON(t, "/api/v1/readings", body, http.StatusBadRequest, nil)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	ts := newTestServer(t)
	before := atomic.LoadInt32(&ts.stationCalls)

	var resp listResponse
	ts.postJSON(t, "/api/v1/refresh", "", http.StatusOK, &resp)

	if atomic.LoadInt32(&ts.stationCalls) != before+1 {
		t.Error("expected a forced fetch")
	}
	if resp.Count != 4 {
		t.Errorf("expected 4 markers, got %d", resp.Count)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var resp struct {
		ID          string `json:"id"`
		MemberCount int    `json:"memberCount"`
		History     []struct {
			TemperatureC float64   `json:"temperatureC"`
			ObservedAt   time.Time `json:"observedAt"`
		} `json:"history"`
	}
	ts.get(t, "/api/v1/groups/a/history", http.StatusOK, &resp)

	if resp.MemberCount != 2 || len(resp.History) != 2 {
		t.Fatalf("expected two history points, got %+v", resp)
	}
	if !resp.History[0].ObservedAt.Before(resp.History[1].ObservedAt) {
		t.Error("expected history in time order")
	}

	var errResp struct {
		Error   bool   `json:"error"`
		Message string `json:"message"`
	}
	ts.get(t, "/api/v1/groups/missing/history", http.StatusNotFound, &errResp)
	if !errResp.Error || errResp.Message == "" {
		t.Errorf("expected a JSON error body, got %+v", errResp)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.get(t, "/metrics", http.StatusOK, nil)
}

func TestWebSocketRouteRequiresUpgrade(t *testing.T) {
	ts := newTestServer(t)
	ts.get(t, "/ws", http.StatusNotFound, nil)
}
