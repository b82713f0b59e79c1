package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
	"github.com/hyperhdr-core/hyperhdr/internal/driver"
	"github.com/hyperhdr-core/hyperhdr/internal/instance"
	"github.com/hyperhdr-core/hyperhdr/internal/muxer"
	"github.com/hyperhdr-core/hyperhdr/internal/reducer"
	"github.com/hyperhdr-core/hyperhdr/internal/settings"
)

func testConfig(index int, name string) instance.Config {
	return instance.Config{
		Index: index,
		Name:  name,
		Layout: reducer.Layout{Leds: []reducer.Led{
			{X1: 0, X2: 1, Y1: 0, Y2: 1},
		}},
		Mapping:        reducer.MappingMean,
		Calibration:    color.DefaultCalibration(),
		SmoothingCfg:   color.SmoothingConfig{SettlingMs: 100, UpdateMs: 20, Type: color.Stepper},
		Drv:            driver.NewNullDriver(),
		DriverCfg:      driver.Config{LedCount: 1},
		UpdateInterval: 10 * time.Millisecond,
	}
}

func newTestServer(t *testing.T) (*Server, *instance.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mgr := instance.NewManager(nil)
	if _, err := mgr.CreateInstance(testConfig(0, "main")); err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	return New(mgr), mgr
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListInstances(t *testing.T) {
	s, _ := newTestServer(t)
	r := s.Router()

	rec := doJSON(t, r, http.MethodGet, "/api/instances/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0]["name"] != "main" {
		t.Fatalf("unexpected instance list: %+v", got)
	}
}

func TestCreateInstance(t *testing.T) {
	s, mgr := newTestServer(t)
	r := s.Router()

	rec := doJSON(t, r, http.MethodPost, "/api/instances/", createInstanceRequest{Index: 1, Name: "second", LedCount: 5})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	in, ok := mgr.Get(1)
	if !ok {
		t.Fatal("expected instance 1 to be registered")
	}
	if in.Name != "second" {
		t.Fatalf("expected name %q, got %q", "second", in.Name)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/instances/", createInstanceRequest{Index: 1, Name: "dup"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate index, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodPost, "/api/instances/", createInstanceRequest{Index: 2})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", rec.Code)
	}
}

func TestStartStopInstance(t *testing.T) {
	s, mgr := newTestServer(t)
	r := s.Router()

	rec := doJSON(t, r, http.MethodPost, "/api/instances/0/start", startRequest{DisableOnStartup: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodPost, "/api/instances/0/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodPost, "/api/instances/99/start", startRequest{})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("start unknown: expected 404, got %d", rec.Code)
	}

	if _, ok := mgr.Get(0); !ok {
		t.Fatal("expected instance 0 to still be registered after stop")
	}
}

func TestSetComponentState(t *testing.T) {
	s, mgr := newTestServer(t)
	r := s.Router()

	rec := doJSON(t, r, http.MethodPost, "/api/instances/0/components/LEDDEVICE", componentRequest{Enable: false})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	in, _ := mgr.Get(0)
	if in.Components().Enabled(instance.LEDDEVICE) {
		t.Fatal("expected LEDDEVICE to be disabled")
	}

	rec = doJSON(t, r, http.MethodPost, "/api/instances/0/components/NOPE", componentRequest{Enable: true})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown component kind, got %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/instances/0/components", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var states map[string]map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &states); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if states["LEDDEVICE"]["enabled"].(bool) {
		t.Fatal("expected component snapshot to reflect the disabled state")
	}
}

func TestPostSettingsPublishesToBus(t *testing.T) {
	s, mgr := newTestServer(t)
	r := s.Router()

	in, _ := mgr.Get(0)
	ch := in.Settings().Subscribe(settings.COLOR)

	rec := doJSON(t, r, http.MethodPost, "/api/instances/0/settings/COLOR", map[string]any{"brightness": 0.8})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	select {
	case upd := <-ch:
		if upd.Type != settings.COLOR {
			t.Fatalf("expected COLOR update, got %v", upd.Type)
		}
	default:
		t.Fatal("expected a settings update to have been published")
	}
}

func TestMuxerIntrospection(t *testing.T) {
	s, mgr := newTestServer(t)
	r := s.Router()

	in, _ := mgr.Get(0)
	in.RegisterInput(100, muxer.ComponentColor, "test", color.RGB{R: 200}, 0, "test")
	in.Muxer().SetInput(100, color.RGB{R: 200}, 0)

	rec := doJSON(t, r, http.MethodGet, "/api/instances/0/muxer", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["currentPriority"].(float64) != 100 {
		t.Fatalf("expected current priority 100, got %v", body["currentPriority"])
	}
}

func TestPauseAllAndHibernate(t *testing.T) {
	s, _ := newTestServer(t)
	r := s.Router()

	rec := doJSON(t, r, http.MethodPost, "/api/manager/pause", map[string]bool{"pause": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodPost, "/api/manager/hibernate", map[string]any{"wakeUp": true, "source": "test"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
