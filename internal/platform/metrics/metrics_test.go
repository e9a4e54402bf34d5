package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestCollector_DomainCounters(t *testing.T) {
	c := NewCollector("ward")
	c.Admitted()
	c.Assignment(OutcomeAssigned)
	c.Assignment(OutcomeNoCapacity)
	c.Assignment(OutcomeNoCapacity)
	c.Discharged()
	c.Transition("complete", "ok")
	c.ReleaseViolation("doctor")
	c.Access("patients", "read", "registrar")
	c.Access("no-such-thing", "read", "")

	out := scrape(t, c)
	want := []string{
		"ward_admissions_patients_admitted_total 1",
		`ward_admissions_assignments_total{outcome="assigned"} 1`,
		`ward_admissions_assignments_total{outcome="no_capacity"} 2`,
		"ward_admissions_discharges_total 1",
		`ward_appointments_transitions_total{action="complete",result="ok"} 1`,
		`ward_admissions_release_violations_total{resource="doctor"} 1`,
		`ward_audit_patient_data_access_total{action="read",resource="patients",role="registrar"} 1`,
		`ward_audit_patient_data_access_total{action="read",resource="other",role="none"} 1`,
	}
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("expected scrape to contain %q", w)
		}
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.Admitted()
	c.Assignment(OutcomeAssigned)
	c.Discharged()
	c.AppointmentCreated()
	c.Transition("accept", "ok")
	c.ReleaseViolation("chamber")
	c.Access("appointments", "update", "doctor")
	c.TrackPool(nil)

	e := echo.New()
	c2 := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	h := c.Middleware()(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	if err := h(c2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCollector_IndependentRegistries(t *testing.T) {
	// two collectors in one process must not collide on registration
	NewCollector("ward")
	NewCollector("ward")
}

func TestMiddleware_RecordsRouteAndStatus(t *testing.T) {
	c := NewCollector("ward")
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/9", nil)
	ec := e.NewContext(req, httptest.NewRecorder())
	ec.SetPath("/api/v1/patients/:id")
	h := c.Middleware()(func(ec echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	})
	h(ec)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/patients", nil)
	ec = e.NewContext(req, httptest.NewRecorder())
	ec.SetPath("/api/v1/patients")
	h = c.Middleware()(func(ec echo.Context) error {
		return errors.New("boom")
	})
	h(ec)

	out := scrape(t, c)
	if !strings.Contains(out, `ward_http_requests_total{method="GET",path="/api/v1/patients/:id",status="404"} 1`) {
		t.Errorf("expected 404 sample keyed by route, got:\n%s", out)
	}
	if !strings.Contains(out, `ward_http_requests_total{method="POST",path="/api/v1/patients",status="500"} 1`) {
		t.Error("expected plain error to count as 500")
	}
	if !strings.Contains(out, "ward_http_in_flight_requests 0") {
		t.Error("expected in-flight gauge back at zero")
	}
}
