package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/markbook/markbook/internal/events"
)

func TestCollector_CountsEvents(t *testing.T) {
	c := NewCollector()

	c.Publish(events.New(events.BackupCreated, map[string]interface{}{"courseCount": 3}))
	c.Publish(events.New(events.BackupCreated, map[string]interface{}{"courseCount": 4}))
	c.Publish(events.New(events.CourseDeleted, nil))

	if got := testutil.ToFloat64(c.eventsTotal.WithLabelValues(string(events.BackupCreated))); got != 2 {
		t.Errorf("backup_created count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.eventsTotal.WithLabelValues(string(events.CourseDeleted))); got != 1 {
		t.Errorf("course_deleted count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.backupCourses); got != 4 {
		t.Errorf("last_backup_courses = %v, want 4", got)
	}
	if got := testutil.ToFloat64(c.lastBackup); got <= 0 {
		t.Errorf("last_backup_timestamp_seconds = %v, want > 0", got)
	}
}

func TestCollector_ImportTotals(t *testing.T) {
	c := NewCollector()

	c.Publish(events.New(events.ImportCompleted, map[string]interface{}{"imported": 2, "merged": 1}))
	c.Publish(events.New(events.ImportCompleted, map[string]interface{}{"imported": float64(1), "merged": 0}))

	if got := testutil.ToFloat64(c.coursesImported); got != 3 {
		t.Errorf("courses_imported_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.coursesMerged); got != 1 {
		t.Errorf("courses_merged_total = %v, want 1", got)
	}
}

func TestCollector_SyncTimestamp(t *testing.T) {
	c := NewCollector()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.Publish(events.Event{Type: events.SyncCompleted, Timestamp: at})

	if got := testutil.ToFloat64(c.lastSync); got != float64(at.Unix()) {
		t.Errorf("last_sync_timestamp_seconds = %v, want %v", got, at.Unix())
	}
}

func TestCollector_MiddlewareAndHandler(t *testing.T) {
	c := NewCollector()

	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/courses/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", c.Handler())

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/courses/"+id, nil))
	}

	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("GET", "/courses/{id}", "404")); got != 2 {
		t.Errorf("http_requests_total = %v, want 2", got)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Error("/metrics output missing http_requests_total")
	}
}
