package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/coursewatch/catalog"
	"github.com/hazyhaar/coursewatch/subs"
)

type fakeCatalog struct {
	offerings []catalog.Offering
	err       error
}

func (f *fakeCatalog) Get(ctx context.Context, key string) ([]catalog.Offering, error) {
	return f.offerings, f.err
}

type fakeRegistry struct {
	last *subs.Subscription
	err  error
}

func (f *fakeRegistry) Upsert(ctx context.Context, sub *subs.Subscription) error {
	if f.err != nil {
		return f.err
	}
	f.last = sub
	return nil
}

func testRouter(cat Catalog, reg Registry) http.Handler {
	r := chi.NewRouter()
	NewServer(cat, reg, slog.New(slog.DiscardHandler)).Routes(r)
	return r
}

func TestCoursesReturnsCatalog(t *testing.T) {
	lim, enrl := 30, 12
	cat := &fakeCatalog{offerings: []catalog.Offering{
		{Term: "202609", CRN: "10001", Subject: "COSC", Number: "001",
			Title: "Intro to Programming", Limit: &lim, Enrolled: &enrl},
	}}
	h := testRouter(cat, &fakeRegistry{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/courses", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []catalog.Offering
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].CRN != "10001" {
		t.Fatalf("unexpected body: %+v", got)
	}
	if got[0].Enrolled == nil || *got[0].Enrolled != 12 {
		t.Errorf("enrolled = %v", got[0].Enrolled)
	}
}

func TestCoursesColdFailureIsBadGateway(t *testing.T) {
	cat := &fakeCatalog{err: fmt.Errorf("results table never appeared")}
	h := testRouter(cat, &fakeRegistry{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/courses", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["error"] == "" {
		t.Error("missing error message")
	}
}

func TestSubscribeUpserts(t *testing.T) {
	reg := &fakeRegistry{}
	h := testRouter(&fakeCatalog{}, reg)

	body := `{"userId":"u1","courseId":"COSC001","email":"student@example.edu",` +
		`"courseName":"COSC","courseNum":"001"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/subscribe", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["message"] == "" {
		t.Error("missing confirmation message")
	}
	if reg.last == nil || reg.last.UserID != "u1" || reg.last.CourseID != "COSC001" {
		t.Fatalf("registry received %+v", reg.last)
	}
}

func TestSubscribeValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"userId":`},
		{"missing identity", `{"email":"student@example.edu"}`},
		{"missing email", `{"userId":"u1","courseId":"COSC001"}`},
		{"bad email", `{"userId":"u1","courseId":"COSC001","email":"not-an-address"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &fakeRegistry{}
			h := testRouter(&fakeCatalog{}, reg)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/subscribe", strings.NewReader(tt.body)))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if reg.last != nil {
				t.Error("invalid request reached the registry")
			}
		})
	}
}

func TestSubscribeRegistryFailureIs500(t *testing.T) {
	reg := &fakeRegistry{err: fmt.Errorf("disk full")}
	h := testRouter(&fakeCatalog{}, reg)

	body := `{"userId":"u1","courseId":"COSC001","email":"student@example.edu"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/subscribe", strings.NewReader(body)))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := testRouter(&fakeCatalog{}, &fakeRegistry{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
