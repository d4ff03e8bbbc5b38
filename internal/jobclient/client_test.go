package jobclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yungbote/companion-client/internal/domain/persona"
	"github.com/yungbote/companion-client/internal/platform/apierr"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL + "/", Token: "tok"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, &calls
}

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	raw, _ := json.Marshal(data)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Success: true, Data: raw})
}

func writeFailure(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Success: false, Error: &EnvelopeError{Code: code, Message: "nope"}})
}

func TestSubmitPersonaJobSendsPayload(t *testing.T) {
	var got PersonaJobRequest
	var auth, requestID string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/personas/jobs" {
			t.Errorf("route: got %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		requestID = r.Header.Get("X-Request-ID")
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeEnvelope(w, http.StatusOK, JobReceipt{TargetKey: "p1", EstimatedSeconds: 60, PreviewAssetURL: "http://x/p1.png", Cost: 100})
	})

	receipt, err := c.SubmitPersonaJob(context.Background(), "owner-1", PersonaJobPayload{Name: " Mina ", Description: "kind", Photo: []byte("img")})
	if err != nil {
		t.Fatalf("SubmitPersonaJob: %v", err)
	}
	if receipt.TargetKey != "p1" || receipt.EstimatedSeconds != 60 || receipt.Cost != 100 {
		t.Fatalf("receipt: got=%+v", receipt)
	}
	if got.Name != "Mina" || got.OwnerID != "owner-1" || got.PhotoBase64 != "aW1n" {
		t.Fatalf("payload: got=%+v", got)
	}
	if auth != "Bearer tok" {
		t.Fatalf("auth header: got=%q", auth)
	}
	if requestID == "" {
		t.Fatalf("X-Request-ID should be set")
	}
}

func TestErrorsMapToClosedSet(t *testing.T) {
	cases := []struct {
		name string
		h    http.HandlerFunc
		want apierr.Code
	}{
		{"402", func(w http.ResponseWriter, r *http.Request) { writeFailure(w, http.StatusPaymentRequired, "") }, apierr.InsufficientPoint},
		{"envelope code", func(w http.ResponseWriter, r *http.Request) {
			writeFailure(w, http.StatusBadRequest, string(apierr.InsufficientPoint))
		}, apierr.InsufficientPoint},
		{"unknown code", func(w http.ResponseWriter, r *http.Request) { writeFailure(w, http.StatusBadRequest, "WEIRD") }, apierr.NetworkOrServer},
		{"500 html", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "<html>oops</html>")
		}, apierr.NetworkOrServer},
		{"200 malformed", func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, "{not json") }, apierr.NetworkOrServer},
		{"200 success=false", func(w http.ResponseWriter, r *http.Request) { writeFailure(w, http.StatusOK, "") }, apierr.NetworkOrServer},
		{"200 without target", func(w http.ResponseWriter, r *http.Request) { writeEnvelope(w, http.StatusOK, JobReceipt{}) }, apierr.NetworkOrServer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, calls := newTestClient(t, tc.h)
			_, err := c.SubmitDressJob(context.Background(), "o", "p", "red coat")
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := apierr.CodeOf(err); got != tc.want {
				t.Fatalf("code: want=%q got=%q (err=%v)", tc.want, got, err)
			}
			if *calls != 1 {
				t.Fatalf("calls: want=1 (no retries) got=%d", *calls)
			}
		})
	}
}

func TestTransportErrorIsNetworkError(t *testing.T) {
	c, err := New(Options{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.ListPersonas(context.Background(), "o")
	if apierr.CodeOf(err) != apierr.NetworkOrServer {
		t.Fatalf("code: want=%q got=%q", apierr.NetworkOrServer, apierr.CodeOf(err))
	}
}

func TestToggleFavoriteRejectsBadFlag(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]string{"favorite_yn": "maybe"})
	})
	if _, err := c.ToggleFavorite(context.Background(), "o", "p"); apierr.CodeOf(err) != apierr.NetworkOrServer {
		t.Fatalf("bad flag should be a malformed response, got=%v", err)
	}
}

func TestListEndpoints(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/owners/o%2F1/personas" || r.URL.RawPath == "/v1/owners/o%2F1/personas":
			writeEnvelope(w, http.StatusOK, PersonaList{Personas: []persona.Persona{{PersonaKey: "a", DoneYN: persona.FlagYes}}})
		case strings.HasSuffix(r.URL.Path, "/dresses"):
			writeEnvelope(w, http.StatusOK, DressList{})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ps, err := c.ListPersonas(context.Background(), "o/1")
	if err != nil {
		t.Fatalf("ListPersonas: %v", err)
	}
	if len(ps) != 1 || !ps[0].Ready() {
		t.Fatalf("personas: got=%+v", ps)
	}
	ds, err := c.ListDresses(context.Background(), "a")
	if err != nil {
		t.Fatalf("ListDresses: %v", err)
	}
	if ds == nil || len(ds) != 0 {
		t.Fatalf("empty dress list should be non-nil and empty, got=%v", ds)
	}
}

func TestDeletePersonaPassesOwner(t *testing.T) {
	var owner string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method: got=%s", r.Method)
		}
		owner = r.URL.Query().Get("owner_id")
		_ = json.NewEncoder(w).Encode(Envelope{Success: true})
	})
	if err := c.DeletePersona(context.Background(), "owner 7", "p"); err != nil {
		t.Fatalf("DeletePersona: %v", err)
	}
	if owner != "owner 7" {
		t.Fatalf("owner_id: got=%q", owner)
	}
}

func TestRouteOf(t *testing.T) {
	cases := map[string]string{
		"/v1/personas/jobs":            "/v1/personas/jobs",
		"/v1/personas/abc/dresses/jobs": "/v1/personas/:key/dresses/jobs",
		"/v1/jobs/xyz":                 "/v1/jobs/:key",
		"/v1/personas/abc?owner_id=1":  "/v1/personas/:key",
		"/v1/owners/o/personas":        "/v1/owners/:key/personas",
	}
	for in, want := range cases {
		if got := routeOf(in); got != want {
			t.Fatalf("routeOf(%q): want=%q got=%q", in, want, got)
		}
	}
}

func TestReceiptsDescribeJobs(t *testing.T) {
	r := JobReceipt{TargetKey: "dress-1", EstimatedSeconds: 30, PreviewAssetURL: "/assets/dress-1.png", Cost: 20}
	got := r.Job(persona.TargetDress)
	want := persona.GenerationJob{TargetType: persona.TargetDress, TargetKey: "dress-1", Cost: 20, EstimateTime: 30, ResultRef: "/assets/dress-1.png"}
	if got != want {
		t.Fatalf("dress job: want=%+v got=%+v", want, got)
	}

	v := VideoReceipt{PendingVideoURL: "/assets/p1.mp4", JobKey: "video-1", Cost: 50}
	vj := v.Job()
	if vj.TargetType != persona.TargetVideo || vj.TargetKey != "video-1" || vj.ResultRef != "/assets/p1.mp4" || vj.Cost != 50 {
		t.Fatalf("video job: got=%+v", vj)
	}
}
