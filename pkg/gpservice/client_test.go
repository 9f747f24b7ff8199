package gpservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"geotask/pkg/gpjob"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	// A generous budget so the limiter never throttles tests.
	return NewClient(WithBaseURL(baseURL), WithRateLimit(1000))
}

func testParams(t *testing.T) gpjob.Parameters {
	t.Helper()
	params, err := gpjob.NewParameters(gpjob.ModeAsyncSubmit, map[string]gpjob.Value{
		"query":    gpjob.StringValue(`("reported_at" > date '1998-01-01 00:00:00')`),
		"cellSize": gpjob.NumberValue(50),
	})
	if err != nil {
		t.Fatalf("NewParameters() error: %v", err)
	}
	return params
}

func TestClient_Submit(t *testing.T) {
	t.Parallel()

	var gotBody SubmitRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/analyses" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SubmitResponse{JobID: "j-123"})
	}))
	defer server.Close()

	handle, err := testClient(t, server.URL).Submit(context.Background(), testParams(t))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if handle != "j-123" {
		t.Errorf("Submit() handle = %q, want j-123", handle)
	}
	if gotBody.Mode != string(gpjob.ModeAsyncSubmit) {
		t.Errorf("submitted mode = %q, want %q", gotBody.Mode, gpjob.ModeAsyncSubmit)
	}
	if gotBody.Inputs["cellSize"] != float64(50) {
		t.Errorf("submitted cellSize = %v, want 50", gotBody.Inputs["cellSize"])
	}
}

func TestClient_SubmitRejected(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown analysis mode"})
	}))
	defer server.Close()

	_, err := testClient(t, server.URL).Submit(context.Background(), testParams(t))
	if !errors.Is(err, gpjob.ErrSubmission) {
		t.Fatalf("Submit() error = %v, want ErrSubmission", err)
	}
	if err.Error() != "unknown analysis mode" {
		t.Errorf("Submit() message = %q, want the service's error text", err.Error())
	}
}

func TestClient_SubmitUnreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	_, err := testClient(t, server.URL).Submit(context.Background(), testParams(t))
	if !errors.Is(err, gpjob.ErrSubmission) {
		t.Fatalf("Submit() error = %v, want ErrSubmission", err)
	}
}

func TestClient_FetchStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wire string
		want gpjob.Status
	}{
		{WireSubmitted, gpjob.StatusStarted},
		{WireExecuting, gpjob.StatusStarted},
		{WirePaused, gpjob.StatusPaused},
		{WireCanceling, gpjob.StatusCancelingRequested},
		{WireCanceled, gpjob.StatusCanceled},
		{WireSucceeded, gpjob.StatusSucceeded},
		{WireFailed, gpjob.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.wire, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/analyses/j-1" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(StatusResponse{JobID: "j-1", JobStatus: tt.wire, Message: "Executing."})
			}))
			defer server.Close()

			snap, err := testClient(t, server.URL).FetchStatus(context.Background(), "j-1")
			if err != nil {
				t.Fatalf("FetchStatus() error: %v", err)
			}
			if snap.Status != tt.want {
				t.Errorf("FetchStatus() status = %s, want %s", snap.Status, tt.want)
			}
			if snap.Message != "Executing." {
				t.Errorf("FetchStatus() message = %q", snap.Message)
			}
		})
	}
}

func TestClient_FetchStatusErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
	}{
		{"unknown handle", http.StatusNotFound, `{"error":"job not found"}`, gpjob.ErrService},
		{"server failure", http.StatusInternalServerError, `{"error":"boom"}`, gpjob.ErrCommunication},
		{"gateway failure", http.StatusBadGateway, "upstream down", gpjob.ErrCommunication},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := testClient(t, server.URL).FetchStatus(context.Background(), "j-1")
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("FetchStatus() error = %v, want %v", err, tt.sentinel)
			}
		})
	}
}

func TestClient_FetchStatusTransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := testClient(t, server.URL).FetchStatus(context.Background(), "j-1")
	if !errors.Is(err, gpjob.ErrCommunication) {
		t.Fatalf("FetchStatus() error = %v, want ErrCommunication", err)
	}
}

func TestClient_FetchStatusUnknownWireStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(StatusResponse{JobID: "j-1", JobStatus: "defrosting"})
	}))
	defer server.Close()

	_, err := testClient(t, server.URL).FetchStatus(context.Background(), "j-1")
	if !errors.Is(err, gpjob.ErrService) {
		t.Fatalf("FetchStatus() error = %v, want ErrService for unknown wire status", err)
	}
}

func TestClient_FetchResult(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/analyses/j-1/result" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ResultResponse{
			LayerURL: "https://maps.example.test/layers/7",
			Extent:   gpjob.Extent{XMin: -1, YMin: -2, XMax: 3, YMax: 4, WKID: 4326},
		})
	}))
	defer server.Close()

	result, err := testClient(t, server.URL).FetchResult(context.Background(), "j-1")
	if err != nil {
		t.Fatalf("FetchResult() error: %v", err)
	}
	if result.LayerURL != "https://maps.example.test/layers/7" {
		t.Errorf("LayerURL = %q", result.LayerURL)
	}
	if result.Extent.WKID != 4326 {
		t.Errorf("Extent.WKID = %d, want 4326", result.Extent.WKID)
	}
}

func TestClient_FetchResultNotReady(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"job has not succeeded"}`))
	}))
	defer server.Close()

	_, err := testClient(t, server.URL).FetchResult(context.Background(), "j-1")
	if !errors.Is(err, gpjob.ErrResultUnavailable) {
		t.Fatalf("FetchResult() error = %v, want ErrResultUnavailable", err)
	}
}

func TestClient_Cancel(t *testing.T) {
	t.Parallel()

	var canceled bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/v1/analyses/j-1/cancel" {
			canceled = true
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if err := testClient(t, server.URL).Cancel(context.Background(), "j-1"); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if !canceled {
		t.Error("expected the cancel endpoint to be hit")
	}
}

func TestClient_CancelFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if err := testClient(t, server.URL).Cancel(context.Background(), "j-1"); err == nil {
		t.Fatal("Cancel() expected an error")
	}
}

func TestClient_APIKeyHeader(t *testing.T) {
	t.Parallel()

	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(StatusResponse{JobID: "j-1", JobStatus: WireExecuting})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(1000), WithAPIKey("k-secret"))
	if _, err := client.FetchStatus(context.Background(), "j-1"); err != nil {
		t.Fatalf("FetchStatus() error: %v", err)
	}
	if gotKey != "k-secret" {
		t.Errorf("X-Api-Key = %q, want k-secret", gotKey)
	}
}
