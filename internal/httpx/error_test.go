package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteErrorEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusServiceUnavailable, "registry down")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type: %s", ct)
	}
	var body struct {
		Error ErrorPayload `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "Service Unavailable" || body.Error.Message != "registry down" {
		t.Fatalf("unexpected payload: %+v", body.Error)
	}
}

func TestWriteTypedErrorDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteTypedError(rr, http.StatusBadRequest, "invalid_request", "bad", []string{"path: required"})
	var body map[string]map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"]["code"] != "invalid_request" {
		t.Fatalf("code: %v", body["error"]["code"])
	}
	if d, ok := body["error"]["details"].([]any); !ok || len(d) != 1 {
		t.Fatalf("details: %v", body["error"]["details"])
	}
}
