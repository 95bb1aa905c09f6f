package http

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONResponseBuilder(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/analyses/1").
		Body(map[string]string{"id": "1"}).
		Write(rr)

	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rr.Header().Get("Location"); got != "/api/analyses/1" {
		t.Errorf("Location = %q", got)
	}
	if got := rr.Body.String(); got != "{\"id\":\"1\"}\n" {
		t.Errorf("body = %q", got)
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(rr)
	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d", rr.Code)
	}
	if rr.Body.Len() != 0 || rr.Header().Get("Content-Type") != "" {
		t.Errorf("expected empty response, got %q", rr.Body.String())
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().Body(map[string]float64{"x": math.NaN()}).Write(rr)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.Error == "" {
		t.Errorf("expected error body, got %q", rr.Body.String())
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		builder *JSONResponseBuilder
		status  int
		message string
	}{
		{"bad request", BadRequestError("bad"), http.StatusBadRequest, "bad"},
		{"unprocessable", UnprocessableEntityError("empty"), http.StatusUnprocessableEntity, "empty"},
		{"not found", NotFoundError("gone"), http.StatusNotFound, "gone"},
		{"internal", InternalServerError("boom"), http.StatusInternalServerError, "boom"},
		{"unavailable", ServiceUnavailableError("down"), http.StatusServiceUnavailable, "down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.builder.Write(rr)
			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}
			var body errorBody
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tt.message {
				t.Errorf("error = %q, want %q", body.Error, tt.message)
			}
			if body.Details != nil {
				t.Errorf("details = %v, want none", body.Details)
			}
		})
	}
}

func TestErrorResponseWithDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorResponseWithDetails(http.StatusUnprocessableEntity, "empty batch", map[string]int{"rows_received": 3}).Write(rr)

	var body struct {
		Error   string         `json:"error"`
		Details map[string]int `json:"details"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Details["rows_received"] != 3 {
		t.Errorf("details = %v", body.Details)
	}
}

func TestTooManyRequestsError(t *testing.T) {
	rr := httptest.NewRecorder()
	TooManyRequestsError().Write(rr)
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}
}
