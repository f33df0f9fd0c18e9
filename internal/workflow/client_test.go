package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"NewportChat/internal/config"
)

const testAppID = "4798ddd6-78b6-4bca-a3fd-6bed016016f6"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.Workflow{
		Endpoint: srv.URL,
		APIKey:   "sk-test",
		AppID:    testAppID,
	}, WithHTTPClient(srv.Client()), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestRun_SendsRequest(t *testing.T) {
	var got RunRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Unexpected Authorization header %q", auth)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Unexpected Content-Type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Write([]byte(`{"success":true,"result":"Hello from Newport"}`))
	})

	reply, err := client.Run(context.Background(), "Chatbot.flow", map[string]string{
		"topic":   "mansions",
		"context": "",
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if reply != "Hello from Newport" {
		t.Errorf("Expected reply 'Hello from Newport', got %q", reply)
	}
	if got.AppID != testAppID || got.Workflow != "Chatbot.flow" {
		t.Errorf("Unexpected request envelope: %+v", got)
	}
	if got.Variables["topic"] != "mansions" {
		t.Errorf("Expected topic variable, got %+v", got.Variables)
	}
	if v, ok := got.Variables["context"]; !ok || v != "" {
		t.Errorf("Expected empty context variable to be sent, got %+v", got.Variables)
	}
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"success":true,"result":"ignored"}`},
		{"not found", http.StatusNotFound, `not found`},
		{"unsuccessful", http.StatusOK, `{"success":false}`},
		{"malformed json", http.StatusOK, `{"success":tru`},
		{"missing result", http.StatusOK, `{"success":true}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})

			if _, err := client.Run(context.Background(), "Chatbot.flow", nil); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestRun_AcceptsAny2xx(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"success":true,"result":{"response":"Hi"}}`))
	})

	reply, err := client.Run(context.Background(), "Chatbot.flow", nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if reply != "Hi" {
		t.Errorf("Expected 'Hi', got %q", reply)
	}
}

func TestExtractReply(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{"string result", `{"success":true,"result":"42"}`, "42"},
		{"object response", `{"success":true,"result":{"response":"Hi"}}`, "Hi"},
		{"object without response", `{"success":true,"result":{"answer":"Hi", "n": 1}}`, `{"answer":"Hi","n":1}`},
		{"empty response falls back", `{"success":true,"result":{"response":""}}`, `{"response":""}`},
		{"numeric result", `{"success":true,"result":42}`, "42"},
		{"array result", `{"success":true,"result":[1, 2]}`, "[1,2]"},
		{"non-string response", `{"success":true,"result":{"response":7}}`, "7"},
		{"truthy success", `{"success":1,"result":"ok"}`, "ok"},
		{"numbers in shortest form", `{"success":true,"result":{"answer":"café","n":1.0,"e":1e2,"z":-0}}`, `{"answer":"café","n":1,"e":100,"z":0}`},
		{"member order kept", `{"success":true,"result":{"zeta":1,"alpha":{"b":[true,null],"a":"x"}}}`, `{"zeta":1,"alpha":{"b":[true,null],"a":"x"}}`},
		{"markup not escaped", `{"success":true,"result":{"html":"<b>a & b</b>"}}`, `{"html":"<b>a & b</b>"}`},
		{"escaped quotes", `{"success":true,"result":{"q":"say \"hi\"\n"}}`, `{"q":"say \"hi\"\n"}`},
		{"huge number", `{"success":true,"result":[1e400]}`, `[null]`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractReply([]byte(tc.body))
			if err != nil {
				t.Fatalf("ExtractReply returned error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestExtractReply_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"success false", `{"success":false,"result":"x"}`},
		{"success missing", `{"result":"x"}`},
		{"empty string result", `{"success":true,"result":""}`},
		{"null result", `{"success":true,"result":null}`},
		{"zero result", `{"success":true,"result":0}`},
		{"null body", `null`},
		{"case mismatch", `{"Success":true,"Result":"x"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ExtractReply([]byte(tc.body))
			if !errors.Is(err, ErrInvalidResponse) {
				t.Errorf("Expected ErrInvalidResponse, got %v", err)
			}
		})
	}
}

func TestExtractReply_NotJSON(t *testing.T) {
	for _, body := range []string{"<html>oops</html>", `["success"]`, `"text"`} {
		_, err := ExtractReply([]byte(body))
		if err == nil {
			t.Errorf("Expected error for body %q", body)
		}
		if errors.Is(err, ErrInvalidResponse) {
			t.Errorf("Expected decode error for body %q, got %v", body, err)
		}
		if err != nil && !strings.Contains(err.Error(), "failed to unmarshal") {
			t.Errorf("Unexpected error for body %q: %v", body, err)
		}
	}
}
