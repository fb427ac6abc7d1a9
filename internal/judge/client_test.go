package judge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sherpa/internal/config"
	"sherpa/internal/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.Judge{
		APIKey:         "sk-test",
		Model:          "openai/gpt-4o",
		TimeoutSeconds: 5,
	}, WithBaseURL(server.URL), WithHTTPClient(server.Client()))
}

func completionResponse(content string) string {
	return `{"choices":[{"message":{"content":"` + content + `"}}]}`
}

func TestEvaluateYes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("expected 2 messages, got %d", len(req.Messages))
		}
		user := req.Messages[1]
		if !strings.Contains(user.Content[0].Text, "A terminal window is visible") {
			t.Errorf("criteria missing from prompt: %q", user.Content[0].Text)
		}
		if user.Content[1].ImageURL == nil || !strings.HasPrefix(user.Content[1].ImageURL.URL, "data:image/png;base64,") {
			t.Errorf("expected data url image part, got %+v", user.Content[1])
		}
		w.Write([]byte(completionResponse("YES")))
	})

	done, err := client.Evaluate(context.Background(), Screenshot{Data: []byte{1, 2, 3}}, "A terminal window is visible")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !done {
		t.Fatal("expected YES verdict")
	}
}

func TestEvaluateNo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(completionResponse("no")))
	})

	done, err := client.Evaluate(context.Background(), Screenshot{Data: []byte{1}}, "criteria")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if done {
		t.Fatal("expected NO verdict")
	}
}

func TestEvaluateRejectsAmbiguousVerdict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(completionResponse("Maybe, the window is partially open")))
	})

	_, err := client.Evaluate(context.Background(), Screenshot{Data: []byte{1}}, "criteria")
	if !errors.Is(err, services.ErrJudgment) {
		t.Fatalf("expected ErrJudgment, got %v", err)
	}
}

func TestEvaluateHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusBadGateway)
	})

	_, err := client.Evaluate(context.Background(), Screenshot{Data: []byte{1}}, "criteria")
	if !errors.Is(err, services.ErrJudgment) {
		t.Fatalf("expected ErrJudgment, got %v", err)
	}
}

func TestEvaluateTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(config.Judge{APIKey: "sk-test", TimeoutSeconds: 1},
		WithBaseURL(server.URL), WithHTTPClient(&http.Client{}))
	client.timeout = 50 * time.Millisecond

	_, err := client.Evaluate(context.Background(), Screenshot{Data: []byte{1}}, "criteria")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestEvaluateWithoutAPIKey(t *testing.T) {
	client := NewClient(config.Judge{})
	_, err := client.Evaluate(context.Background(), Screenshot{Data: []byte{1}}, "criteria")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestEvaluateRejectsEmptyScreenshot(t *testing.T) {
	client := NewClient(config.Judge{APIKey: "sk-test"})
	_, err := client.Evaluate(context.Background(), Screenshot{}, "criteria")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestParseVerdictVariants(t *testing.T) {
	cases := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"YES", true, false},
		{" yes \n", true, false},
		{"NO", false, false},
		{"No.", false, false},
		{"", false, true},
		{"YES and NO", false, true},
	}
	for _, tc := range cases {
		got, err := parseVerdict(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseVerdict(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseVerdict(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseVerdict(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
