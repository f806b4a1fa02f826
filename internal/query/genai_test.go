package query

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenAIGeneratorRoundTrip(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"[{\"date\":\"2024-01-01\",\"price\":1}]"}]}}]}`)
	}))
	defer srv.Close()

	gen, err := NewGenAIGenerator(context.Background(), "test-key", "gemini-test", srv.URL)
	if err != nil {
		t.Fatalf("NewGenAIGenerator: %v", err)
	}
	text, err := gen.Generate(context.Background(), "prices please", historySchema)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != `[{"date":"2024-01-01","price":1}]` {
		t.Errorf("text = %q", text)
	}
	if !strings.Contains(gotPath, "gemini-test:generateContent") {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody == nil {
		t.Error("request body was not JSON")
	}
}

func TestNewGenAIGeneratorRequiresKey(t *testing.T) {
	if _, err := NewGenAIGenerator(context.Background(), "", "gemini-test", ""); err == nil {
		t.Fatal("expected error without API key")
	}
}
