package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const fallback = "fallback advice"

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestAdviceReturnsResult(t *testing.T) {
	var got adviceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.Header.Get("X-RapidAPI-Key") != "secret" || r.Header.Get("X-RapidAPI-Host") != "advice.local" {
			t.Errorf("credential headers missing: %v", r.Header)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"result":"save 20%","status":"ok"}`))
	}))
	defer srv.Close()

	c := NewAdviceClient(srv.URL, "secret", "advice.local", quietLogger())
	if text := c.Advice(context.Background(), "my data", fallback); text != "save 20%" {
		t.Fatalf("Advice = %q", text)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "my data" {
		t.Fatalf("request body = %+v", got)
	}
}

func TestAdviceFallback(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"missing result", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"answer":"hi"}`))
		}},
		{"empty result", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"result":"  "}`))
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>busy</html>`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewAdviceClient(srv.URL, "", "", quietLogger())
			if text := c.Advice(context.Background(), "x", fallback); text != fallback {
				t.Fatalf("Advice = %q, want fallback", text)
			}
		})
	}
}

func TestAdviceUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewAdviceClient(url, "", "", quietLogger())
	if text := c.Advice(context.Background(), "x", fallback); text != fallback {
		t.Fatalf("Advice = %q, want fallback", text)
	}

	unset := NewAdviceClient("", "", "", quietLogger())
	if text := unset.Advice(context.Background(), "x", fallback); !strings.Contains(text, "fallback") {
		t.Fatalf("unconfigured Advice = %q", text)
	}
}
