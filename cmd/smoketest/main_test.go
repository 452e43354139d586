package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func fakeServer(healthy bool) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "Litterly Waste Classification API", "status": "running"})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "healthy", "model_loaded": false})
	})
	mux.HandleFunc("/predict/text", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":     true,
			"message":     "Identified 1 waste categories from text description",
			"predictions": []map[string]any{{"class_name": "Plastic", "confidence": 0.8}},
		})
	})
	return httptest.NewServer(mux)
}

func TestRunChecks(t *testing.T) {
	t.Run("all pass", func(t *testing.T) {
		srv := fakeServer(true)
		defer srv.Close()

		c := &client{base: srv.URL, http: srv.Client(), log: zap.NewNop()}
		passed, total := runChecks(context.Background(), c, defaultChecks("plastic water bottle"))

		assert.Equal(t, 3, total)
		assert.Equal(t, 3, passed)
	})

	t.Run("failing health", func(t *testing.T) {
		srv := fakeServer(false)
		defer srv.Close()

		c := &client{base: srv.URL, http: srv.Client(), log: zap.NewNop()}
		passed, total := runChecks(context.Background(), c, defaultChecks("plastic water bottle"))

		assert.Equal(t, 3, total)
		assert.Equal(t, 2, passed)
	})

	t.Run("server down", func(t *testing.T) {
		srv := fakeServer(true)
		srv.Close()

		c := &client{base: srv.URL, http: &http.Client{}, log: zap.NewNop()}
		passed, _ := runChecks(context.Background(), c, defaultChecks("x"))

		assert.Zero(t, passed)
	})
}
