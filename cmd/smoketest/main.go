// Command smoketest checks a running classification server: the status
// endpoints answer and text classification works end to end.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/litterly/waste-classification-service/config"
	"github.com/litterly/waste-classification-service/logger"
)

type check struct {
	name string
	run  func(ctx context.Context, c *client) error
}

type client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

func main() {
	baseURL := pflag.String("url", "http://127.0.0.1:10000", "base URL of the server")
	text := pflag.String("text", "plastic water bottle", "description sent to /predict/text")
	timeout := pflag.Duration("timeout", 10*time.Second, "per-request timeout")
	pflag.Parse()

	log, err := logger.New(&config.LogConfig{Level: "info", Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	c := &client{
		base: strings.TrimRight(*baseURL, "/"),
		http: &http.Client{Timeout: *timeout},
		log:  log,
	}

	passed, total := runChecks(context.Background(), c, defaultChecks(*text))
	log.Info("Smoke test finished", zap.Int("passed", passed), zap.Int("total", total))
	if passed != total {
		os.Exit(1)
	}
}

func defaultChecks(text string) []check {
	return []check{
		{name: "root", run: checkRoot},
		{name: "health", run: checkHealth},
		{name: "text classification", run: func(ctx context.Context, c *client) error {
			return checkText(ctx, c, text)
		}},
	}
}

func runChecks(ctx context.Context, c *client, checks []check) (passed, total int) {
	for _, chk := range checks {
		if err := chk.run(ctx, c); err != nil {
			c.log.Error("Check failed", zap.String("check", chk.name), zap.Error(err))
			continue
		}
		c.log.Info("Check passed", zap.String("check", chk.name))
		passed++
	}
	return passed, len(checks)
}

func checkRoot(ctx context.Context, c *client) error {
	var body struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	}
	if err := c.getJSON(ctx, "/", &body); err != nil {
		return err
	}
	if body.Status != "running" {
		return fmt.Errorf("unexpected status %q", body.Status)
	}
	c.log.Info("Root endpoint", zap.String("message", body.Message))
	return nil
}

func checkHealth(ctx context.Context, c *client) error {
	var body struct {
		Status      string `json:"status"`
		ModelLoaded bool   `json:"model_loaded"`
	}
	if err := c.getJSON(ctx, "/health", &body); err != nil {
		return err
	}
	if body.Status != "healthy" {
		return fmt.Errorf("unexpected status %q", body.Status)
	}
	c.log.Info("Health", zap.Bool("model_loaded", body.ModelLoaded))
	return nil
}

func checkText(ctx context.Context, c *client, text string) error {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}

	var body struct {
		Success     bool   `json:"success"`
		Message     string `json:"message"`
		Predictions []struct {
			ClassName  string  `json:"class_name"`
			Confidence float64 `json:"confidence"`
		} `json:"predictions"`
	}
	if err := c.postJSON(ctx, "/predict/text", payload, &body); err != nil {
		return err
	}
	if !body.Success || len(body.Predictions) == 0 {
		return fmt.Errorf("no predictions for %q", text)
	}

	c.log.Info("Text classification", zap.String("message", body.Message))
	for _, p := range body.Predictions {
		c.log.Info("Prediction", zap.String("class_name", p.ClassName), zap.Float64("confidence", p.Confidence))
	}
	return nil
}

func (c *client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *client) postJSON(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
