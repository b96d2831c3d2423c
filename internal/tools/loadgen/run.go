// Package loadgen drives synthetic traffic against a running registry server.
package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Config controls a traffic run. Profile selects the request mix:
// "auth" exercises register/login/refresh, "templates" the public catalog,
// "mixed" both.
type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
}

type Result struct {
	TotalRequests int
	Failures      int
	StatusClasses map[string]int
}

type request struct {
	method string
	path   string
	body   any
}

func normalizeProfile(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "mixed"
	}
	return p
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

// Run generates traffic until the configured duration elapses or ctx is
// cancelled. A request counts as a failure only on transport error or a 5xx
// response; expected 4xx responses (bad credentials, missing keys) are part
// of the mix.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("loadgen: base url required")
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	profile := normalizeProfile(cfg.Profile)

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	rng := rand.New(rand.NewSource(cfg.Seed))
	runID := rng.Int63()

	work := make(chan request)
	var mu sync.Mutex
	result := &Result{StatusClasses: map[string]int{}}
	client := &http.Client{Timeout: 10 * time.Second}

	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range work {
				class, err := send(ctx, client, cfg.BaseURL, req)
				mu.Lock()
				result.TotalRequests++
				result.StatusClasses[class]++
				if err != nil || class == "5xx" {
					result.Failures++
				}
				mu.Unlock()
			}
		}()
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()
	seq := 0
feed:
	for {
		select {
		case <-ctx.Done():
			break feed
		case <-ticker.C:
			seq++
			select {
			case work <- pick(profile, runID, seq, rng):
			case <-ctx.Done():
				break feed
			}
		}
	}
	close(work)
	wg.Wait()
	return result, nil
}

func pick(profile string, runID int64, seq int, rng *rand.Rand) request {
	authReqs := func() request {
		email := fmt.Sprintf("loadgen-%d-%d@example.test", runID, seq)
		switch rng.Intn(3) {
		case 0:
			return request{http.MethodPost, "/api/v1/auth/register", map[string]string{
				"username":        fmt.Sprintf("loadgen-%d-%d", runID, seq),
				"email":           email,
				"password":        "loadgen-password",
				"confirmPassword": "loadgen-password",
			}}
		case 1:
			return request{http.MethodPost, "/api/v1/auth/login", map[string]string{
				"email":    email,
				"password": "wrong-password",
			}}
		default:
			return request{http.MethodPost, "/api/v1/auth/refresh", map[string]string{
				"refreshToken": fmt.Sprintf("loadgen-bogus-%d", seq),
			}}
		}
	}
	templateReqs := func() request {
		if rng.Intn(2) == 0 {
			return request{http.MethodGet, "/api/v1/templates?page=1&page_size=10", nil}
		}
		return request{http.MethodGet, fmt.Sprintf("/api/v1/templates/%d", 1+rng.Intn(50)), nil}
	}
	switch profile {
	case "auth":
		return authReqs()
	case "templates":
		return templateReqs()
	default:
		if rng.Intn(2) == 0 {
			return authReqs()
		}
		return templateReqs()
	}
}

func send(ctx context.Context, client *http.Client, baseURL string, r request) (string, error) {
	var body io.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			return "other", err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, strings.TrimRight(baseURL, "/")+r.path, body)
	if err != nil {
		return "other", err
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return "other", err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return classifyStatusClass(resp.StatusCode), nil
}
