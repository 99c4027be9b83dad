package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type target struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	WantStatus int    `json:"wantStatus"`
	Critical   bool   `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type check struct {
	Target   target
	Status   int
	OK       bool
	Error    error
	Duration time.Duration
}

func main() {
	var (
		base        string
		token       string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&token, "token", "", "Bearer token for authenticated targets")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "smoke", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var breaking int

	for _, t := range targets {
		c := runCheck(client, base, token, t)
		printCheck(c)
		if !c.OK && t.Critical {
			breaking++
		}
	}

	fmt.Printf("Failed critical checks: %d\n", breaking)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func runCheck(client *http.Client, base, token string, tgt target) check {
	c := check{Target: tgt}

	req, err := http.NewRequest(tgt.Method, base+tgt.Path, nil)
	if err != nil {
		c.Error = err
		return c
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	c.Duration = time.Since(start)
	if err != nil {
		c.Error = err
		return c
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	c.Status = resp.StatusCode
	want := tgt.WantStatus
	if want == 0 {
		want = http.StatusOK
	}
	c.OK = c.Status == want
	return c
}

func printCheck(c check) {
	status := "ok"
	if c.Error != nil {
		status = fmt.Sprintf("error: %v", c.Error)
	} else if !c.OK {
		status = fmt.Sprintf("unexpected status %d", c.Status)
	}
	fmt.Printf("%-6s %-45s %-8s %s\n", c.Target.Method, c.Target.Path, c.Duration.Round(time.Millisecond), status)
}
