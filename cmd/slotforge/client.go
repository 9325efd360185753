package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

const defaultAPIPort = 9100

// apiPort resolves the daemon's API port: SLOTFORGE_API_PORT if set,
// otherwise the default.
func apiPort() int {
	if v := os.Getenv("SLOTFORGE_API_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			return port
		}
	}
	return defaultAPIPort
}

func apiBaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", apiPort())
}

// apiCall is the CLI's client for the daemon's JSON HTTP API: encode
// body (if any) as JSON, send it, decode the response into out (if
// non-nil).
func apiCall(method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, apiBaseURL()+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach slotforge daemon at %s: %w", apiBaseURL(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct{ Error string `json:"error"` }
		json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
