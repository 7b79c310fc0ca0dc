package data

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const listHTTPTimeout = 30 * time.Second

// ReadIPList reads a generated plain-text resolver list, skipping blank and
// comment lines. Entries are returned in file order.
func ReadIPList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("data: open list: %w", err)
	}
	defer file.Close()
	return parseIPList(file)
}

// FetchIPList downloads a published resolver list over HTTP(S).
func FetchIPList(ctx context.Context, client *http.Client, url string) ([]string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	ctx, cancel := context.WithTimeout(ctx, listHTTPTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("data: list url: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("data: list url fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("data: list url: status %s", resp.Status)
	}
	return parseIPList(resp.Body)
}

// LoadIPList reads a list from a local path or, for http(s) locations, from the network.
func LoadIPList(ctx context.Context, location string) ([]string, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return FetchIPList(ctx, nil, location)
	}
	return ReadIPList(location)
}

func parseIPList(r io.Reader) ([]string, error) {
	var ips []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ips = append(ips, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("data: read list: %w", err)
	}
	return ips, nil
}
