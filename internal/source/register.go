package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Register announces a source to the hub at hubURL. The hub derives the
// source address from the connection, so only the name and transport are sent.
func Register(ctx context.Context, client *http.Client, hubURL, name, transport string) error {
	body, err := json.Marshal(map[string]string{"name": name, "type": transport})
	if err != nil {
		return fmt.Errorf("failed to marshal registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(hubURL, "/")+"/register", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach hub: %w", err)
	}
	defer resp.Body.Close()

	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hub rejected registration: %d %s", resp.StatusCode, strings.TrimSpace(string(reply)))
	}
	return nil
}
