package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/orbital-demo/satlink/internal/auth"
	"github.com/orbital-demo/satlink/internal/discovery"
)

func readEntries(t *testing.T, path string) []AuditEntry {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open audit log: %v", err)
	}
	defer file.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("Invalid JSON line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "logs")

	logger, err := NewLogger(tempDir, Options{})
	if err != nil {
		t.Fatalf("NewLogger() failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	expectedPath := filepath.Join(tempDir, "audit.jsonl")
	if logger.GetFilePath() != expectedPath {
		t.Errorf("Expected file path %s, got %s", expectedPath, logger.GetFilePath())
	}
	if _, err := os.Stat(tempDir); err != nil {
		t.Errorf("Log directory was not created: %v", err)
	}
}

func TestLogRegistration(t *testing.T) {
	logger, err := NewLogger(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("NewLogger() failed: %v", err)
	}

	ctx := context.Background()
	logger.LogRegistration(ctx, "10.0.0.5:41000", "echo", "ws", "ws://10.0.0.5", nil)
	logger.LogRegistration(ctx, "10.0.0.6:41000", "bad", "ftp", "", fmt.Errorf("%w: ftp", discovery.ErrInvalidTransport))
	logger.LogRegistration(ctx, "10.0.0.7:41000", "", "", "", errors.New("boom"))
	logger.LogRegistration(ctx, "10.0.0.8:41000", "x", "ws", "", errors.New("MALFORMED_PAYLOAD lookalike"))
	logger.Close()

	entries := readEntries(t, logger.GetFilePath())
	if len(entries) != 4 {
		t.Fatalf("Expected 4 entries, got %d", len(entries))
	}

	if entries[0].Outcome != "accepted" || entries[0].Code != "SUCCESS" || entries[0].URL != "ws://10.0.0.5" {
		t.Errorf("Unexpected accepted entry %+v", entries[0])
	}
	if entries[0].User != "anonymous" {
		t.Errorf("Expected anonymous user, got %q", entries[0].User)
	}
	if entries[1].Outcome != "rejected" || entries[1].Code != "INVALID_TRANSPORT" {
		t.Errorf("Unexpected rejected entry %+v", entries[1])
	}
	if entries[2].Code != "ERROR" || entries[2].Detail != "boom" {
		t.Errorf("Expected generic error code, got %+v", entries[2])
	}
	if entries[3].Code != "ERROR" {
		t.Errorf("Expected code from error type, not message text, got %q", entries[3].Code)
	}
}

func TestLogSubscriptionUsesClaims(t *testing.T) {
	logger, err := NewLogger(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("NewLogger() failed: %v", err)
	}

	ctx := context.WithValue(context.Background(), auth.ClaimsKey, &auth.Claims{Subject: "viewer-1"})
	logger.LogSubscription(ctx, ActionSubscribe, "10.0.0.9:5000", "open")
	logger.Close()

	entries := readEntries(t, logger.GetFilePath())
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].User != "viewer-1" || entries[0].Action != ActionSubscribe {
		t.Errorf("Unexpected entry %+v", entries[0])
	}
}

func TestWriteAfterClose(t *testing.T) {
	logger, err := NewLogger(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("NewLogger() failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	logger.LogRegistration(context.Background(), "x", "n", "ws", "ws://x", nil)
	if err := logger.Close(); err != nil {
		t.Errorf("Second Close() should be a no-op, got %v", err)
	}
	if err := logger.Rotate(); err == nil {
		t.Error("Rotate() after Close should fail")
	}
}

func TestRotate(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, Options{MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewLogger() failed: %v", err)
	}
	defer logger.Close()

	logger.LogRegistration(context.Background(), "a", "first", "ws", "ws://a", nil)
	if err := logger.Rotate(); err != nil {
		t.Fatalf("Rotate() failed: %v", err)
	}
	logger.LogRegistration(context.Background(), "b", "second", "ws", "ws://b", nil)

	files, _ := os.ReadDir(dir)
	backups := 0
	for _, f := range files {
		if strings.HasPrefix(f.Name(), "audit-") {
			backups++
		}
	}
	if backups != 1 {
		t.Errorf("Expected one rotated backup, got %d", backups)
	}

	entries := readEntries(t, logger.GetFilePath())
	if len(entries) != 1 || entries[0].Name != "second" {
		t.Errorf("Expected only the post-rotation entry, got %+v", entries)
	}
}
