//
//
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/orbital-demo/satlink/internal/auth"
)

// Actions recorded by the hub.
const (
	ActionRegister    = "register"
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	Timestamp time.Time `json:"ts"`
	User      string    `json:"user"`
	Action    string    `json:"action"`
	Remote    string    `json:"remote"`
	Name      string    `json:"name,omitempty"`
	Transport string    `json:"transport,omitempty"`
	URL       string    `json:"url,omitempty"`
	Outcome   string    `json:"outcome"`
	Code      string    `json:"code"`
	Detail    string    `json:"detail,omitempty"`
}

// Options controls rotation of the audit file.
type Options struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger implements the audit logging functionality.
type Logger struct {
	mu       sync.Mutex
	filePath string
	file     *lumberjack.Logger
}

// NewLogger creates an audit logger writing to logDir/audit.jsonl.
func NewLogger(logDir string, opts Options) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 50
	}

	filePath := filepath.Join(logDir, "audit.jsonl")
	return &Logger{
		filePath: filePath,
		file: &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		},
	}, nil
}

// LogRegistration records one registration attempt. A nil err means accepted.
func (l *Logger) LogRegistration(ctx context.Context, remote, name, transport, url string, err error) {
	entry := AuditEntry{
		Timestamp: time.Now().UTC(),
		User:      l.getUserFromContext(ctx),
		Action:    ActionRegister,
		Remote:    remote,
		Name:      name,
		Transport: transport,
		URL:       url,
		Outcome:   "accepted",
		Code:      "SUCCESS",
	}
	if err != nil {
		entry.Outcome = "rejected"
		entry.Code = l.getCodeFromError(err)
		entry.Detail = err.Error()
	}

	l.writeEntry(entry)
}

// LogSubscription records an event stream opening or closing.
func (l *Logger) LogSubscription(ctx context.Context, action, remote, outcome string) {
	l.writeEntry(AuditEntry{
		Timestamp: time.Now().UTC(),
		User:      l.getUserFromContext(ctx),
		Action:    action,
		Remote:    remote,
		Outcome:   outcome,
		Code:      "SUCCESS",
	})
}

// writeEntry writes an audit entry to the log file.
func (l *Logger) writeEntry(entry AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal audit entry: %v\n", err)
		return
	}

	if _, err := l.file.Write(append(jsonData, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit entry: %v\n", err)
	}
}

// getUserFromContext returns the authenticated subject, if any.
func (l *Logger) getUserFromContext(ctx context.Context) string {
	if ctx != nil {
		if claims, ok := ctx.Value(auth.ClaimsKey).(*auth.Claims); ok && claims.Subject != "" {
			return claims.Subject
		}
	}
	return "anonymous"
}

// codedError is implemented by errors that carry a stable audit code.
type codedError interface {
	AuditCode() string
}

// getCodeFromError maps hub errors to stable codes.
func (l *Logger) getCodeFromError(err error) string {
	if err == nil {
		return "SUCCESS"
	}

	var coded codedError
	if errors.As(err, &coded) {
		return coded.AuditCode()
	}
	return "ERROR"
}

// Close closes the audit logger and its file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// GetFilePath returns the path to the audit log file.
func (l *Logger) GetFilePath() string {
	return l.filePath
}

// Rotate moves the current file aside and starts a new one.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("audit logger closed")
	}
	return l.file.Rotate()
}
