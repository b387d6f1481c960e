package logging

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const maxErrorLen = 256

// Outcome is how the proxy finished an exchange.
type Outcome string

const (
	OutcomePreflight     Outcome = "preflight"
	OutcomeNotRouted     Outcome = "not_routed"
	OutcomeUnauthorized  Outcome = "unauthenticated"
	OutcomeForbidden     Outcome = "forbidden"
	OutcomeMisconfigured Outcome = "misconfigured"
	OutcomeBodyTooLarge  Outcome = "body_too_large"
	OutcomeBadBody       Outcome = "bad_body"
	OutcomeForwarded     Outcome = "forwarded"
	OutcomeUpstreamError Outcome = "upstream_error"
	OutcomeAborted       Outcome = "aborted"
)

// Exchange is written as a single JSON object per request. Path and query
// are stored after masking; credentials are never recorded.
type Exchange struct {
	Timestamp  time.Time      `json:"ts"`
	RequestID  string         `json:"request_id"`
	ClientIP   string         `json:"client_ip"`
	Method     string         `json:"method"`
	Path       string         `json:"path"`
	Query      string         `json:"query,omitempty"`
	Outcome    Outcome        `json:"outcome"`
	StatusCode int            `json:"status_code"`
	Redactions map[string]int `json:"redactions,omitempty"`
	BodyBytes  int64          `json:"body_bytes"`
	BytesOut   int64          `json:"bytes_out"`
	DurationMS int64          `json:"duration_ms"`
	UpstreamMS int64          `json:"upstream_ms"`
	Error      string         `json:"error,omitempty"`
}

type ExchangeLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func NewExchangeLogger(w io.Writer) *ExchangeLogger {
	return &ExchangeLogger{w: w}
}

func OpenExchangeLog(path string) (*ExchangeLogger, func() error, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return NewExchangeLogger(file), file.Close, nil
}

func (l *ExchangeLogger) Write(ex Exchange) error {
	if len(ex.Error) > maxErrorLen {
		ex.Error = ex.Error[:maxErrorLen]
	}

	data, err := json.Marshal(ex)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.w.Write(append(data, '\n'))
	return err
}
