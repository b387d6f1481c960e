package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maskproxy/maskproxy/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	exchanges := []logging.Exchange{
		{Timestamp: time.Unix(0, 0), Outcome: logging.OutcomeForwarded, Path: "/v1/chat/completions", StatusCode: 200, DurationMS: 10,
			Redactions: map[string]int{"email": 2, "phone": 1}},
		{Timestamp: time.Unix(1, 0), Outcome: logging.OutcomeForbidden, StatusCode: 403, DurationMS: 30},
		{Timestamp: time.Unix(2, 0), Outcome: logging.OutcomeUpstreamError, StatusCode: 500, DurationMS: 20},
		{Timestamp: time.Unix(3, 0), Outcome: logging.OutcomeForwarded, Path: "/v1/chat/completions", StatusCode: 200, DurationMS: 40,
			Redactions: map[string]int{"email": 1}},
	}

	summary := Summarize(exchanges)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Forwarded)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 1, summary.UpstreamErrors)
	assert.Equal(t, 4, summary.Redactions)
	assert.Equal(t, []CountItem{{Key: "email", Count: 3}, {Key: "phone", Count: 1}}, summary.Categories)
	require.NotEmpty(t, summary.StatusCodes)
	assert.Equal(t, "200", summary.StatusCodes[0].Key)
	assert.Equal(t, []CountItem{{Key: "/v1/chat/completions", Count: 2}}, summary.TopPaths)
	assert.True(t, summary.Start.Equal(time.Unix(0, 0)))
	assert.True(t, summary.End.Equal(time.Unix(3, 0)))
	assert.Equal(t, LatencySummary{P50: 20, P95: 40, P99: 40}, summary.Latency)
}

func TestSummarizeSeparatesMisconfiguration(t *testing.T) {
	summary := Summarize([]logging.Exchange{
		{Outcome: logging.OutcomeMisconfigured, StatusCode: 500},
		{Outcome: logging.OutcomeMisconfigured, StatusCode: 500},
		{Outcome: logging.OutcomeAborted, StatusCode: 200},
	})

	assert.Equal(t, 2, summary.Misconfigured)
	assert.Equal(t, 1, summary.UpstreamErrors)
	assert.Zero(t, summary.Rejected)
	assert.Contains(t, RenderText(summary), "Misconfigured: 2")
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	assert.Zero(t, summary.Total)
	assert.Contains(t, RenderText(summary), "Outcomes: none")
}

func TestReaderSince(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exchanges.jsonl")

	logger, closeLog, err := logging.OpenExchangeLog(path)
	require.NoError(t, err)
	require.NoError(t, logger.Write(logging.Exchange{Timestamp: time.Now().Add(-2 * time.Hour), Outcome: logging.OutcomeForwarded}))
	require.NoError(t, logger.Write(logging.Exchange{Timestamp: time.Now(), Outcome: logging.OutcomeForbidden}))
	require.NoError(t, closeLog())

	exchanges, err := (&Reader{Since: time.Now().Add(-time.Hour)}).Read(path)
	require.NoError(t, err)
	require.Len(t, exchanges, 1)
	assert.Equal(t, logging.OutcomeForbidden, exchanges[0].Outcome)
}

func TestReaderRejectsBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0o600))

	_, err := (&Reader{}).Read(path)
	assert.Error(t, err)
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown(Summary{Total: 1, Categories: []CountItem{{Key: "phone", Count: 1}}})
	assert.Contains(t, out, "# maskproxy report")
	assert.Contains(t, out, "- phone: 1")
}

func TestRenderJSON(t *testing.T) {
	data, err := RenderJSON(Summary{Total: 1})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total": 1`)
}
