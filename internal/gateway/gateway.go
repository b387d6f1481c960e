package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maskproxy/maskproxy/internal/config"
	"github.com/maskproxy/maskproxy/internal/logging"
	"github.com/maskproxy/maskproxy/internal/mask"
	"github.com/maskproxy/maskproxy/internal/observability"
	"github.com/rs/zerolog"
)

const (
	msgMissingAuth     = "Missing or invalid Authorization header"
	msgForbidden       = "Forbidden: Invalid Proxy API Key"
	msgMisconfigured   = "Server Configuration Error: Upstream API key missing."
	msgInternal        = "Internal Proxy Error"
	msgBodyTooLarge    = "Request body too large"
	defaultContentType = "application/json"
)

type stateKey struct{}

// exchangeState is owned by one request and collects what the exchange log
// needs while the request moves through the pipeline.
type exchangeState struct {
	ex            logging.Exchange
	counts        mask.Counts
	upstreamStart time.Time
}

type Gateway struct {
	router  *Router
	target  *url.URL
	proxy   *httputil.ReverseProxy
	creds   config.Credentials
	engine  *mask.Engine
	timeout time.Duration
	maxBody int64
	cors    bool
	logger  zerolog.Logger
	exchLog *logging.ExchangeLogger
	metrics *observability.Metrics
}

func New(cfg *config.Config, logger zerolog.Logger) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	target, err := url.Parse(cfg.Upstream.URL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream url %q must include scheme and host", cfg.Upstream.URL)
	}

	g := &Gateway{
		router:  NewRouter(cfg.Proxy.AllowPaths),
		target:  target,
		creds:   cfg.Credentials,
		engine:  mask.Default(),
		timeout: cfg.Upstream.Timeout,
		maxBody: cfg.Proxy.MaxBodyBytes,
		cors:    cfg.CORS.Enabled,
		logger:  logging.WithComponent(logger, "gateway"),
	}

	g.proxy = &httputil.ReverseProxy{
		Rewrite:        g.rewrite,
		Transport:      newTransport(cfg.Upstream.ResponseHeaderTimeout),
		FlushInterval:  -1,
		BufferPool:     newBufferPool(),
		ModifyResponse: g.observeResponse,
		ErrorHandler:   g.handleUpstreamError,
		ErrorLog:       log.New(g.logger, "", 0),
	}

	return g, nil
}

func (g *Gateway) SetExchangeLogger(logger *logging.ExchangeLogger) {
	g.exchLog = logger
}

func (g *Gateway) SetMetrics(metrics *observability.Metrics) {
	g.metrics = metrics
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	st := &exchangeState{
		ex: logging.Exchange{
			Timestamp: start.UTC(),
			RequestID: uuid.NewString(),
			ClientIP:  clientIP(r),
			Method:    r.Method,
			Path:      mask.Text(r.URL.Path),
			Query:     mask.Text(r.URL.RawQuery),
		},
	}
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	defer func() {
		if p := recover(); p != nil {
			st.ex.Outcome = logging.OutcomeAborted
			if err, ok := p.(error); ok && st.ex.Error == "" {
				st.ex.Error = err.Error()
			}
			g.finish(st, rec, start)
			panic(p)
		}
		g.finish(st, rec, start)
	}()

	if r.Method == http.MethodOptions {
		st.ex.Outcome = logging.OutcomePreflight
		rec.WriteHeader(http.StatusNoContent)
		return
	}

	if _, ok := g.router.Match(r); !ok {
		st.ex.Outcome = logging.OutcomeNotRouted
		writeError(rec, http.StatusNotImplemented, fmt.Sprintf("This proxy does not serve %s", r.URL.Path), "")
		return
	}

	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		st.ex.Outcome = logging.OutcomeUnauthorized
		writeError(rec, http.StatusUnauthorized, msgMissingAuth, "")
		return
	}
	if !g.creds.MatchInbound(token) {
		st.ex.Outcome = logging.OutcomeForbidden
		writeError(rec, http.StatusForbidden, msgForbidden, "")
		return
	}
	if !g.creds.HasUpstream() {
		st.ex.Outcome = logging.OutcomeMisconfigured
		g.logger.Error().Str("request_id", st.ex.RequestID).Msgf("upstream API key is not set (%s or %s)", config.EnvUpstreamKey, config.EnvOpenAIKey)
		writeError(rec, http.StatusInternalServerError, msgMisconfigured, "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), g.timeout)
	defer cancel()
	out := r.Clone(context.WithValue(ctx, stateKey{}, st))
	out.TransferEncoding = nil

	if carriesBody(r.Method) {
		body, status, err := g.maskBody(rec, r, st)
		if err != nil {
			st.ex.Error = g.creds.Scrub(err.Error())
			if status == http.StatusRequestEntityTooLarge {
				st.ex.Outcome = logging.OutcomeBodyTooLarge
				writeError(rec, status, msgBodyTooLarge, "")
				return
			}
			st.ex.Outcome = logging.OutcomeBadBody
			g.logger.Warn().Str("request_id", st.ex.RequestID).Err(err).Msg("request body rejected")
			writeError(rec, status, msgInternal, st.ex.Error)
			return
		}
		setBody(out, body)
	} else {
		setBody(out, nil)
	}

	g.logger.Info().
		Str("request_id", st.ex.RequestID).
		Str("method", r.Method).
		Str("path", st.ex.Path).
		Int("redactions", st.counts.Total()).
		Msg("forwarding masked request")

	st.upstreamStart = time.Now()
	g.proxy.ServeHTTP(rec, out)
	if st.ex.Outcome == "" {
		st.ex.Outcome = logging.OutcomeForwarded
	}
}

// maskBody reads and masks a JSON request body. An empty body yields nil.
func (g *Gateway) maskBody(w http.ResponseWriter, r *http.Request, st *exchangeState) ([]byte, int, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, 0, nil
	}
	if g.maxBody > 0 && r.ContentLength > g.maxBody {
		return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("content length %d exceeds %d", r.ContentLength, g.maxBody)
	}

	reader := r.Body
	if g.maxBody > 0 {
		reader = http.MaxBytesReader(w, r.Body, g.maxBody)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, http.StatusRequestEntityTooLarge, err
		}
		return nil, http.StatusInternalServerError, fmt.Errorf("read body: %w", err)
	}
	st.ex.BodyBytes = int64(len(raw))
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, 0, nil
	}

	masked, counts, err := g.engine.JSON(raw)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	st.counts = counts
	return masked, 0, nil
}

func (g *Gateway) rewrite(pr *httputil.ProxyRequest) {
	pr.SetURL(g.target)
	pr.Out.Header.Set("Authorization", "Bearer "+g.creds.Upstream())
	if pr.Out.Header.Get("Content-Type") == "" {
		pr.Out.Header.Set("Content-Type", defaultContentType)
	}
}

// observeResponse drops upstream CORS headers when WithCORS owns them, so
// callers never see a header twice.
func (g *Gateway) observeResponse(resp *http.Response) error {
	if g.cors {
		for name := range resp.Header {
			if strings.HasPrefix(name, "Access-Control-") {
				resp.Header.Del(name)
			}
		}
	}
	if st, ok := resp.Request.Context().Value(stateKey{}).(*exchangeState); ok {
		st.ex.UpstreamMS = time.Since(st.upstreamStart).Milliseconds()
	}
	return nil
}

// handleUpstreamError runs when no upstream response was received.
func (g *Gateway) handleUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	details := g.creds.Scrub(err.Error())
	st, _ := r.Context().Value(stateKey{}).(*exchangeState)
	if st != nil {
		st.ex.Error = details
		st.ex.Outcome = logging.OutcomeUpstreamError
		if errors.Is(err, context.Canceled) {
			st.ex.Outcome = logging.OutcomeAborted
		}
	}

	event := g.logger.Warn()
	if st != nil {
		event = event.Str("request_id", st.ex.RequestID)
	}
	event.Str("error", details).Msg("upstream request failed")

	writeError(w, http.StatusInternalServerError, msgInternal, details)
}

func (g *Gateway) finish(st *exchangeState, rec *statusRecorder, start time.Time) {
	st.ex.StatusCode = rec.status
	st.ex.BytesOut = rec.bytes
	st.ex.DurationMS = time.Since(start).Milliseconds()
	if len(st.counts) > 0 {
		st.ex.Redactions = make(map[string]int, len(st.counts))
		for category, n := range st.counts {
			st.ex.Redactions[string(category)] = n
		}
	}

	if g.exchLog != nil {
		if err := g.exchLog.Write(st.ex); err != nil {
			g.logger.Error().Err(err).Msg("write exchange log")
		}
	}
	if g.metrics != nil {
		g.metrics.Observe(st.ex)
	}
}

func bearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func carriesBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

func setBody(r *http.Request, body []byte) {
	if len(body) == 0 {
		r.Body = http.NoBody
		r.ContentLength = 0
		r.GetBody = nil
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func newTransport(responseHeaderTimeout time.Duration) *http.Transport {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: responseHeaderTimeout,
	}
}
