package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/sitesmith/internal/engine"
)

const (
	defaultMaxTokens = 4096
	defaultTimeout   = 5 * time.Minute
)

// Option configures a provider adapter.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	maxTokens  int
	httpClient *http.Client
	baseURL    string
}

func defaultOptions() options {
	return options{
		logger:     zap.NewNop(),
		maxTokens:  defaultMaxTokens,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used for failed provider calls.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxTokens caps the tokens generated per call.
func WithMaxTokens(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithHTTPClient replaces the HTTP client. Its Timeout bounds each call.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithBaseURL points the adapter at a different API endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

var statusPattern = regexp.MustCompile(`status code: (\d+)`)

// statusFromText recovers an HTTP status from SDK error strings.
func statusFromText(err error) int {
	m := statusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	code, _ := strconv.Atoi(m[1])
	return code
}

// failure converts a failed call into the single error event an adapter
// yields. A provider message wins; a bare status becomes
// "provider returned HTTP <code>"; anything else is a transport failure.
func failure(log *zap.Logger, provider string, err error, status int, message string) []engine.Event {
	wrapped := engine.WrapLLMError(err, status)
	fields := []zap.Field{
		zap.String("provider", provider),
		zap.Int("http_status", status),
		zap.Error(err),
	}
	if ee, ok := engine.AsEngineError(wrapped); ok {
		fields = append(fields,
			zap.String("kind", string(ee.Kind)),
			zap.Bool("rate_limit", ee.IsRateLimit),
			zap.Bool("auth", ee.IsAuth),
			zap.Bool("timeout", ee.IsTimeout),
			zap.Bool("quota", ee.IsQuota),
		)
	}
	log.Warn("provider call failed", fields...)

	switch {
	case message != "":
		return []engine.Event{engine.ErrorEvent(message)}
	case status >= 400:
		return []engine.Event{engine.ErrorEvent(fmt.Sprintf("provider returned HTTP %d", status))}
	default:
		return []engine.Event{engine.ErrorEvent(fmt.Sprintf("%s request failed: %v", provider, err))}
	}
}

// decodeArgs normalizes raw tool arguments into a map. Empty input and JSON
// null both decode to an empty map.
func decodeArgs(raw []byte) (map[string]any, error) {
	args := map[string]any{}
	if len(raw) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return map[string]any{}, fmt.Errorf("invalid tool arguments: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// encodeArgs renders tool arguments for providers that expect JSON text.
func encodeArgs(args map[string]any) string {
	if args == nil {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// toolCallID returns id, or a fresh "call_<uuid>" when the provider omitted it.
func toolCallID(id string) string {
	if id != "" {
		return id
	}
	return "call_" + uuid.NewString()
}

// parseSchema decodes a tool's JSON schema for the SDK request types.
func parseSchema(ts engine.ToolSchema) (map[string]any, error) {
	if ts.JSONSchema == "" {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	var schema map[string]any
	if err := json.Unmarshal([]byte(ts.JSONSchema), &schema); err != nil {
		return nil, fmt.Errorf("invalid tool schema JSON for %s: %w", ts.Name, err)
	}
	return schema, nil
}

// resultContent keeps tool results non-empty; both APIs reject empty content.
func resultContent(res *engine.ToolResult) string {
	if res.Content == "" {
		return "(empty)"
	}
	return res.Content
}
