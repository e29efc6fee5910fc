// Package registry is the client for the MFDS drug product approval search
// API on data.go.kr.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/giygas/mfds-oncology-api/entities"
	"github.com/giygas/mfds-oncology-api/logging"
	"github.com/giygas/mfds-oncology-api/metrics"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://apis.data.go.kr/1471000/DrugPrdtPrmsnInfoService07/getDrugPrdtPrmsnInq07"

const maxBodySize = 10 << 20

var (
	ErrMissingServiceKey = errors.New("registry service key is not configured")
	ErrUnexpectedBody    = errors.New("unexpected registry response body")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry responded with status %d: %s", e.StatusCode, e.Body)
}

// UpstreamError is an error reported inside an otherwise successful
// response (result code other than "00", or an XML gateway error).
type UpstreamError struct {
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("registry error %s: %s", e.Code, e.Message)
}

type Config struct {
	BaseURL        string
	ServiceKey     string
	PageSize       int
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RatePerSecond  float64
	HTTPClient     *http.Client
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	serviceKey     string
	pageSize       int
	requestTimeout time.Duration
	maxRetries     int
	retryBase      time.Duration
	retryMax       time.Duration
	limiter        *rate.Limiter
}

// NewClient validates cfg and applies defaults for unset fields. A missing
// service key is a configuration error.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.ServiceKey)
	if key == "" {
		return nil, ErrMissingServiceKey
	}
	// Portal keys are often handed out already URL-encoded.
	if strings.Contains(key, "%") {
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
	}

	c := &Client{
		httpClient:     cfg.HTTPClient,
		baseURL:        cfg.BaseURL,
		serviceKey:     key,
		pageSize:       cfg.PageSize,
		requestTimeout: cfg.RequestTimeout,
		maxRetries:     cfg.MaxRetries,
		retryBase:      cfg.RetryBaseDelay,
		retryMax:       cfg.RetryMaxDelay,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.pageSize <= 0 {
		c.pageSize = 100
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = 15 * time.Second
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.retryBase <= 0 {
		c.retryBase = 500 * time.Millisecond
	}
	if c.retryMax <= 0 {
		c.retryMax = 5 * time.Second
	}
	if cfg.RatePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	if _, err := url.Parse(c.baseURL); err != nil {
		return nil, fmt.Errorf("invalid registry base URL: %w", err)
	}

	return c, nil
}

// Search queries the registry for products whose name contains itemName.
// Failed attempts are retried up to the configured limit when the failure
// is transient; each attempt has its own timeout.
func (c *Client) Search(ctx context.Context, itemName string) (*entities.RegistryPage, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := Backoff(attempt-1, c.retryBase, c.retryMax)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("registry search %q: %w", itemName, ctx.Err())
			case <-timer.C:
			}
		}

		start := time.Now()
		page, err := c.searchOnce(ctx, itemName)
		metrics.RegistryRequestDuration.Observe(time.Since(start).Seconds())

		if err == nil {
			metrics.RegistryRequestsTotal.WithLabelValues("success").Inc()
			return page, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			metrics.RegistryRequestsTotal.WithLabelValues("cancelled").Inc()
			return nil, fmt.Errorf("registry search %q: %w", itemName, ctx.Err())
		}
		if !IsRetryable(err) {
			metrics.RegistryRequestsTotal.WithLabelValues("failed").Inc()
			break
		}

		metrics.RegistryRequestsTotal.WithLabelValues("retryable").Inc()
		if attempt < c.maxRetries {
			logging.Warn("Registry request failed, retrying",
				"item_name", itemName,
				"attempt", attempt+1,
				"error", err,
			)
		}
	}

	return nil, fmt.Errorf("registry search %q: %w", itemName, lastErr)
}

func (c *Client) searchOnce(ctx context.Context, itemName string) (*entities.RegistryPage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(itemName), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	body = toUTF8(body)

	if ClassifyStatus(resp.StatusCode) != StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet(body)}
	}

	return parsePage(body)
}

func (c *Client) requestURL(itemName string) string {
	params := url.Values{}
	params.Set("serviceKey", c.serviceKey)
	params.Set("pageNo", "1")
	params.Set("numOfRows", strconv.Itoa(c.pageSize))
	params.Set("type", "json")
	params.Set("item_name", itemName)
	return c.baseURL + "?" + params.Encode()
}

// toUTF8 decodes EUC-KR bodies, which some gateway error pages still use.
func toUTF8(body []byte) []byte {
	if utf8.Valid(body) {
		return body
	}
	decoded, err := korean.EUCKR.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return decoded
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if utf8.RuneCountInString(s) > 200 {
		s = string([]rune(s)[:200])
	}
	return s
}

type resultHeader struct {
	ResultCode string `json:"resultCode"`
	ResultMsg  string `json:"resultMsg"`
}

type resultBody struct {
	Items      json.RawMessage `json:"items"`
	TotalCount json.Number     `json:"totalCount"`
}

type envelope struct {
	Response *struct {
		Header *resultHeader `json:"header"`
		Body   *resultBody   `json:"body"`
	} `json:"response"`
	Header *resultHeader `json:"header"`
	Body   *resultBody   `json:"body"`
}

var (
	xmlReasonCode = regexp.MustCompile(`<returnReasonCode>([^<]*)</returnReasonCode>`)
	xmlAuthMsg    = regexp.MustCompile(`<returnAuthMsg>([^<]*)</returnAuthMsg>`)
)

// parsePage accepts the body under "response" or at the top level, with
// items either under items.item or directly under items, as a list or a
// single object.
func parsePage(body []byte) (*entities.RegistryPage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '<' {
		return nil, xmlError(trimmed)
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedBody, err)
	}

	header, b := env.Header, env.Body
	if env.Response != nil {
		header, b = env.Response.Header, env.Response.Body
	}

	if header != nil && header.ResultCode != "" && header.ResultCode != "00" {
		return nil, &UpstreamError{Code: header.ResultCode, Message: header.ResultMsg}
	}
	if b == nil {
		return nil, fmt.Errorf("%w: missing body", ErrUnexpectedBody)
	}

	items, err := decodeItems(b.Items)
	if err != nil {
		return nil, err
	}

	total := 0
	if b.TotalCount != "" {
		n, err := b.TotalCount.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: totalCount %q", ErrUnexpectedBody, b.TotalCount)
		}
		total = int(n)
	}

	return &entities.RegistryPage{Items: items, TotalCount: total}, nil
}

func decodeItems(raw json.RawMessage) ([]map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`""`)) {
		return nil, nil
	}

	switch raw[0] {
	case '[':
		var list []map[string]any
		if err := decodeUseNumber(raw, &list); err != nil {
			return nil, fmt.Errorf("%w: items: %v", ErrUnexpectedBody, err)
		}
		return list, nil
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: items: %v", ErrUnexpectedBody, err)
		}
		if inner, ok := wrapper["item"]; ok {
			return decodeItems(inner)
		}
		var single map[string]any
		if err := decodeUseNumber(raw, &single); err != nil {
			return nil, fmt.Errorf("%w: items: %v", ErrUnexpectedBody, err)
		}
		return []map[string]any{single}, nil
	default:
		return nil, fmt.Errorf("%w: items has unexpected type", ErrUnexpectedBody)
	}
}

func decodeUseNumber(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func xmlError(body []byte) error {
	code, msg := "XML", snippet(body)
	if m := xmlReasonCode.FindSubmatch(body); m != nil {
		code = string(m[1])
	}
	if m := xmlAuthMsg.FindSubmatch(body); m != nil {
		msg = string(m[1])
	}
	return &UpstreamError{Code: code, Message: msg}
}
