package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Maxim80/devman-async-sms-mailings/internal/config"
	"github.com/Maxim80/devman-async-sms-mailings/internal/errs"
	"github.com/Maxim80/devman-async-sms-mailings/internal/metrics"
	"github.com/Maxim80/devman-async-sms-mailings/internal/util"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	MethodSend   = "send"
	MethodStatus = "status"

	defaultBaseURL = "https://smsc.ru"
	maxBodyBytes   = 1 << 20
)

// Credentials of an SMSC account.
type Credentials struct {
	Login    string
	Password string
}

// orDefault fills each empty field from d independently.
func (c Credentials) orDefault(d Credentials) Credentials {
	if c.Login == "" {
		c.Login = d.Login
	}
	if c.Password == "" {
		c.Password = d.Password
	}
	return c
}

type SendRequest struct {
	Phones      string // comma or semicolon separated
	Message     string
	ValidHours  int
	Credentials Credentials // optional, overrides the client default
}

type SendResult struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

type StatusRequest struct {
	Phone       string
	ID          string
	Credentials Credentials
}

type StatusResult struct {
	Status        int    `json:"status"`
	LastDate      string `json:"last_date"`
	LastTimestamp int64  `json:"last_timestamp"`
	ErrCode       int    `json:"err,omitempty"`
}

// Client talks to the SMSC HTTP API. Only the send and status methods are supported.
type Client struct {
	baseURL string
	creds   Credentials
	client  *http.Client
	br      *MicroBreaker
	limiter *rate.Limiter
	log     *zap.Logger
}

func NewClient(cfg config.GatewayConfig, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), int(math.Max(1, math.Ceil(cfg.RPS))))
	}

	if log == nil {
		log = zap.NewNop()
	}

	br := NewMicroBreaker(cfg.Breaker.FailThreshold, cfg.Breaker.OpenFor)
	br.onChange = func(from, to state) {
		log.Warn("smsc circuit breaker", zap.Stringer("from", from), zap.Stringer("to", to))
	}

	return &Client{
		baseURL: baseURL,
		creds:   Credentials{Login: cfg.Login, Password: cfg.Password},
		client:  &http.Client{Timeout: timeout},
		br:      br,
		limiter: limiter,
		log:     log,
	}
}

func (c *Client) Ready() bool { return c.br.Ready() }

// Send submits one message to every phone in r.Phones.
func (c *Client) Send(ctx context.Context, r SendRequest) (SendResult, error) {
	if strings.TrimSpace(r.Phones) == "" {
		return SendResult{}, errs.Validation("phones must not be empty")
	}
	if strings.TrimSpace(r.Message) == "" {
		return SendResult{}, errs.Validation("message must not be empty")
	}
	if r.ValidHours <= 0 {
		return SendResult{}, errs.Validation("valid hours must be positive")
	}

	payload := url.Values{
		"phones": {util.JoinPhones(r.Phones)},
		"mes":    {r.Message},
		"valid":  {strconv.Itoa(r.ValidHours)},
	}

	resp, err := c.Request(ctx, http.MethodPost, MethodSend, r.Credentials, payload)
	if err != nil {
		return SendResult{}, err
	}

	id := stringOf(resp["id"])
	if id == "" {
		return SendResult{}, &Error{Kind: KindAPI, Method: MethodSend, Message: "response has no message id"}
	}

	count := intOf(resp["cnt"])
	if count == 0 {
		count = intOf(resp["count"])
	}
	return SendResult{ID: id, Count: count}, nil
}

// Status returns the delivery status of message id to phone.
func (c *Client) Status(ctx context.Context, r StatusRequest) (StatusResult, error) {
	if strings.TrimSpace(r.Phone) == "" {
		return StatusResult{}, errs.Validation("phone must not be empty")
	}
	if strings.TrimSpace(r.ID) == "" {
		return StatusResult{}, errs.Validation("message id must not be empty")
	}

	payload := url.Values{
		"phone": {util.JoinPhones(r.Phone)},
		"id":    {r.ID},
	}

	resp, err := c.Request(ctx, http.MethodGet, MethodStatus, r.Credentials, payload)
	if err != nil {
		return StatusResult{}, err
	}

	return StatusResult{
		Status:        intOf(resp["status"]),
		LastDate:      stringOf(resp["last_date"]),
		LastTimestamp: int64(intOf(resp["last_timestamp"])),
		ErrCode:       intOf(resp["err"]),
	}, nil
}

// Request performs one call of apiMethod (send|status) with httpMethod (POST|GET).
// Non-empty fields of creds override the client defaults one by one. The decoded
// JSON body is returned as is.
func (c *Client) Request(
	ctx context.Context,
	httpMethod, apiMethod string,
	creds Credentials,
	payload url.Values,
) (map[string]any, error) {
	if httpMethod != http.MethodPost && httpMethod != http.MethodGet {
		return nil, errs.Configuration(fmt.Sprintf("unsupported http method %q, must be POST or GET", httpMethod))
	}
	if apiMethod != MethodSend && apiMethod != MethodStatus {
		return nil, errs.Configuration(fmt.Sprintf("unsupported api method %q, must be send or status", apiMethod))
	}

	creds = creds.orDefault(c.creds)
	if creds.Login == "" || creds.Password == "" {
		return nil, errs.Configuration("smsc credentials are not set (SMSC_LOGIN, SMSC_PASSW)")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			metrics.GatewayRequests.WithLabelValues(apiMethod, "rejected").Inc()
			return nil, &Error{Kind: KindTransport, Method: apiMethod, Err: err}
		}
	}

	if !c.br.TryAcquire() {
		metrics.GatewayRequests.WithLabelValues(apiMethod, "rejected").Inc()
		return nil, &Error{Kind: KindTransport, Method: apiMethod, Err: ErrCircuitOpen}
	}

	params := url.Values{}
	for k, v := range payload {
		params[k] = v
	}
	params.Set("login", creds.Login)
	params.Set("psw", creds.Password)
	params.Set("fmt", "3")
	params.Set("charset", "utf-8")

	c.log.Debug("smsc request",
		zap.String("method", apiMethod),
		zap.String("http_method", httpMethod),
		zap.String("login", creds.Login),
	)

	resp, err := c.do(ctx, httpMethod, apiMethod, params)
	switch {
	case err == nil:
		c.br.OnSuccess()
		metrics.GatewayRequests.WithLabelValues(apiMethod, "ok").Inc()
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		// caller gave up, says nothing about SMSC
		c.br.Release()
		metrics.GatewayRequests.WithLabelValues(apiMethod, "cancelled").Inc()
	case IsTransport(err):
		c.br.OnFailure()
		metrics.GatewayRequests.WithLabelValues(apiMethod, "transport_error").Inc()
	default:
		c.br.OnSuccess()
		metrics.GatewayRequests.WithLabelValues(apiMethod, "api_error").Inc()
	}

	return resp, err
}

func (c *Client) do(ctx context.Context, httpMethod, apiMethod string, params url.Values) (map[string]any, error) {
	endpoint := fmt.Sprintf("%s/sys/%s.php", c.baseURL, apiMethod)

	var (
		req *http.Request
		err error
	)
	if httpMethod == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	}
	if err != nil {
		return nil, &Error{Kind: KindTransport, Method: apiMethod, Err: err}
	}
	if httpMethod == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Method: apiMethod, Err: err}
	}

	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodyBytes))
		return nil, &Error{Kind: KindTransport, Method: apiMethod, StatusCode: res.StatusCode}
	}

	var out map[string]any
	dec := json.NewDecoder(io.LimitReader(res.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, &Error{Kind: KindTransport, Method: apiMethod, Err: fmt.Errorf("decode response: %w", err)}
	}

	if msg, code, ok := apiError(out); ok {
		return nil, &Error{Kind: KindAPI, Method: apiMethod, Code: code, Message: msg}
	}

	return out, nil
}

func apiError(body map[string]any) (string, int, bool) {
	msg := stringOf(body["error"])
	code := intOf(body["error_code"])
	if msg == "" && code == 0 {
		return "", 0, false
	}
	if msg == "" {
		msg = fmt.Sprintf("smsc error_code %d", code)
	}
	return msg, code, true
}

// stringOf accepts numbers too: SMSC returns ids as numbers, tests and proxies as strings.
func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func intOf(v any) int {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
		f, _ := t.Float64()
		return int(f)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(t))
		return n
	case float64:
		return int(t)
	case int:
		return t
	default:
		return 0
	}
}
