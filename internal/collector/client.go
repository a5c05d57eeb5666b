// Package collector talks to the external metrics collector process.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

type DeviceTarget struct {
	DeviceID  int64 `json:"deviceId"`
	IfIndexes []int `json:"ifIndexes"`
}

type StartRequest struct {
	GroupID     uint           `json:"groupId"`
	IntervalSec int            `json:"intervalSec"`
	Devices     []DeviceTarget `json:"devices"`
}

type groupRequest struct {
	GroupID uint `json:"groupId"`
}

// Response is the collector's reply envelope.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Error reports a failed collector call. Timeout is set when the call hit its
// deadline; Status is 0 when no HTTP response was received.
type Error struct {
	Op      string
	Status  int
	Message string
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("collector %s: %v", e.Op, e.Err)
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("collector %s: status %d: %s", e.Op, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("collector %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("collector %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Config struct {
	BaseURL          string
	StartTimeout     time.Duration
	Timeout          time.Duration
	HeartbeatTimeout time.Duration
}

// Client issues start/stop/heartbeat calls. Calls are never retried here.
type Client struct {
	http             *resty.Client
	startTimeout     time.Duration
	timeout          time.Duration
	heartbeatTimeout time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = 5 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http:             httpClient,
		startTimeout:     cfg.StartTimeout,
		timeout:          cfg.Timeout,
		heartbeatTimeout: cfg.HeartbeatTimeout,
	}
}

func (c *Client) Start(ctx context.Context, req StartRequest) (*Response, error) {
	return c.post(ctx, "start", req, c.startTimeout)
}

func (c *Client) Stop(ctx context.Context, groupID uint) (*Response, error) {
	return c.post(ctx, "stop", groupRequest{GroupID: groupID}, c.timeout)
}

func (c *Client) Heartbeat(ctx context.Context, groupID uint) (*Response, error) {
	return c.post(ctx, "heartbeat", groupRequest{GroupID: groupID}, c.heartbeatTimeout)
}

func (c *Client) post(ctx context.Context, op string, body any, timeout time.Duration) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/watch/" + op)

	slog.Debug("Collector call",
		"op", op,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err,
	)

	if err != nil {
		return nil, &Error{Op: op, Err: err, Timeout: isTimeout(ctx, err)}
	}

	// collectors do not always label their replies, so the body is decoded
	// whatever the Content-Type says
	var out Response
	decodeErr := sonic.Unmarshal(resp.Body(), &out)
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, &Error{Op: op, Status: resp.StatusCode(), Message: out.Message}
	}
	if decodeErr != nil {
		return nil, &Error{Op: op, Status: resp.StatusCode(), Message: "unreadable collector response"}
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = "collector reported failure"
		}
		return nil, &Error{Op: op, Status: resp.StatusCode(), Message: msg}
	}
	return &out, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
