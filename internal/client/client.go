// Package client calls the prediction service the way a desktop front end
// does: short timeout, and a failure only means no classification is shown.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// DefaultTimeout bounds a single classification call.
const DefaultTimeout = 2 * time.Second

// Unavailable is what a front end shows when classification fails.
const Unavailable = "classification unavailable"

var (
	// ErrTransport is returned when the service could not be reached or did not answer in time.
	ErrTransport = errors.New("prediction service unreachable")
	// ErrRejected is returned when the service answered with an error response.
	ErrRejected = errors.New("prediction rejected")
)

// Input is the four-feature window summary sent to /predict.
type Input struct {
	TMax      float64 `json:"t_max"`
	TMin      float64 `json:"t_min"`
	WindSpeed float64 `json:"wind_speed"`
	Rain      float64 `json:"rain"`
}

// Prediction is a successful /predict response.
type Prediction struct {
	Status    string `json:"status"`
	ClusterID int    `json:"cluster_id"`
	Condition string `json:"condition"`
	Color     string `json:"color"`
	Icon      string `json:"icon"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client classifies windows against a prediction service.
type Client struct {
	url     string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// New creates a Client for the /predict URL. A non-positive timeout means DefaultTimeout.
func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	// After repeated transport failures, calls fail fast for a while instead
	// of each waiting out the timeout.
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "predict",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRejected)
		},
	})
	return &Client{url: url, http: &http.Client{Timeout: timeout}, breaker: breaker}
}

// Classify posts in and returns the service's classification.
func (c *Client) Classify(ctx context.Context, in Input) (Prediction, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return Prediction{}, err
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		p, err := c.post(ctx, body)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Prediction{}, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		return Prediction{}, err
	}
	return res.(Prediction), nil
}

func (c *Client) post(ctx context.Context, body []byte) (Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Prediction{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		var e errorBody
		_ = json.Unmarshal(raw, &e)
		msg := e.Error
		if msg == "" {
			msg = e.Message
		}
		return Prediction{}, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, msg)
	}

	var p Prediction
	if err := json.Unmarshal(raw, &p); err != nil {
		return Prediction{}, fmt.Errorf("%w: decode response: %v", ErrRejected, err)
	}
	if p.Status != "success" {
		return Prediction{}, fmt.Errorf("%w: status %q", ErrRejected, p.Status)
	}
	return p, nil
}

// Display renders a classification result for a front end. Any error
// degrades to Unavailable.
func Display(p Prediction, err error) string {
	if err != nil {
		return Unavailable
	}
	if p.Icon == "" {
		return p.Condition
	}
	return p.Icon + " " + p.Condition
}
