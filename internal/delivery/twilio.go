package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jwalitptl/farm-calendar/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/farm-calendar/pkg/errors"
	"github.com/jwalitptl/farm-calendar/pkg/logger"
)

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

// TwilioSender posts messages to the Twilio REST API. Calls are throttled by a
// token bucket and guarded by a circuit breaker so an outage fails fast for the
// rest of a pass.
type TwilioSender struct {
	cfg     TwilioConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// GatewayError is a non-2xx answer from the gateway.
type GatewayError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("twilio status %d: code %d: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("twilio status %d", e.StatusCode)
}

// Permanent reports a rejection of this one message (invalid or unsubscribed
// recipient, bad request). Throttling and server errors are not permanent.
func (e *GatewayError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// IsPermanent reports whether err carries a permanent gateway rejection.
func IsPermanent(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Permanent()
}

// tripsBreaker is false for per-recipient rejections so a run of opted-out
// numbers does not cut off a healthy gateway.
func tripsBreaker(err error) bool {
	return err != nil && !IsPermanent(err)
}

func NewTwilioSender(cfg TwilioConfig, log *logger.Logger) *TwilioSender {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &TwilioSender{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "twilio",
			MaxFailures: 5,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			IsSuccessful: func(err error) bool {
				return !tripsBreaker(err)
			},
			OnStateChange: func(name, from, to string) {
				log.Warn("Circuit breaker state changed", "breaker", name, "from", from, "to", to)
			},
		}),
	}
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return apperrors.DeliveryFailure(ChannelSMS, err)
	}

	err := s.breaker.Execute(func() error {
		return s.post(ctx, to, body)
	})
	if err != nil {
		return apperrors.DeliveryFailure(ChannelSMS, err)
	}
	return nil
}

func (s *TwilioSender) post(ctx context.Context, to, body string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(s.cfg.BaseURL, "/"), url.PathEscape(s.cfg.AccountSID))

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.cfg.From)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	gerr := &GatewayError{StatusCode: resp.StatusCode}
	var te twilioError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &te) == nil && te.Message != "" {
		gerr.Code = te.Code
		gerr.Message = te.Message
	}
	return gerr
}
