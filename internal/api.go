package fxtwitter

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

	"github.com/rs/zerolog"
)

var (
	// DefaultURL is the base URL of the public fxtwitter API.
	DefaultURL = "https://api.fxtwitter.com"
	// DefaultTimeout bounds a single status request.
	DefaultTimeout = 15 * time.Second

	// ErrMalformed is returned when a response cannot be decoded into a tweet.
	ErrMalformed = errors.New("malformed fxtwitter response")
)

// APIError is returned when the API answers with a non-success HTTP status or envelope code.
type APIError struct {
	HTTPStatus int    // HTTPStatus is the HTTP response status.
	Code       int    // Code is the envelope "code" field, 0 if it could not be read.
	Message    string // Message is the envelope "message" field.
	TweetID    string // TweetID is the requested tweet.
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fxtwitter error for %s: %s (http %d, code %d)", e.TweetID, e.Message, e.HTTPStatus, e.Code)
}

// envelope is the response wrapper of the status endpoint.
type envelope struct {
	Code    int    `json:"code"`    // Code is 200 on success.
	Message string `json:"message"` // Message is "OK" on success.
	Tweet   *Tweet `json:"tweet"`   // Tweet is nil on failure.
}

// Source fetches tweets from an fxtwitter compatible endpoint.
type Source struct {
	baseURL   string
	client    *http.Client
	userAgent string
	logger    zerolog.Logger
}

// SourceOpt holds the options for a Source.
type SourceOpt struct {
	BaseURL   string            // BaseURL defaults to DefaultURL.
	Transport http.RoundTripper // Transport defaults to http.DefaultTransport.
	Timeout   time.Duration     // Timeout defaults to DefaultTimeout.
	UserAgent string            // UserAgent is sent with every request when set.
	Logger    *zerolog.Logger   // Logger receives raw payloads at debug level.
}

// NewSource creates a new Source.
func NewSource(opt SourceOpt) *Source {
	if opt.BaseURL == "" {
		opt.BaseURL = DefaultURL
	}
	if opt.Timeout <= 0 {
		opt.Timeout = DefaultTimeout
	}
	if opt.Transport == nil {
		opt.Transport = http.DefaultTransport
	}
	logger := zerolog.Nop()
	if opt.Logger != nil {
		logger = *opt.Logger
	}
	return &Source{
		baseURL:   strings.TrimRight(opt.BaseURL, "/"),
		client:    &http.Client{Transport: opt.Transport, Timeout: opt.Timeout},
		userAgent: opt.UserAgent,
		logger:    logger,
	}
}

// statusURL builds the status URL. The API accepts any handle, "i" is used when none is known.
func (s *Source) statusURL(author, id string) string {
	if author == "" {
		author = "i"
	}
	return fmt.Sprintf("%s/%s/status/%s", s.baseURL, url.PathEscape(author), url.PathEscape(id))
}

// Raw fetches the status endpoint and returns the body and HTTP status without interpreting it.
func (s *Source) Raw(ctx context.Context, author, id string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.statusURL(author, id), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("error closing response body")
		}
	}()
	buffer, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	s.logger.Debug().Str("tweet_id", id).Int("status", resp.StatusCode).RawJSON("body", jsonOrNull(buffer)).Msg("fxtwitter response")
	return buffer, resp.StatusCode, nil
}

// GetTweet fetches a single tweet. Any failure (transport, status, envelope, payload) is an error.
func (s *Source) GetTweet(ctx context.Context, author, id string) (*Tweet, error) {
	data, status, err := s.Raw(ctx, author, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tweet %s: %w", id, err)
	}
	var env envelope
	decodeErr := json.Unmarshal(data, &env)
	if status != http.StatusOK {
		return nil, &APIError{HTTPStatus: status, Code: env.Code, Message: env.Message, TweetID: id}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: tweet %s: %v", ErrMalformed, id, decodeErr)
	}
	if env.Code != http.StatusOK {
		return nil, &APIError{HTTPStatus: status, Code: env.Code, Message: env.Message, TweetID: id}
	}
	if env.Tweet == nil || env.Tweet.ID == "" {
		return nil, fmt.Errorf("%w: tweet %s: missing tweet object", ErrMalformed, id)
	}
	// IDs become directory and file names.
	if !isNumericID(env.Tweet.ID) {
		return nil, fmt.Errorf("%w: tweet %s: invalid id %q", ErrMalformed, id, env.Tweet.ID)
	}
	return env.Tweet, nil
}

func isNumericID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// jsonOrNull keeps zerolog's RawJSON field valid for non-JSON bodies.
func jsonOrNull(b []byte) []byte {
	if json.Valid(b) {
		return b
	}
	return []byte("null")
}
