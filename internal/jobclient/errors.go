package jobclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/yungbote/companion-client/internal/platform/apierr"
)

var ErrMalformedResponse = errors.New("malformed response")

type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "http error"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if msg == "" {
		msg = "http error"
	}
	if strings.TrimSpace(e.Code) != "" {
		return fmt.Sprintf("http error: status=%d code=%s message=%s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("http error: status=%d message=%s", e.StatusCode, msg)
}

// classify turns a failed response into an *apierr.Error carrying a code
// from the closed set. 402 always means a point shortfall.
func classify(status int, env *EnvelopeError, raw []byte) *apierr.Error {
	herr := &HTTPError{StatusCode: status, Body: strings.TrimSpace(string(raw))}
	if env != nil {
		herr.Code = strings.TrimSpace(env.Code)
		herr.Message = strings.TrimSpace(env.Message)
	}
	code := apierr.Code(herr.Code)
	switch {
	case status == http.StatusPaymentRequired:
		code = apierr.InsufficientPoint
	case code == apierr.InsufficientPoint, code == apierr.StillProcessing, code == apierr.ValidationFailed, code == apierr.NotFound:
	default:
		code = apierr.NetworkOrServer
	}
	return apierr.New(status, code, herr)
}

func parseFailure(status int, raw []byte) *apierr.Error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil {
		return classify(status, env.Error, raw)
	}
	return classify(status, nil, raw)
}
