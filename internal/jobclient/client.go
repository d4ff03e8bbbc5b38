// Package jobclient is the request/response wrapper around the remote
// generation service. It holds no state beyond connection settings and
// never retries: a failed call is reported once to the caller.
package jobclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/companion-client/internal/domain/persona"
	"github.com/yungbote/companion-client/internal/observability"
	"github.com/yungbote/companion-client/internal/platform/apierr"
	"github.com/yungbote/companion-client/internal/platform/logger"
)

type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	HTTPClient *http.Client
	Logger     *logger.Logger
	Tracer     trace.Tracer
}

type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	log        *logger.Logger
	tracer     trace.Tracer
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("baseURL required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid baseURL: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = observability.Tracer("companion/jobclient")
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(opts.Token),
		timeout:    timeout,
		httpClient: hc,
		log:        log.With("component", "GenerationJobClient"),
		tracer:     tracer,
	}, nil
}

// ---- generation jobs ----

type PersonaJobPayload struct {
	Name        string
	Description string
	Gender      string
	Photo       []byte
}

func (c *Client) SubmitPersonaJob(ctx context.Context, ownerID string, p PersonaJobPayload) (JobReceipt, error) {
	req := PersonaJobRequest{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(p.Name),
		Description: strings.TrimSpace(p.Description),
		Gender:      strings.TrimSpace(p.Gender),
		PhotoBase64: base64.StdEncoding.EncodeToString(p.Photo),
	}
	var out JobReceipt
	if err := c.doJSON(ctx, "submit_persona_job", http.MethodPost, "/v1/personas/jobs", req, &out); err != nil {
		return JobReceipt{}, err
	}
	if out.TargetKey == "" {
		return JobReceipt{}, malformed("persona job receipt without target_key")
	}
	return out, nil
}

func (c *Client) SubmitDressJob(ctx context.Context, ownerID string, personaKey string, description string) (JobReceipt, error) {
	req := DressJobRequest{OwnerID: ownerID, Description: strings.TrimSpace(description)}
	var out JobReceipt
	if err := c.doJSON(ctx, "submit_dress_job", http.MethodPost, "/v1/personas/"+url.PathEscape(personaKey)+"/dresses/jobs", req, &out); err != nil {
		return JobReceipt{}, err
	}
	if out.TargetKey == "" {
		return JobReceipt{}, malformed("dress job receipt without target_key")
	}
	return out, nil
}

func (c *Client) SubmitVideoConversionJob(ctx context.Context, personaKey string, ownerID string, imageURL string, dressKey string) (VideoReceipt, error) {
	req := VideoJobRequest{OwnerID: ownerID, ImageURL: imageURL, DressKey: dressKey}
	var out VideoReceipt
	if err := c.doJSON(ctx, "submit_video_job", http.MethodPost, "/v1/personas/"+url.PathEscape(personaKey)+"/video/jobs", req, &out); err != nil {
		return VideoReceipt{}, err
	}
	if out.PendingVideoURL == "" {
		return VideoReceipt{}, malformed("video job receipt without pending_video_url")
	}
	return out, nil
}

func (c *Client) QueryJobStatus(ctx context.Context, targetKey string) (JobStatus, error) {
	var out JobStatus
	if err := c.doJSON(ctx, "query_job_status", http.MethodGet, "/v1/jobs/"+url.PathEscape(targetKey), nil, &out); err != nil {
		return JobStatus{}, err
	}
	return out, nil
}

// ---- listings ----

func (c *Client) ListPersonas(ctx context.Context, ownerID string) ([]persona.Persona, error) {
	var out PersonaList
	if err := c.doJSON(ctx, "list_personas", http.MethodGet, "/v1/owners/"+url.PathEscape(ownerID)+"/personas", nil, &out); err != nil {
		return nil, err
	}
	if out.Personas == nil {
		out.Personas = []persona.Persona{}
	}
	return out.Personas, nil
}

func (c *Client) ListDresses(ctx context.Context, personaKey string) ([]persona.Dress, error) {
	var out DressList
	if err := c.doJSON(ctx, "list_dresses", http.MethodGet, "/v1/personas/"+url.PathEscape(personaKey)+"/dresses", nil, &out); err != nil {
		return nil, err
	}
	if out.Dresses == nil {
		out.Dresses = []persona.Dress{}
	}
	return out.Dresses, nil
}

// ---- simple mutations ----

func (c *Client) RenamePersona(ctx context.Context, ownerID string, personaKey string, name *string, category *string) (*persona.Persona, error) {
	req := BasicUpdate{OwnerID: ownerID, Name: name, CategoryType: category}
	var out PersonaResult
	if err := c.doJSON(ctx, "rename_persona", http.MethodPatch, "/v1/personas/"+url.PathEscape(personaKey), req, &out); err != nil {
		return nil, err
	}
	return out.Persona, nil
}

func (c *Client) DeletePersona(ctx context.Context, ownerID string, personaKey string) error {
	path := "/v1/personas/" + url.PathEscape(personaKey) + "?owner_id=" + url.QueryEscape(ownerID)
	return c.doJSON(ctx, "delete_persona", http.MethodDelete, path, nil, nil)
}

func (c *Client) ToggleFavorite(ctx context.Context, ownerID string, personaKey string) (persona.Flag, error) {
	var out FavoriteResult
	if err := c.doJSON(ctx, "toggle_favorite", http.MethodPost, "/v1/personas/"+url.PathEscape(personaKey)+"/favorite", FavoriteRequest{OwnerID: ownerID}, &out); err != nil {
		return "", err
	}
	if out.FavoriteYN != persona.FlagYes && out.FavoriteYN != persona.FlagNo {
		return "", malformed(fmt.Sprintf("favorite_yn=%q", out.FavoriteYN))
	}
	return out.FavoriteYN, nil
}

func (c *Client) EquipDress(ctx context.Context, ownerID string, personaKey string, memoryKey string) (*persona.Persona, error) {
	req := EquipRequest{OwnerID: ownerID, MemoryKey: memoryKey}
	var out PersonaResult
	if err := c.doJSON(ctx, "equip_dress", http.MethodPost, "/v1/personas/"+url.PathEscape(personaKey)+"/equip", req, &out); err != nil {
		return nil, err
	}
	return out.Persona, nil
}

// ---------------- HTTP helpers ----------------

func (c *Client) setHeaders(req *http.Request, requestID string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) doJSON(ctx context.Context, op string, method string, path string, body any, out any) (err error) {
	requestID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "jobclient."+op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", routeOf(path)),
		attribute.String("request.id", requestID),
	)
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(apierr.CodeOf(err)))
			c.log.Warn("generation service call failed", "op", op, "request_id", requestID, "code", apierr.CodeOf(err), "error", err, "elapsed", time.Since(start))
		} else {
			c.log.Debug("generation service call ok", "op", op, "request_id", requestID, "elapsed", time.Since(start))
		}
		span.End()
	}()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return apierr.New(0, apierr.NetworkOrServer, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return apierr.New(0, apierr.NetworkOrServer, err)
	}
	c.setHeaders(req, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apierr.New(0, apierr.NetworkOrServer, err)
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	_ = resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if readErr != nil {
		return apierr.New(resp.StatusCode, apierr.NetworkOrServer, readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseFailure(resp.StatusCode, raw)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return apierr.New(resp.StatusCode, apierr.NetworkOrServer, fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}
	if !env.Success {
		return classify(resp.StatusCode, env.Error, raw)
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return apierr.New(resp.StatusCode, apierr.NetworkOrServer, fmt.Errorf("%w: missing data", ErrMalformedResponse))
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apierr.New(resp.StatusCode, apierr.NetworkOrServer, fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}
	return nil
}

func malformed(detail string) error {
	return apierr.New(0, apierr.NetworkOrServer, fmt.Errorf("%w: %s", ErrMalformedResponse, detail))
}

// routeOf strips keys from a path so span names stay low-cardinality.
func routeOf(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if i > 0 && (parts[i-1] == "personas" || parts[i-1] == "owners" || parts[i-1] == "jobs") && p != "jobs" {
			parts[i] = ":key"
		}
	}
	return strings.Join(parts, "/")
}
