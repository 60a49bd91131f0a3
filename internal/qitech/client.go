// Package qitech implements the mutual-authentication protocol used to talk
// to the QiTech banking provider: canonical string-to-sign construction,
// ES512 signed-token envelopes, and response verification.
package qitech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sapliy/baas-integration/pkg/monitoring"
)

const (
	authScheme      = "QIT"
	headerAuth      = "AUTHORIZATION"
	headerClientKey = "API-CLIENT-KEY"
	jsonContentType = "application/json"
)

// Client performs authenticated request/response cycles against the banking
// provider. Every outgoing request carries a signed envelope and every
// response is verified before its payload is trusted.
type Client struct {
	baseURL    string
	signer     *Signer
	httpClient *http.Client
	now        func() time.Time
}

type Option func(*Client)

// WithHTTPClient overrides the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock overrides the clock used for the HTTP date field.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(baseURL string, signer *Signer, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  signer,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SignedMessage is the wire-level envelope for one outgoing request. It is
// built per request and consumed immediately by the transport.
type SignedMessage struct {
	Headers     map[string]string
	Body        []byte
	ContentType string
}

// SignMessage builds the signed envelope for a request. JSON bodies are
// first signed as a compact token and the digest is computed over that
// token; file payloads are digested directly over the raw bytes.
func (c *Client) SignMessage(method, endpoint string, body any, file []byte) (*SignedMessage, error) {
	var (
		digest      string
		contentType string
		wireBody    []byte
	)

	switch {
	case file != nil:
		digest = BodyDigest(file)
		contentType = ""
	case body != nil:
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		claims := jwt.MapClaims{}
		if err := json.Unmarshal(raw, &claims); err != nil {
			return nil, fmt.Errorf("request body is not a JSON object: %w", err)
		}
		bodyToken, err := c.signer.Sign(claims)
		if err != nil {
			return nil, err
		}
		digest = BodyDigest([]byte(bodyToken))
		contentType = jsonContentType
		wireBody, err = json.Marshal(map[string]string{"encoded_body": bodyToken})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal envelope: %w", err)
		}
	default:
		contentType = jsonContentType
	}

	stringToSign := BuildStringToSign(SignatureFields{
		Method:      method,
		BodyDigest:  digest,
		ContentType: contentType,
		Date:        c.now().UTC().Format(http.TimeFormat),
		Endpoint:    endpoint,
	})

	headerToken, err := c.signer.SignHeader(stringToSign)
	if err != nil {
		return nil, err
	}

	return &SignedMessage{
		Headers: map[string]string{
			headerAuth:      fmt.Sprintf("%s %s:%s", authScheme, c.signer.APIKey(), headerToken),
			headerClientKey: c.signer.APIKey(),
		},
		Body:        wireBody,
		ContentType: contentType,
	}, nil
}

// DecodeMessage verifies a response (or inbound webhook) envelope against
// the endpoint and method actually used and returns the decoded payload
// claims. Any mismatch is a fatal *IntegrityError for this request.
func (c *Client) DecodeMessage(method, endpoint string, header http.Header, rawBody []byte) (jwt.MapClaims, error) {
	apiKey := c.signer.APIKey()

	if got := header.Get(headerClientKey); got != apiKey {
		return nil, integrityErr(CheckClientKey, "api-client-key header %q does not match configured key", got)
	}

	auth := header.Get(headerAuth)
	if auth == "" {
		return nil, integrityErr(CheckAuthorization, "authorization header missing")
	}

	_, credential, found := strings.Cut(auth, " ")
	if !found {
		return nil, integrityErr(CheckAuthorization, "malformed authorization header")
	}
	keySegment, headerToken, found := strings.Cut(credential, ":")
	if !found {
		return nil, integrityErr(CheckAuthorization, "malformed authorization credential")
	}
	if keySegment != apiKey {
		return nil, integrityErr(CheckAPIKey, "authorization api key %q does not match configured key", keySegment)
	}

	headerClaims, err := c.signer.Decode(headerToken)
	if err != nil {
		return nil, integrityErr(CheckToken, "header token: %v", err)
	}
	signature, _ := headerClaims["signature"].(string)
	fields, err := ParseStringToSign(signature)
	if err != nil {
		return nil, integrityErr(CheckToken, "signature claim: %v", err)
	}

	// Defends against replay and cross-endpoint substitution.
	if fields.Endpoint != endpoint {
		return nil, integrityErr(CheckEndpoint, "signed endpoint %q, requested %q", fields.Endpoint, endpoint)
	}
	if fields.Method != method {
		return nil, integrityErr(CheckMethod, "signed method %q, used %q", fields.Method, method)
	}

	if len(bytes.TrimSpace(rawBody)) == 0 {
		return jwt.MapClaims{}, nil
	}

	var envelope struct {
		EncodedBody string `json:"encoded_body"`
	}
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return nil, integrityErr(CheckBodyDigest, "response body is not an envelope: %v", err)
	}

	// Defends against body tampering.
	if got := BodyDigest([]byte(envelope.EncodedBody)); got != fields.BodyDigest {
		return nil, integrityErr(CheckBodyDigest, "body digest %s does not match signed digest %s", got, fields.BodyDigest)
	}

	payload, err := c.signer.Decode(envelope.EncodedBody)
	if err != nil {
		return nil, integrityErr(CheckToken, "body token: %v", err)
	}
	return payload, nil
}

// do runs one signed request/verified response cycle. out, when non-nil,
// receives the decoded payload claims.
func (c *Client) do(ctx context.Context, operation, method, endpoint string, body, out any) error {
	msg, err := c.SignMessage(method, endpoint, body, nil)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if msg.Body != nil {
		reqBody = bytes.NewReader(msg.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range msg.Headers {
		req.Header.Set(k, v)
	}
	if msg.Body != nil {
		req.Header.Set("Content-Type", jsonContentType)
	}

	timer := time.Now()
	resp, err := c.httpClient.Do(req)
	monitoring.ProviderLatency.WithLabelValues(operation).Observe(time.Since(timer).Seconds())
	if err != nil {
		monitoring.ProviderRequests.WithLabelValues(operation, "transport_error").Inc()
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		monitoring.ProviderRequests.WithLabelValues(operation, "transport_error").Inc()
		return fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode >= 400 {
		monitoring.ProviderRequests.WithLabelValues(operation, "api_error").Inc()
		return c.apiError(resp.StatusCode, method, endpoint, resp.Header, respBody)
	}

	claims, err := c.DecodeMessage(method, endpoint, resp.Header, respBody)
	if err != nil {
		if IsIntegrityError(err) {
			monitoring.IntegrityFailures.Inc()
		}
		monitoring.ProviderRequests.WithLabelValues(operation, "integrity_error").Inc()
		return err
	}
	monitoring.ProviderRequests.WithLabelValues(operation, "success").Inc()

	if out != nil {
		return remarshal(claims, out)
	}
	return nil
}

// apiError recovers the provider's error payload when it is decodable,
// preferring the signed envelope but falling back to plain JSON.
func (c *Client) apiError(status int, method, endpoint string, header http.Header, body []byte) error {
	apiErr := &APIError{StatusCode: status}

	if claims, err := c.DecodeMessage(method, endpoint, header, body); err == nil {
		apiErr.Payload = claims
	} else {
		var payload map[string]any
		if json.Unmarshal(body, &payload) == nil {
			apiErr.Payload = payload
		}
	}

	if apiErr.Payload != nil {
		if code, ok := apiErr.Payload["code"].(string); ok {
			apiErr.Code = code
		}
		if desc, ok := apiErr.Payload["description"].(string); ok {
			apiErr.Description = desc
		}
	}
	return apiErr
}

// remarshal converts decoded claims into a typed response struct.
func remarshal(claims jwt.MapClaims, out any) error {
	raw, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}

// UploadFile sends a binary payload as multipart form data. The body digest
// is computed over the raw bytes and the content type field of the
// string-to-sign is empty, unlike JSON requests.
func (c *Client) UploadFile(ctx context.Context, filename string, data []byte) (*FileResponse, error) {
	const endpoint = "/upload"

	msg, err := c.SignMessage(http.MethodPost, endpoint, nil, data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range msg.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	timer := time.Now()
	resp, err := c.httpClient.Do(req)
	monitoring.ProviderLatency.WithLabelValues("upload_file").Observe(time.Since(timer).Seconds())
	if err != nil {
		monitoring.ProviderRequests.WithLabelValues("upload_file", "transport_error").Inc()
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode >= 400 {
		monitoring.ProviderRequests.WithLabelValues("upload_file", "api_error").Inc()
		return nil, c.apiError(resp.StatusCode, http.MethodPost, endpoint, resp.Header, respBody)
	}

	claims, err := c.DecodeMessage(http.MethodPost, endpoint, resp.Header, respBody)
	if err != nil {
		monitoring.ProviderRequests.WithLabelValues("upload_file", "integrity_error").Inc()
		return nil, err
	}
	monitoring.ProviderRequests.WithLabelValues("upload_file", "success").Inc()

	var out FileResponse
	if err := remarshal(claims, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
