// Package meshcapade is a minimal client for the Meshcapade avatar API:
// OpenID-Connect password-grant authentication, avatar creation,
// presigned image uploads, fitting, and status polling.
package meshcapade

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	loggerpkg "github.com/avatarlab/fitcli/pkg/logger"
)

const defaultTimeout = 60 * time.Second

// imageMode selects fitting from images (as opposed to scans or video).
const imageMode = "AFI"

// Client calls the avatar endpoints. All calls are single-attempt and
// block until the response arrives; non-2xx responses surface as
// *APIError.
type Client struct {
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client
	logger     loggerpkg.Logger
}

// ClientOption configures optional Client dependencies.
type ClientOption func(*Client)

// WithHTTPClient injects the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient builds a Client for the given API base URL.
func NewClient(baseURL string, tokens TokenProvider, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     loggerpkg.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// CreateAvatar registers an empty avatar record and returns its ID.
func (c *Client) CreateAvatar(ctx context.Context) (string, error) {
	var out createResponse
	if err := c.doJSON(ctx, http.MethodPost, "/avatars/create/from-images", nil, &out); err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", &APIError{Endpoint: "/avatars/create/from-images", Status: http.StatusOK, Detail: "response missing avatar id"}
	}
	c.logger.Debug("avatar created", "avatar_id", out.Data.ID)
	return out.Data.ID, nil
}

// RequestImageUpload asks the API for a presigned upload URL for one
// image slot on the avatar.
func (c *Client) RequestImageUpload(ctx context.Context, avatarID string) (string, error) {
	endpoint := fmt.Sprintf("/avatars/%s/images", avatarID)
	var out imageUploadResponse
	if err := c.doJSON(ctx, http.MethodPost, endpoint, nil, &out); err != nil {
		return "", err
	}
	if out.Data.Links.Upload == "" {
		return "", &APIError{Endpoint: endpoint, Status: http.StatusOK, Detail: "response missing upload link"}
	}
	return out.Data.Links.Upload, nil
}

// UploadImage PUTs the image bytes to a presigned URL. The presigned
// request is authenticated by the URL itself and must not carry the
// bearer token.
func (c *Client) UploadImage(ctx context.Context, uploadURL, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeFor(path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &APIError{Endpoint: "presigned upload", Status: resp.StatusCode, Detail: snippet(body)}
	}
	return nil
}

// UploadImages uploads the images sequentially in the given order,
// requesting a fresh presigned URL per image. It fails fast on the
// first error; already-uploaded images are not rolled back.
func (c *Client) UploadImages(ctx context.Context, avatarID string, paths []string) error {
	for _, path := range paths {
		c.logger.Info("uploading image", "avatar_id", avatarID, "image", filepath.Base(path))
		uploadURL, err := c.RequestImageUpload(ctx, avatarID)
		if err != nil {
			return err
		}
		if err := c.UploadImage(ctx, uploadURL, path); err != nil {
			return err
		}
	}
	return nil
}

// StartFitting triggers server-side fitting. Fire-and-forget: the call
// returns as soon as the API accepts the job.
func (c *Client) StartFitting(ctx context.Context, avatarID string, params FittingParams) error {
	endpoint := fmt.Sprintf("/avatars/%s/fit-to-images", avatarID)
	body := fittingRequest{
		AvatarName: params.AvatarName,
		Gender:     params.Gender,
		ImageMode:  imageMode,
		Height:     params.Height,
		Weight:     params.Weight,
	}
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, nil); err != nil {
		return err
	}
	c.logger.Debug("fitting started", "avatar_id", avatarID)
	return nil
}

// GetAvatar fetches the avatar record: its current state and, once
// ready, the mesh measurements.
func (c *Client) GetAvatar(ctx context.Context, avatarID string) (*Avatar, error) {
	endpoint := fmt.Sprintf("/avatars/%s", avatarID)
	var out avatarResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}

	avatar := &Avatar{
		ID:    out.Data.ID,
		State: ParseState(out.Data.Attributes.State),
	}
	if avatar.ID == "" {
		avatar.ID = avatarID
	}

	raw := out.Data.Attributes.Metadata.BodyShape.MeshMeasurements
	if len(raw) > 0 {
		avatar.Measurements = make(map[string]float64)
		for name, value := range raw {
			if num, ok := value.(float64); ok {
				avatar.Measurements[name] = num
				continue
			}
			if avatar.Extra == nil {
				avatar.Extra = make(map[string]any)
			}
			avatar.Extra[name] = value
		}
	}
	return avatar, nil
}

// doJSON performs an authenticated JSON request against the API and
// decodes the response into out when non-nil.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Endpoint: endpoint, Status: resp.StatusCode, Detail: snippet(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// contentTypeFor guesses an image MIME type from the file extension.
func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return "image/jpeg"
}
