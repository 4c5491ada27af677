// Package remote talks to an HTTP object API that stores yak snapshots:
// refs are listed and updated with compare-and-swap, objects are fetched
// one at a time and uploaded in batches.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/justindra/yaks/pkg/object"
	"github.com/justindra/yaks/pkg/storage"
)

// Endpoint identifies a remote object API. BaseURL carries no userinfo and
// no trailing slash.
type Endpoint struct {
	Raw     string
	BaseURL string
	user    string
	pass    string
}

// ParseEndpoint parses a remote URL such as https://host/api/yaks/team.
// Query, fragment and userinfo are dropped from BaseURL; the userinfo is
// kept as a fallback credential.
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, fmt.Errorf("remote URL is required")
	}
	u, err := url.Parse(raw)
	switch {
	case err != nil:
		return Endpoint{}, fmt.Errorf("parse remote URL: %w", err)
	case u.Scheme != "http" && u.Scheme != "https":
		return Endpoint{}, fmt.Errorf("remote URL must use http or https, got %q", u.Scheme)
	case u.Host == "":
		return Endpoint{}, fmt.Errorf("remote URL must include a host")
	}

	ep := Endpoint{Raw: raw}
	if u.User != nil {
		ep.user = u.User.Username()
		ep.pass, _ = u.User.Password()
	}
	base := url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path, RawPath: u.RawPath}
	ep.BaseURL = strings.TrimRight(base.String(), "/")
	return ep, nil
}

// ObjectRecord is an object payload exchanged with the server.
type ObjectRecord struct {
	Hash object.Hash
	Type object.ObjectType
	Data []byte
}

// RefUpdate is one compare-and-swap reference update. A nil Old skips the
// check; a pointer to "" requires the ref to be absent.
type RefUpdate struct {
	Name string
	Old  *object.Hash
	New  object.Hash
}

// ClientOptions configures the remote client.
type ClientOptions struct {
	Timeout     time.Duration // HTTP client timeout (default 60s)
	MaxAttempts int           // retry attempts (default 3)
}

const (
	responseLimitDefault = 2 << 20  // 2MB
	responseLimitRefs    = 8 << 20  // 8MB
	responseLimitObject  = 32 << 20 // 32MB
)

// Client is an HTTP client for the object API. Capabilities the server
// advertises on GET /refs decide whether later uploads are compressed.
type Client struct {
	endpoint    Endpoint
	httpClient  *http.Client
	creds       credentials
	maxAttempts int

	mu         sync.Mutex
	serverCaps Capabilities
}

// NewClient creates a client with default options. Credentials come from
// the environment or the URL; see resolveCredentials.
func NewClient(remoteURL string) (*Client, error) {
	return NewClientWithOptions(remoteURL, ClientOptions{})
}

// NewClientWithOptions creates a client. Zero-value or negative fields in
// opts receive defaults.
func NewClientWithOptions(remoteURL string, opts ClientOptions) (*Client, error) {
	endpoint, err := ParseEndpoint(remoteURL)
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	return &Client{
		endpoint:    endpoint,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		creds:       resolveCredentials(endpoint),
		maxAttempts: opts.MaxAttempts,
		serverCaps:  ParseCapabilities(""),
	}, nil
}

// ListRefs returns all remote refs keyed by full name.
func (c *Client) ListRefs(ctx context.Context) (map[string]object.Hash, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.BaseURL+"/refs", nil)
	if err != nil {
		return nil, err
	}
	body, resp, err := c.doWithLimit(req, http.StatusOK, responseLimitRefs, "application/json")
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.serverCaps = ParseCapabilities(resp.Header.Get(headerCapabilities))
	c.mu.Unlock()

	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode refs response: %w", err)
	}
	refs := make(map[string]object.Hash, len(raw))
	for name, hash := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		h := object.Hash(strings.TrimSpace(hash))
		if err := object.ValidateHash(h); err != nil {
			return nil, fmt.Errorf("invalid hash for ref %q: %w", name, err)
		}
		refs[name] = h
	}
	return refs, nil
}

// GetObject fetches one object by hash and verifies its content address.
func (c *Client) GetObject(ctx context.Context, hash object.Hash) (ObjectRecord, error) {
	if err := object.ValidateHash(hash); err != nil {
		return ObjectRecord{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.BaseURL+"/objects/"+string(hash), nil)
	if err != nil {
		return ObjectRecord{}, err
	}
	req.Header.Set("Accept-Encoding", "zstd")
	body, resp, err := c.doWithLimit(req, http.StatusOK, responseLimitObject, "")
	if err != nil {
		return ObjectRecord{}, err
	}
	if isZstdEncoded(resp.Header.Get("Content-Encoding")) {
		if body, err = decompressZstd(body); err != nil {
			return ObjectRecord{}, fmt.Errorf("decompress object %s: %w", hash, err)
		}
	}
	objType, err := parseObjectType(resp.Header.Get(headerObjectType))
	if err != nil {
		return ObjectRecord{}, fmt.Errorf("decode object %s: %w", hash, err)
	}
	if got := object.HashObject(objType, body); got != hash {
		return ObjectRecord{}, fmt.Errorf("decode object %s: content hashes to %s", hash, got)
	}
	return ObjectRecord{Hash: hash, Type: objType, Data: body}, nil
}

// PushObjects uploads objects as newline-delimited JSON, zstd-compressed
// when the server advertised support.
func (c *Client) PushObjects(ctx context.Context, objects []ObjectRecord) error {
	if len(objects) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, obj := range objects {
		if _, err := parseObjectType(string(obj.Type)); err != nil {
			return fmt.Errorf("push object %d: %w", i, err)
		}
		computed := object.HashObject(obj.Type, obj.Data)
		if obj.Hash != "" && obj.Hash != computed {
			return fmt.Errorf("push object %d: hash mismatch (provided %s, computed %s)", i, obj.Hash, computed)
		}
		payload := struct {
			Hash string `json:"hash"`
			Type string `json:"type"`
			Data []byte `json:"data"`
		}{Hash: string(computed), Type: string(obj.Type), Data: obj.Data}
		if err := enc.Encode(payload); err != nil {
			return fmt.Errorf("push object %d: encode: %w", i, err)
		}
	}

	body := buf.Bytes()
	c.mu.Lock()
	compressed := c.serverCaps.Has("zstd")
	c.mu.Unlock()
	if compressed {
		var err error
		if body, err = compressZstd(body); err != nil {
			return fmt.Errorf("compress objects: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.BaseURL+"/objects", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	if compressed {
		req.Header.Set("Content-Encoding", "zstd")
	}
	_, _, err = c.doWithLimit(req, http.StatusOK, responseLimitDefault, "")
	return err
}

// UpdateRefs applies compare-and-swap updates atomically on the server.
func (c *Client) UpdateRefs(ctx context.Context, updates []RefUpdate) error {
	if len(updates) == 0 {
		return fmt.Errorf("at least one ref update is required")
	}

	type refUpdatePayload struct {
		Name string  `json:"name"`
		Old  *string `json:"old,omitempty"`
		New  string  `json:"new"`
	}
	payload := struct {
		Updates []refUpdatePayload `json:"updates"`
	}{Updates: make([]refUpdatePayload, 0, len(updates))}
	for _, u := range updates {
		name := strings.TrimSpace(u.Name)
		if name == "" {
			return fmt.Errorf("ref update name is required")
		}
		var old *string
		if u.Old != nil {
			v := string(*u.Old)
			old = &v
		}
		payload.Updates = append(payload.Updates, refUpdatePayload{Name: name, Old: old, New: string(u.New)})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.BaseURL+"/refs", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, _, err = c.doWithLimit(req, http.StatusOK, responseLimitDefault, "")
	return err
}

// doWithLimit sends req and classifies failures: network errors and
// retryable statuses that outlived the retries are transient, 404 is
// storage.ErrNotFound and 409 is storage.ErrRefConflict.
func (c *Client) doWithLimit(req *http.Request, expectedStatus int, maxBytes int64, expectedContentType string) ([]byte, *http.Response, error) {
	c.creds.apply(req)
	resp, err := retryDo(c.httpClient, req, c.maxAttempts)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, storage.Transient(fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, nil, storage.Transient(fmt.Errorf("%s %s: read body: %w", req.Method, req.URL.Path, err))
	}
	if resp.StatusCode != expectedStatus {
		return nil, nil, statusError(req, resp.StatusCode, body)
	}
	if expectedContentType != "" {
		ct := resp.Header.Get("Content-Type")
		if ct != "" && !strings.HasPrefix(ct, expectedContentType) {
			return nil, nil, fmt.Errorf("unexpected content type %q (expected %s) from %s %s",
				ct, expectedContentType, req.Method, req.URL.Path)
		}
	}
	return body, resp, nil
}

func parseObjectType(raw string) (object.ObjectType, error) {
	switch t := object.ObjectType(strings.TrimSpace(raw)); t {
	case object.TypeBlob, object.TypeTree, object.TypeCommit:
		return t, nil
	default:
		return "", fmt.Errorf("unsupported object type %q", raw)
	}
}
