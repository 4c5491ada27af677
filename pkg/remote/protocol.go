package remote

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/justindra/yaks/pkg/storage"
)

const (
	// ProtocolVersion is sent with every request in the Yaks-Protocol header.
	ProtocolVersion = "1"

	// ClientCapabilities is what this client advertises to the server.
	ClientCapabilities = "zstd"

	headerProtocol     = "Yaks-Protocol"
	headerCapabilities = "Yaks-Capabilities"
	headerObjectType   = "X-Object-Type"
)

// Capabilities is the set of optional features one side supports.
type Capabilities map[string]struct{}

// ParseCapabilities reads a comma-separated list, ignoring blanks.
func ParseCapabilities(raw string) Capabilities {
	caps := make(Capabilities)
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			caps[c] = struct{}{}
		}
	}
	return caps
}

func (c Capabilities) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// String lists the capabilities sorted, in header form.
func (c Capabilities) String() string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return strings.Join(keys, ",")
}

// Error codes carried in JSON error bodies.
const (
	CodeRefConflict = "ref_conflict"
	CodeNotFound    = "not_found"
)

// RemoteError is a failed request. Code and Message come from the server's
// JSON body when it sent one. It matches storage.ErrNotFound,
// storage.ErrRefConflict or storage.ErrTransient under errors.Is according
// to its status and code.
type RemoteError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
	Detail  string `json:"detail,omitempty"`
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *RemoteError) Is(target error) bool {
	switch target {
	case storage.ErrNotFound:
		return e.Status == http.StatusNotFound || e.Code == CodeNotFound
	case storage.ErrRefConflict:
		return e.Status == http.StatusConflict || e.Code == CodeRefConflict
	case storage.ErrTransient:
		return isRetryableStatus(e.Status)
	}
	return false
}

// parseRemoteError builds a RemoteError from a response body. Bodies that
// are not the JSON error shape become the message verbatim.
func parseRemoteError(status int, body []byte) *RemoteError {
	var re RemoteError
	if err := json.Unmarshal(body, &re); err != nil || (re.Message == "" && re.Code == "") {
		re = RemoteError{Message: strings.TrimSpace(string(body))}
	}
	if re.Message == "" {
		re.Message = http.StatusText(status)
	}
	re.Status = status
	return &re
}

// requestError wraps a RemoteError with the request it answered.
type requestError struct {
	method, path string
	err          *RemoteError
}

func (e *requestError) Error() string {
	return fmt.Sprintf("remote request failed (%s %s): %v", e.method, e.path, e.err)
}

func (e *requestError) Unwrap() error { return e.err }

func statusError(req *http.Request, status int, body []byte) error {
	return &requestError{method: req.Method, path: req.URL.Path, err: parseRemoteError(status, body)}
}
