package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/justindra/yaks/pkg/object"
	"github.com/justindra/yaks/pkg/storage"
)

func fastRetries(t *testing.T) {
	t.Helper()
	prev := retryBackoff
	retryBackoff = time.Millisecond
	t.Cleanup(func() { retryBackoff = prev })
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		wantBase   string
		wantUser   string
		shouldFail bool
	}{
		{name: "plain", in: "https://example.com/api/yaks/team/", wantBase: "https://example.com/api/yaks/team"},
		{name: "userinfo stripped", in: "https://ada:pw@example.com/yaks?x=1", wantBase: "https://example.com/yaks", wantUser: "ada"},
		{name: "no scheme", in: "example.com/yaks", shouldFail: true},
		{name: "ssh scheme", in: "ssh://example.com/yaks", shouldFail: true},
		{name: "empty", in: "  ", shouldFail: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ep, err := ParseEndpoint(tc.in)
			if tc.shouldFail {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEndpoint: %v", err)
			}
			if ep.BaseURL != tc.wantBase {
				t.Fatalf("BaseURL = %q, want %q", ep.BaseURL, tc.wantBase)
			}
			if ep.user != tc.wantUser {
				t.Fatalf("user = %q, want %q", ep.user, tc.wantUser)
			}
		})
	}
}

func TestClientAuthFromEnv(t *testing.T) {
	fs, ts := newFakeServer(t)
	t.Setenv("YAKS_TOKEN", "secret")
	c, err := NewClient(ts.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.ListRefs(context.Background()); err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	if auth, _, _ := fs.stats(); auth != "Bearer secret" {
		t.Fatalf("Authorization = %q", auth)
	}
}

func TestClientBasicAuthFromURL(t *testing.T) {
	fs, ts := newFakeServer(t)
	t.Setenv("YAKS_TOKEN", "")
	t.Setenv("YAKS_USERNAME", "")
	c, err := NewClient(strings.Replace(ts.URL, "http://", "http://ada:pw@", 1))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.ListRefs(context.Background()); err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	if auth, _, _ := fs.stats(); !strings.HasPrefix(auth, "Basic ") {
		t.Fatalf("Authorization = %q, want basic auth", auth)
	}
}

func TestPushAndGetObject(t *testing.T) {
	fs, ts := newFakeServer(t)
	ctx := context.Background()
	c, err := NewClient(ts.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.ListRefs(ctx); err != nil {
		t.Fatalf("ListRefs: %v", err)
	}

	data := []byte("outline first\n")
	if err := c.PushObjects(ctx, []ObjectRecord{{Type: object.TypeBlob, Data: data}}); err != nil {
		t.Fatalf("PushObjects: %v", err)
	}
	if _, _, compressed := fs.stats(); compressed != 1 {
		t.Fatalf("compressed pushes = %d, want 1 after the server advertised zstd", compressed)
	}
	h := object.HashObject(object.TypeBlob, data)
	rec, err := c.GetObject(ctx, h)
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	if rec.Type != object.TypeBlob || string(rec.Data) != string(data) {
		t.Fatalf("record = %+v", rec)
	}

	if err := c.PushObjects(ctx, []ObjectRecord{{Hash: h, Type: object.TypeTree, Data: data}}); err == nil {
		t.Fatal("expected hash mismatch error")
	}
	_, err = c.GetObject(ctx, object.HashObject(object.TypeBlob, []byte("absent")))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetObject(absent) = %v, want ErrNotFound", err)
	}
}

func TestGetObjectRejectsTamperedContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerObjectType, "blob")
		_, _ = w.Write([]byte("not what you asked for"))
	}))
	defer ts.Close()
	c, _ := NewClient(ts.URL)
	if _, err := c.GetObject(context.Background(), object.HashObject(object.TypeBlob, []byte("x"))); err == nil {
		t.Fatal("expected content hash mismatch")
	}
}

func TestUpdateRefsConflict(t *testing.T) {
	fs, ts := newFakeServer(t)
	ctx := context.Background()
	c, _ := NewClient(ts.URL)

	data := []byte("c")
	if err := c.PushObjects(ctx, []ObjectRecord{{Type: object.TypeBlob, Data: data}}); err != nil {
		t.Fatalf("PushObjects: %v", err)
	}
	if _, _, compressed := fs.stats(); compressed != 0 {
		t.Fatal("pushed compressed before the server advertised zstd")
	}
	h := object.HashObject(object.TypeBlob, data)
	empty := object.Hash("")
	if err := c.UpdateRefs(ctx, []RefUpdate{{Name: "refs/notes/yaks", Old: &empty, New: h}}); err != nil {
		t.Fatalf("UpdateRefs(create): %v", err)
	}
	err := c.UpdateRefs(ctx, []RefUpdate{{Name: "refs/notes/yaks", Old: &empty, New: h}})
	if !errors.Is(err, storage.ErrRefConflict) {
		t.Fatalf("UpdateRefs(stale) = %v, want ErrRefConflict", err)
	}
	var re *RemoteError
	if !errors.As(err, &re) || re.Code != CodeRefConflict || re.Status != http.StatusConflict {
		t.Fatalf("RemoteError = %+v", re)
	}
	if err := c.UpdateRefs(ctx, nil); err == nil {
		t.Fatal("expected error for empty update list")
	}
}

func TestServerErrorsAreTransient(t *testing.T) {
	fastRetries(t)
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer ts.Close()

	c, _ := NewClientWithOptions(ts.URL, ClientOptions{MaxAttempts: 2})
	_, err := c.ListRefs(context.Background())
	if !storage.IsTransient(err) {
		t.Fatalf("ListRefs = %v, want transient", err)
	}
	if !strings.Contains(err.Error(), "maintenance") {
		t.Fatalf("error lost server message: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestNetworkErrorsAreTransient(t *testing.T) {
	fastRetries(t)
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c, _ := NewClientWithOptions(url, ClientOptions{MaxAttempts: 1, Timeout: time.Second})
	if _, err := c.ListRefs(context.Background()); !storage.IsTransient(err) {
		t.Fatalf("ListRefs = %v, want transient", err)
	}
}

func TestCapabilities(t *testing.T) {
	caps := ParseCapabilities(" zstd , sideband,,")
	if !caps.Has("zstd") || !caps.Has("sideband") || caps.Has("pack") {
		t.Fatalf("caps = %s", caps)
	}
	if caps.String() != "sideband,zstd" {
		t.Fatalf("String = %q", caps.String())
	}
}
