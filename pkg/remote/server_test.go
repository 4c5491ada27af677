package remote

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/justindra/yaks/pkg/object"
)

// fakeServer is an in-memory object API used by the tests.
type fakeServer struct {
	mu         sync.Mutex
	objects    map[object.Hash]ObjectRecord
	refs       map[string]object.Hash
	pushes     int
	compressed int
	authHeader string
	zstd       bool
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	fs := &fakeServer{objects: make(map[object.Hash]ObjectRecord), refs: make(map[string]object.Hash), zstd: true}
	ts := httptest.NewServer(fs)
	t.Cleanup(ts.Close)
	return fs, ts
}

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "error": msg})
}

func (fs *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.authHeader = r.Header.Get("Authorization")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/refs":
		out := make(map[string]string, len(fs.refs))
		for k, v := range fs.refs {
			out[k] = string(v)
		}
		if fs.zstd {
			w.Header().Set(headerCapabilities, "zstd")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/objects/"):
		rec, ok := fs.objects[object.Hash(strings.TrimPrefix(r.URL.Path, "/objects/"))]
		if !ok {
			writeJSONError(w, http.StatusNotFound, CodeNotFound, "object not found")
			return
		}
		w.Header().Set(headerObjectType, string(rec.Type))
		_, _ = w.Write(rec.Data)

	case r.Method == http.MethodPost && r.URL.Path == "/objects":
		fs.pushes++
		body, _ := io.ReadAll(r.Body)
		if isZstdEncoded(r.Header.Get("Content-Encoding")) {
			fs.compressed++
			var err error
			if body, err = decompressZstd(body); err != nil {
				writeJSONError(w, http.StatusBadRequest, "bad_body", err.Error())
				return
			}
		}
		sc := bufio.NewScanner(bytes.NewReader(body))
		sc.Buffer(make([]byte, 0, 1<<20), 16<<20)
		for sc.Scan() {
			var rec struct {
				Hash string `json:"hash"`
				Type string `json:"type"`
				Data []byte `json:"data"`
			}
			if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
				writeJSONError(w, http.StatusBadRequest, "bad_object", err.Error())
				return
			}
			typ := object.ObjectType(rec.Type)
			if object.HashObject(typ, rec.Data) != object.Hash(rec.Hash) {
				writeJSONError(w, http.StatusBadRequest, "bad_hash", rec.Hash)
				return
			}
			fs.objects[object.Hash(rec.Hash)] = ObjectRecord{Hash: object.Hash(rec.Hash), Type: typ, Data: rec.Data}
		}
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodPost && r.URL.Path == "/refs":
		var req struct {
			Updates []struct {
				Name string  `json:"name"`
				Old  *string `json:"old"`
				New  string  `json:"new"`
			} `json:"updates"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		for _, u := range req.Updates {
			if u.Old != nil && string(fs.refs[u.Name]) != *u.Old {
				writeJSONError(w, http.StatusConflict, CodeRefConflict, "ref moved: "+u.Name)
				return
			}
			if _, ok := fs.objects[object.Hash(u.New)]; !ok {
				writeJSONError(w, http.StatusBadRequest, "missing_object", u.New)
				return
			}
		}
		for _, u := range req.Updates {
			fs.refs[u.Name] = object.Hash(u.New)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))

	default:
		http.NotFound(w, r)
	}
}

func (fs *fakeServer) stats() (auth string, pushes, compressed int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.authHeader, fs.pushes, fs.compressed
}
