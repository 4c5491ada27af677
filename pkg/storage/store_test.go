package storage_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/justindra/yaks/pkg/object"
	"github.com/justindra/yaks/pkg/repo"
	"github.com/justindra/yaks/pkg/storage"
	"github.com/justindra/yaks/pkg/yak"
)

const ref = "refs/notes/yaks"

func newStore(t *testing.T, opts ...storage.Option) *storage.Store {
	t.Helper()
	r, err := repo.Init(filepath.Join(t.TempDir(), "yaks"))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return storage.NewStore(repo.NewBackend(r), opts...)
}

func sample() *yak.Collection {
	return yak.NewCollection(
		yak.Yak{ID: "dx"},
		yak.Yak{ID: "dx/rust", Done: true},
		yak.Yak{ID: "dx/writing docs", Context: "outline first"},
		yak.Yak{ID: "ops", Context: "same note"},
		yak.Yak{ID: "ops/deploy", Context: "same note"},
	)
}

func TestReadMissingRefIsEmpty(t *testing.T) {
	s := newStore(t)
	c, id, err := s.Read(context.Background(), ref)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if c.Len() != 0 || id != "" {
		t.Fatalf("Read(missing) = %d yaks, id %q", c.Len(), id)
	}
}

func TestWriteAdvanceRead(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.Write(ctx, sample(), "yx add dx/rust", "Ada <ada@example.com>")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, cur, _ := s.Read(ctx, ref); cur != "" {
		t.Fatalf("Write moved the ref")
	}
	if err := s.AdvanceRef(ctx, ref, id, ""); err != nil {
		t.Fatalf("AdvanceRef: %v", err)
	}

	got, gotID, err := s.Read(ctx, ref)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if gotID != id {
		t.Fatalf("id = %s, want %s", gotID, id)
	}
	if !got.Equal(sample()) {
		t.Fatalf("read back %v, want %v", got.All(), sample().All())
	}
}

func TestWriteIsContentAddressed(t *testing.T) {
	ctx := context.Background()
	fixed := time.Unix(1700000000, 0)
	s := newStore(t, storage.WithClock(func() time.Time { return fixed }))

	a, err := s.Write(ctx, sample(), "m", "a")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	b, err := s.Write(ctx, yak.NewCollection(sample().All()...), "m", "a")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if a != b {
		t.Fatalf("equal snapshots got different ids: %s != %s", a, b)
	}
}

func TestAdvanceRefConflict(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	first, _ := s.Write(ctx, sample(), "one", "a")
	second, _ := s.Write(ctx, yak.Empty(), "two", "a", first)

	if err := s.AdvanceRef(ctx, ref, first, ""); err != nil {
		t.Fatalf("AdvanceRef: %v", err)
	}
	if err := s.AdvanceRef(ctx, ref, second, ""); !errors.Is(err, storage.ErrRefConflict) {
		t.Fatalf("stale AdvanceRef = %v, want ErrRefConflict", err)
	}
	if err := s.AdvanceRef(ctx, ref, second, first); err != nil {
		t.Fatalf("AdvanceRef: %v", err)
	}
	if err := s.ForceRef(ctx, ref, first); err != nil {
		t.Fatalf("ForceRef: %v", err)
	}
}

func TestEmptyCollectionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	id, err := s.Write(ctx, yak.Empty(), "yx prune", "a")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	c, err := s.ReadCommit(ctx, id)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("Len = %d, want 0", c.Len())
	}
}

func TestLogFollowsFirstParent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	var prev object.Hash
	for _, msg := range []string{"yx add a", "yx add b", "yx done a"} {
		id, err := s.Write(ctx, sample(), msg, "Ada", prev)
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := s.AdvanceRef(ctx, ref, id, prev); err != nil {
			t.Fatalf("AdvanceRef: %v", err)
		}
		prev = id
	}

	entries, err := s.Log(ctx, ref, 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	var msgs []string
	for _, e := range entries {
		msgs = append(msgs, e.Message)
	}
	if got := strings.Join(msgs, ","); got != "yx done a,yx add b,yx add a" {
		t.Fatalf("log = %s", got)
	}
	limited, _ := s.Log(ctx, ref, 1)
	if len(limited) != 1 {
		t.Fatalf("limited log = %d entries", len(limited))
	}
	none, err := s.Log(ctx, "refs/notes/none", 0)
	if err != nil || none != nil {
		t.Fatalf("Log(missing) = %v, %v", none, err)
	}
}

func TestWithSignerSignsCommits(t *testing.T) {
	ctx := context.Background()
	var payloads int
	s := newStore(t, storage.WithSigner(func(payload []byte) (string, error) {
		payloads++
		if strings.Contains(string(payload), "signature") {
			t.Errorf("payload contains a signature header")
		}
		return "sshsig-v1:test", nil
	}))
	id, err := s.Write(ctx, sample(), "signed", "a")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.AdvanceRef(ctx, ref, id, ""); err != nil {
		t.Fatalf("AdvanceRef: %v", err)
	}
	entries, _ := s.Log(ctx, ref, 0)
	if payloads != 1 || len(entries) != 1 || !entries[0].Signed {
		t.Fatalf("payloads=%d entries=%+v", payloads, entries)
	}

	failing := newStore(t, storage.WithSigner(func([]byte) (string, error) {
		return "", errors.New("agent unavailable")
	}))
	if _, err := failing.Write(ctx, sample(), "m", "a"); err == nil {
		t.Fatal("expected signer failure to abort the write")
	}
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	sign := func(payload []byte) (string, error) { return fmt.Sprintf("len:%d", len(payload)), nil }
	verify := func(payload []byte, sig string) error {
		if want, _ := sign(payload); sig != want {
			return errors.New("bad signature")
		}
		return nil
	}

	s := newStore(t, storage.WithSigner(sign))
	id, err := s.Write(ctx, sample(), "signed", "a")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Verify(ctx, id, verify); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	reject := func([]byte, string) error { return errors.New("untrusted key") }
	if err := s.Verify(ctx, id, reject); err == nil {
		t.Fatal("expected verifier rejection")
	}

	plain := newStore(t)
	unsigned, err := plain.Write(ctx, sample(), "plain", "a")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := plain.Verify(ctx, unsigned, verify); !errors.Is(err, storage.ErrUnsigned) {
		t.Fatalf("Verify(unsigned) = %v, want ErrUnsigned", err)
	}
}

func TestTransientMarking(t *testing.T) {
	base := errors.New("connection reset")
	err := storage.Transient(base)
	if !storage.IsTransient(err) || !errors.Is(err, base) {
		t.Fatalf("Transient lost classification: %v", err)
	}
	if storage.IsTransient(base) {
		t.Fatal("plain error reported as transient")
	}
	if storage.Transient(nil) != nil {
		t.Fatal("Transient(nil) should be nil")
	}
}
