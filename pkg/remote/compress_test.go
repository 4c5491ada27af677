package remote

import (
	"bytes"
	"sync"
	"testing"
)

func TestZstdRoundTrip(t *testing.T) {
	original := bytes.Repeat([]byte(`{"hash":"abc","type":"blob","data":"eA=="}`+"\n"), 50)
	compressed, err := compressZstd(original)
	if err != nil {
		t.Fatalf("compressZstd: %v", err)
	}
	if len(compressed) >= len(original) {
		t.Fatalf("compressed %d >= original %d", len(compressed), len(original))
	}
	decompressed, err := decompressZstd(compressed)
	if err != nil {
		t.Fatalf("decompressZstd: %v", err)
	}
	if !bytes.Equal(decompressed, original) {
		t.Fatal("round-trip mismatch")
	}
}

func TestZstdConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := bytes.Repeat([]byte{byte('a' + i)}, 4096)
			c, err := compressZstd(payload)
			if err != nil {
				t.Errorf("compress: %v", err)
				return
			}
			d, err := decompressZstd(c)
			if err != nil || !bytes.Equal(d, payload) {
				t.Errorf("worker %d: round trip failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
}

func TestDecompressRejectsGarbage(t *testing.T) {
	if _, err := decompressZstd([]byte("not zstd at all")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestIsZstdEncoded(t *testing.T) {
	tests := map[string]bool{
		"zstd":        true,
		"gzip, zstd":  true,
		" ZSTD ":      true,
		"gzip":        false,
		"":            false,
		"x-zstd-like": false,
	}
	for header, want := range tests {
		if got := isZstdEncoded(header); got != want {
			t.Fatalf("isZstdEncoded(%q) = %v, want %v", header, got, want)
		}
	}
}
