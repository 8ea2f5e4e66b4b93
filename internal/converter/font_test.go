package converter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

var fakeFontData = []byte("0123456789abcdef-fake-font-bytes")

func TestEmbeddedFont(t *testing.T) {
	data, err := EmbeddedFont(fakeFontData).Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(data) != string(fakeFontData) {
		t.Errorf("Load = %q, want supplied bytes", data)
	}
}

func TestEmbeddedFontEmpty(t *testing.T) {
	_, err := EmbeddedFont(nil).Load(context.Background())
	if !errors.Is(err, ErrFontUnavailable) {
		t.Errorf("Load = %v, want ErrFontUnavailable", err)
	}
}

func TestRemoteFontFirstSuccessWins(t *testing.T) {
	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.Path)
		switch r.URL.Path {
		case "/bad":
			http.Error(w, "nope", http.StatusInternalServerError)
		case "/good":
			w.Write(fakeFontData) //nolint:errcheck
		default:
			// never reached once /good succeeds
			w.Write(fakeFontData) //nolint:errcheck
		}
	}))
	defer srv.Close()

	src := &RemoteFont{URLs: []string{srv.URL + "/bad", srv.URL + "/good", srv.URL + "/never"}}
	data, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(data) != string(fakeFontData) {
		t.Errorf("Load = %q, want font bytes", data)
	}

	if len(hits) != 2 || hits[0] != "/bad" || hits[1] != "/good" {
		t.Errorf("hits = %v, want ordered [/bad /good] and no third request", hits)
	}
}

func TestRemoteFontAllFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	src := &RemoteFont{URLs: []string{srv.URL + "/a", srv.URL + "/b"}}
	_, err := src.Load(context.Background())
	if !errors.Is(err, ErrFontUnavailable) {
		t.Errorf("Load = %v, want ErrFontUnavailable", err)
	}
}

func TestRemoteFontNoURLs(t *testing.T) {
	_, err := (&RemoteFont{}).Load(context.Background())
	if !errors.Is(err, ErrFontUnavailable) {
		t.Errorf("Load = %v, want ErrFontUnavailable", err)
	}
}

func TestRemoteFontRejectsTinyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	src := &RemoteFont{URLs: []string{srv.URL}}
	_, err := src.Load(context.Background())
	if !errors.Is(err, ErrFontUnavailable) {
		t.Errorf("Load = %v, want ErrFontUnavailable for a 2-byte body", err)
	}
}

type countingFontSource struct {
	calls int
	data  []byte
	err   error
}

func (s *countingFontSource) Load(context.Context) ([]byte, error) {
	s.calls++
	return s.data, s.err
}

func TestCachedFont(t *testing.T) {
	src := &countingFontSource{data: fakeFontData}
	cached := NewCachedFont(src)

	for i := 0; i < 3; i++ {
		data, err := cached.Load(context.Background())
		if err != nil {
			t.Fatalf("Load %d failed: %v", i, err)
		}
		if string(data) != string(fakeFontData) {
			t.Fatalf("Load %d = %q, want font bytes", i, data)
		}
	}

	if src.calls != 1 {
		t.Errorf("underlying source loaded %d times, want 1", src.calls)
	}
}

func TestCachedFontDoesNotCacheFailures(t *testing.T) {
	src := &countingFontSource{err: errors.New("network down")}
	cached := NewCachedFont(src)

	if _, err := cached.Load(context.Background()); err == nil {
		t.Fatal("Load succeeded, want error")
	}
	src.err = nil
	src.data = fakeFontData

	data, err := cached.Load(context.Background())
	if err != nil {
		t.Fatalf("Load after recovery failed: %v", err)
	}
	if string(data) != string(fakeFontData) {
		t.Errorf("Load = %q, want font bytes", data)
	}
	if src.calls != 2 {
		t.Errorf("underlying source loaded %d times, want 2", src.calls)
	}
}
