package security

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestValidateURL_PublicURLs(t *testing.T) {
	guard := NewImageURLGuard(5 * time.Second)

	for _, raw := range []string{
		"https://images.example.com/cover.png",
		"http://example.com/a.jpg",
		"HTTPS://Example.com/upper.gif",
		"https://8.8.8.8/image.webp",
	} {
		if err := guard.ValidateURL(raw); err != nil {
			t.Errorf("ValidateURL(%q) error = %v, want nil", raw, err)
		}
	}
}

func TestValidateURL_Rejected(t *testing.T) {
	guard := NewImageURLGuard(5 * time.Second)

	tests := []struct {
		name string
		raw  string
	}{
		{"空文字列", ""},
		{"スキームなし", "example.com/a.png"},
		{"javascriptスキーム", "javascript:alert(1)"},
		{"dataスキーム", "data:image/png;base64,abc"},
		{"ftpスキーム", "ftp://example.com/a.png"},
		{"ホストなし", "https:///a.png"},
		{"プライベートIP 10/8", "http://10.0.0.1/a.png"},
		{"プライベートIP 172.16/12", "http://172.16.5.4/a.png"},
		{"プライベートIP 192.168/16", "http://192.168.1.1/a.png"},
		{"ループバック", "http://127.0.0.1/a.png"},
		{"メタデータIP", "http://169.254.169.254/latest/meta-data"},
		{"ゼロアドレス", "http://0.0.0.0/a.png"},
		{"IPv6ループバック", "http://[::1]/a.png"},
		{"IPv6ユニークローカル", "http://[fd00::1]/a.png"},
		{"localhost", "http://localhost:8080/a.png"},
		{"LOCALHOST", "http://LOCALHOST/a.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.raw)
			if !errors.Is(err, ErrInvalidImageURL) {
				t.Errorf("ValidateURL(%q) error = %v, want ErrInvalidImageURL", tt.raw, err)
			}
		})
	}
}

// httptestサーバーは127.0.0.1で起動するため、safeurlクライアントは接続を拒否する。
func TestProbe_SafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
	}))
	defer ts.Close()

	guard := NewImageURLGuard(5 * time.Second)

	if err := guard.Probe(context.Background(), ts.URL+"/a.png"); !errors.Is(err, ErrInvalidImageURL) {
		t.Errorf("Probe(loopback) error = %v, want ErrInvalidImageURL", err)
	}
}

func TestProbe_ChecksStatusAndContentType(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		wantErr     bool
	}{
		{"画像", http.StatusOK, "image/png", false},
		{"パラメータ付き画像", http.StatusOK, "image/jpeg; charset=binary", false},
		{"HTML", http.StatusOK, "text/html; charset=utf-8", true},
		{"Content-Typeなし", http.StatusOK, "", true},
		{"404", http.StatusNotFound, "image/png", true},
		{"500", http.StatusInternalServerError, "image/png", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotMethod string
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			guard := NewImageURLGuardWithClient(ts.Client())
			err := guard.Probe(context.Background(), ts.URL+"/cover")

			if tt.wantErr && !errors.Is(err, ErrInvalidImageURL) {
				t.Errorf("Probe() error = %v, want ErrInvalidImageURL", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Probe() error = %v, want nil", err)
			}
			if gotMethod != http.MethodHead {
				t.Errorf("method = %q, want HEAD", gotMethod)
			}
		})
	}
}

func TestProbe_RespectsContextCancellation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	guard := NewImageURLGuardWithClient(ts.Client())
	if err := guard.Probe(ctx, ts.URL); !errors.Is(err, ErrInvalidImageURL) {
		t.Errorf("Probe(cancelled) error = %v, want ErrInvalidImageURL", err)
	}
}
