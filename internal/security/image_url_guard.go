package security

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrInvalidImageURL は画像URLが受け付けられないことを表す。
var ErrInvalidImageURL = errors.New("invalid image URL")

// allowedSchemes は画像URLとして受け付けるスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は画像URLのホストとして拒否するネットワーク範囲。
var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16", // クラウドメタデータ 169.254.169.254 を含む
	"0.0.0.0/8",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

var blockedHostnames = map[string]struct{}{
	"localhost": {},
}

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	networks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR %s: %v", cidr, err))
		}
		networks = append(networks, network)
	}
	return networks
}

// ImageURLGuard は投稿に添付される画像URLを検証する。
// ValidateURLは通信を伴わない静的検証、Probeは実際にHEADリクエストを送って
// 画像が取得できることを確認する。
type ImageURLGuard struct {
	client *http.Client
}

// NewImageURLGuard はsafeurlのSSRF防止クライアントを使うImageURLGuardを生成する。
// safeurlはDNS解決後のIPアドレスも検証するため、ValidateURLをすり抜けた
// 内部向けホスト名への接続もここで遮断される。
func NewImageURLGuard(timeout time.Duration) *ImageURLGuard {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return &ImageURLGuard{client: safeurl.Client(config).Client}
}

// NewImageURLGuardWithClient は任意のHTTPクライアントでProbeを行うImageURLGuardを生成する。
func NewImageURLGuardWithClient(client *http.Client) *ImageURLGuard {
	return &ImageURLGuard{client: client}
}

// ValidateURL は画像URLのスキームとホストを静的に検証する。
func (g *ImageURLGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: empty URL", ErrInvalidImageURL)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImageURL, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: scheme %q is not allowed", ErrInvalidImageURL, parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidImageURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		for _, network := range blockedNetworks {
			if network.Contains(ip) {
				return fmt.Errorf("%w: address %s is not public", ErrInvalidImageURL, ip)
			}
		}
		return nil
	}

	if _, blocked := blockedHostnames[strings.ToLower(host)]; blocked {
		return fmt.Errorf("%w: host %s is not public", ErrInvalidImageURL, host)
	}
	return nil
}

// Probe は画像URLにHEADリクエストを送り、2xxかつimage/*のContent-Typeが返ることを確認する。
func (g *ImageURLGuard) Probe(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImageURL, err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", ErrInvalidImageURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: unexpected status %d", ErrInvalidImageURL, resp.StatusCode)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return fmt.Errorf("%w: content type %q is not an image", ErrInvalidImageURL, resp.Header.Get("Content-Type"))
	}
	return nil
}
