package services

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// DefaultGateways are the public gateways in preference order.
var DefaultGateways = []string{
	"https://ipfs.io/ipfs/",
	"https://gateway.pinata.cloud/ipfs/",
	"https://cloudflare-ipfs.com/ipfs/",
	"https://dweb.link/ipfs/",
}

type GatewayService interface {
	// URLFor returns the URL of contentHash on gateway index. An index out of
	// range falls back to the preferred gateway.
	URLFor(contentHash string, index int) string
	// AllURLs returns one URL per configured gateway, in configured order.
	AllURLs(contentHash string) []string
	// CheckAvailability sends a HEAD request to the preferred gateway.
	CheckAvailability(ctx context.Context, contentHash string) bool
	Gateways() []string
}

type gatewayService struct {
	gateways   []string
	httpClient *http.Client
}

// NewGatewayService creates a resolver over gateways. Each base URL is used as
// given and should end with a slash; an empty list selects DefaultGateways.
func NewGatewayService(gateways []string, httpClient *http.Client) GatewayService {
	var cleaned []string
	for _, g := range gateways {
		if g = strings.TrimSpace(g); g != "" {
			cleaned = append(cleaned, g)
		}
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultGateways...)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &gatewayService{gateways: cleaned, httpClient: httpClient}
}

func (s *gatewayService) Gateways() []string {
	return append([]string(nil), s.gateways...)
}

func (s *gatewayService) URLFor(contentHash string, index int) string {
	if index < 0 || index >= len(s.gateways) {
		index = 0
	}
	return s.gateways[index] + contentHash
}

func (s *gatewayService) AllURLs(contentHash string) []string {
	urls := make([]string, 0, len(s.gateways))
	for _, gateway := range s.gateways {
		urls = append(urls, gateway+contentHash)
	}
	return urls
}

func (s *gatewayService) CheckAvailability(ctx context.Context, contentHash string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.URLFor(contentHash, 0), nil)
	if err != nil {
		return false
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
