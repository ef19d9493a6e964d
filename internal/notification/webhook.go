package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	maxWebhookPayloadBytes = 1 << 20 // 1 MB
	webhookRequestTimeout  = 10 * time.Second
	webhookRatePerSecond   = 1
)

// blockedCIDRs is the SSRF deny-list from §8.9: link-local, loopback, and
// private ranges a webhook target must never resolve into.
var blockedCIDRs = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("notification: invalid blocked CIDR %q: %v", c, err))
		}
		nets = append(nets, n)
	}
	return nets
}

// Resolver abstracts DNS resolution so tests can substitute fake addresses
// without hitting the network.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// WebhookSender delivers alert notifications as signed HTTP(S) POSTs,
// guarded against SSRF per §8.9 and rate-limited per target per §4.7.
type WebhookSender struct {
	dial     func(ctx context.Context, network, addr string) (net.Conn, error)
	resolver Resolver
	secret   string

	limiters sync.Map // host -> *rate.Limiter
	breakers sync.Map // host -> *gobreaker.CircuitBreaker
}

// NewWebhookSender creates a WebhookSender. secret is the shared HMAC key
// used to sign every outbound payload.
func NewWebhookSender(secret string, resolver Resolver) *WebhookSender {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &WebhookSender{
		dial:     (&net.Dialer{Timeout: webhookRequestTimeout}).DialContext,
		resolver: resolver,
		secret:   secret,
	}
}

// Send validates the target, waits for its per-host rate budget, signs the
// payload, and POSTs it as JSON. The TCP connection is dialed directly at
// the IP address guardSSRF already validated, never re-resolving the
// hostname, so a DNS answer that changes between the guard check and the
// actual connect (DNS rebinding) can't smuggle a private-range connection
// through: §8.9 requires the target be rejected "before any TCP connection
// is attempted", which only holds if the connection reuses the validated
// address instead of asking the resolver again.
func (w *WebhookSender) Send(ctx context.Context, n Notification) error {
	target, err := url.Parse(n.Target)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return fmt.Errorf("unsupported webhook scheme %q", target.Scheme)
	}
	pinnedIP, err := w.guardSSRF(ctx, target.Hostname())
	if err != nil {
		return err
	}

	payload := []byte(n.Body)
	if len(payload) > maxWebhookPayloadBytes {
		return fmt.Errorf("webhook payload exceeds %d bytes", maxWebhookPayloadBytes)
	}

	if err := w.limiterFor(target.Hostname()).Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set("X-Timestamp", timestamp)
	req.Header.Set("X-Signature", "sha256="+signPayload(w.secret, timestamp, payload))

	client := &http.Client{
		Timeout: webhookRequestTimeout,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				_, port, splitErr := net.SplitHostPort(addr)
				if splitErr != nil {
					port = defaultPortForScheme(target.Scheme)
				}
				return w.dial(ctx, network, net.JoinHostPort(pinnedIP.String(), port))
			},
		},
	}

	_, err = w.breakerFor(target.Hostname()).Execute(func() (interface{}, error) {
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("webhook target returned status %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}

func defaultPortForScheme(scheme string) string {
	if scheme == "https" {
		return "443"
	}
	return "80"
}

// guardSSRF resolves host, rejects it if any returned address falls inside
// a blocked range per §8.9, and returns the first validated address for the
// caller to dial directly rather than trusting a second, later resolution.
func (w *WebhookSender) guardSSRF(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if err := w.checkIP(ip); err != nil {
			return nil, err
		}
		return ip, nil
	}
	addrs, err := w.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve webhook host: %w", err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("webhook host %q resolved to no addresses", host)
	}
	for _, addr := range addrs {
		if err := w.checkIP(addr.IP); err != nil {
			return nil, err
		}
	}
	return addrs[0].IP, nil
}

func (w *WebhookSender) checkIP(ip net.IP) error {
	for _, blocked := range blockedCIDRs {
		if blocked.Contains(ip) {
			return fmt.Errorf("webhook target address %s is in a blocked range", ip)
		}
	}
	return nil
}

func (w *WebhookSender) limiterFor(host string) *rate.Limiter {
	if l, ok := w.limiters.Load(host); ok {
		return l.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rate.Limit(webhookRatePerSecond), 1)
	actual, _ := w.limiters.LoadOrStore(host, limiter)
	return actual.(*rate.Limiter)
}

// breakerFor returns the per-host circuit breaker, trading the per-send
// dispatcher retry (which already backs off a single notification) for a
// longer memory across notifications: five consecutive failures to the same
// host open the breaker for 30s so a persistently down endpoint doesn't eat
// the worker pool's time budget on every queued alert.
func (w *WebhookSender) breakerFor(host string) *gobreaker.CircuitBreaker {
	if b, ok := w.breakers.Load(host); ok {
		return b.(*gobreaker.CircuitBreaker)
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webhook:" + host,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	actual, _ := w.breakers.LoadOrStore(host, breaker)
	return actual.(*gobreaker.CircuitBreaker)
}

// signPayload computes the HMAC-SHA256 signature over "timestamp.body".
func signPayload(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
