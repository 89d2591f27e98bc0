package notify

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"budgee-monitor/src/monitor"
)

const VerificationHeader = "Budgee-Verification"

var maxAge = 5 * time.Minute

// WebhookDispatcher POSTs the notification as JSON. Each request carries an
// HS256 JWT in the Budgee-Verification header whose claims hold the issue
// time and the SHA-256 of the body, so receivers can check both.
type WebhookDispatcher struct {
	url    string
	secret []byte
	client *http.Client
	now    func() time.Time
}

func NewWebhookDispatcher(url, secret string, client *http.Client) *WebhookDispatcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookDispatcher{url: url, secret: []byte(secret), client: client, now: time.Now}
}

func (d *WebhookDispatcher) Name() string { return "webhook" }

func (d *WebhookDispatcher) Dispatch(ctx context.Context, n monitor.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	token, err := SignWebhook(body, d.secret, d.now())
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(VerificationHeader, token)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}

func bodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func SignWebhook(body, secret []byte, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat":                 now.Unix(),
		"request_body_sha256": bodyHash(body),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign webhook: %w", err)
	}
	return signed, nil
}

// VerifyWebhook is the receiver-side check for a webhook delivery.
func VerifyWebhook(body []byte, headers map[string]string, secret []byte, now time.Time) (bool, error) {
	tokenString := getHeaderCI(headers, VerificationHeader)
	if tokenString == "" {
		return false, errors.New("missing Budgee-Verification header")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30*time.Second),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	claims := jwt.MapClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil || !token.Valid {
		return false, fmt.Errorf("invalid token: %w", err)
	}

	// Reject deliveries older than maxAge
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return false, errors.New("missing iat")
	}
	if now.Sub(iat.Time) > maxAge {
		return false, errors.New("token too old (>5m)")
	}

	wantHash, ok := claims["request_body_sha256"].(string)
	if !ok || wantHash == "" {
		return false, errors.New("missing request_body_sha256")
	}
	if subtle.ConstantTimeCompare([]byte(bodyHash(body)), []byte(strings.ToLower(wantHash))) != 1 {
		return false, errors.New("body hash mismatch")
	}

	return true, nil
}

func getHeaderCI(h map[string]string, name string) string {
	lname := strings.ToLower(name)
	for k, v := range h {
		if strings.ToLower(k) == lname {
			return v
		}
	}
	return ""
}
