package bitget

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCredentials is returned when any credential field is empty.
var ErrInvalidCredentials = errors.New("bitget: api key, secret key and passphrase are all required")

// Credentials holds the Bitget API credential triple. Immutable after construction.
type Credentials struct {
	APIKey     string
	SecretKey  string
	Passphrase string
}

// Authenticator signs requests and builds authenticated headers.
// It holds no mutable state and is safe for concurrent use.
type Authenticator struct {
	creds Credentials
}

// NewAuthenticator validates the credential triple and builds an authenticator.
func NewAuthenticator(creds Credentials) (*Authenticator, error) {
	if creds.APIKey == "" || creds.SecretKey == "" || creds.Passphrase == "" {
		return nil, ErrInvalidCredentials
	}
	return &Authenticator{creds: creds}, nil
}

// Timestamp returns the current epoch time in milliseconds as a string,
// the format Bitget expects in both REST headers and websocket login frames.
func (a *Authenticator) Timestamp() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// Sign computes the Bitget request signature:
// base64(hmac-sha256(secret, timestamp + UPPER(method) + requestPath + body)).
func (a *Authenticator) Sign(timestamp, method, requestPath, body string) string {
	payload := timestamp + strings.ToUpper(method) + requestPath + body
	mac := hmac.New(sha256.New, []byte(a.creds.SecretKey))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SetHeaders stamps the authentication headers onto a REST request.
func (a *Authenticator) SetHeaders(req *http.Request, timestamp, method, requestPath, body string) {
	req.Header.Set("ACCESS-KEY", a.creds.APIKey)
	req.Header.Set("ACCESS-SIGN", a.Sign(timestamp, method, requestPath, body))
	req.Header.Set("ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("ACCESS-PASSPHRASE", a.creds.Passphrase)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("locale", "en-US")
}

// LoginArgs builds the credential payload for a websocket login frame. The
// exchange verifies the same HMAC scheme over a fixed verification path.
func (a *Authenticator) LoginArgs() map[string]string {
	ts := a.Timestamp()
	return map[string]string{
		"apiKey":     a.creds.APIKey,
		"passphrase": a.creds.Passphrase,
		"timestamp":  ts,
		"sign":       a.Sign(ts, "GET", "/user/verify", ""),
	}
}
