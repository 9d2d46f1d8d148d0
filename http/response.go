package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"

	x402 "github.com/x402-foundation/x402-paygate"
	"github.com/x402-foundation/x402-paygate/paygate"
)

const (
	// HeaderPayment carries the client's payment payload
	HeaderPayment = paygate.HeaderPayment
	// HeaderPaymentResponse carries the base64 encoded settlement result
	HeaderPaymentResponse = "X-Payment-Response"
)

// SetPaymentResponseHeader writes the settlement result into h
func SetPaymentResponseHeader(h http.Header, settlement *x402.SettleResponse) error {
	value, err := x402.EncodeSettleResponseHeader(*settlement)
	if err != nil {
		return err
	}
	h.Set(HeaderPaymentResponse, value)
	h.Add("Access-Control-Expose-Headers", HeaderPaymentResponse)
	return nil
}

// IsWebBrowser reports whether r looks like a browser navigation rather than an API client
func IsWebBrowser(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html") &&
		strings.Contains(r.Header.Get("User-Agent"), "Mozilla")
}

// WritePaymentRequired renders a gate rejection as a 402 JSON response
func WritePaymentRequired(w http.ResponseWriter, pre *paygate.PaymentRequiredError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(pre.StatusCode())
	_ = json.NewEncoder(w).Encode(pre.Response)
}

// WritePaywall renders a gate rejection as a 402 HTML page
func WritePaywall(w http.ResponseWriter, page string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusPaymentRequired)
	_, _ = w.Write([]byte(page))
}

// WriteError renders a non-payment failure
func WriteError(w http.ResponseWriter, statusCode int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":       err.Error(),
		"x402Version": x402.X402Version,
	})
}

// DefaultPaywallHTML is served to browsers when no custom page is configured
func DefaultPaywallHTML(pre *paygate.PaymentRequiredError) string {
	return fmt.Sprintf("<html><body><h1>Payment Required</h1><p>%s</p></body></html>", html.EscapeString(pre.Response.Error))
}

// ResponseBuffer captures a handler's response so it can be discarded if
// settlement fails, or written out once settlement succeeds.
type ResponseBuffer struct {
	header     http.Header
	body       bytes.Buffer
	statusCode int
	written    bool
}

// NewResponseBuffer creates an empty buffer
func NewResponseBuffer() *ResponseBuffer {
	return &ResponseBuffer{
		header:     make(http.Header),
		statusCode: http.StatusOK,
	}
}

func (b *ResponseBuffer) Header() http.Header {
	return b.header
}

func (b *ResponseBuffer) WriteHeader(code int) {
	if !b.written {
		b.statusCode = code
		b.written = true
	}
}

func (b *ResponseBuffer) Write(p []byte) (int, error) {
	if !b.written {
		b.WriteHeader(http.StatusOK)
	}
	return b.body.Write(p)
}

func (b *ResponseBuffer) WriteString(s string) (int, error) {
	if !b.written {
		b.WriteHeader(http.StatusOK)
	}
	return b.body.WriteString(s)
}

// Flush does nothing. The response stays buffered until the payment is settled.
func (b *ResponseBuffer) Flush() {}

// StatusCode returns the status the handler chose
func (b *ResponseBuffer) StatusCode() int {
	return b.statusCode
}

// Written reports whether the handler wrote a status or body
func (b *ResponseBuffer) Written() bool {
	return b.written
}

// Size returns the number of buffered body bytes
func (b *ResponseBuffer) Size() int {
	return b.body.Len()
}

// Succeeded reports whether the handler's response counts as a success
func (b *ResponseBuffer) Succeeded() bool {
	return b.statusCode < http.StatusBadRequest
}

// FlushTo copies the buffered headers, status and body to w
func (b *ResponseBuffer) FlushTo(w http.ResponseWriter) error {
	dst := w.Header()
	for k, v := range b.header {
		dst[k] = v
	}
	w.WriteHeader(b.statusCode)
	_, err := w.Write(b.body.Bytes())
	return err
}
