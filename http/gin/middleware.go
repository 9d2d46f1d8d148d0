// Package gin protects gin routes with an x402 payment gate.
package gin

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	x402 "github.com/x402-foundation/x402-paygate"
	x402http "github.com/x402-foundation/x402-paygate/http"
	"github.com/x402-foundation/x402-paygate/paygate"
)

// PaymentMiddlewareOptions is the options for the PaymentMiddleware.
type PaymentMiddlewareOptions struct {
	CustomPaywallHTML string
	Logger            *slog.Logger
}

// Options is the type for the options for the PaymentMiddleware.
type Options func(*PaymentMiddlewareOptions)

// WithCustomPaywallHTML is an option for the PaymentMiddleware to set the custom paywall HTML.
func WithCustomPaywallHTML(customPaywallHTML string) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.CustomPaywallHTML = customPaywallHTML
	}
}

// WithLogger is an option for the PaymentMiddleware to set the logger.
func WithLogger(logger *slog.Logger) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.Logger = logger
	}
}

// PaymentMiddleware is the Gin middleware for the resource server using the x402 payment protocol.
// The configuration is read from source on every request, so it may be swapped at runtime.
func PaymentMiddleware(source paygate.Source, opts ...Options) gin.HandlerFunc {
	options := &PaymentMiddlewareOptions{Logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		gate := source.Load().Paygate(c.Request.URL)

		var writer *responseWriter
		settlement, err := gate.Run(ctx, c.Request.Header, func(s *x402.SettleResponse) bool {
			if s != nil {
				if err := x402http.SetPaymentResponseHeader(c.Writer.Header(), s); err != nil {
					options.Logger.ErrorContext(ctx, "gin: failed to encode payment response", "error", err)
				}
				c.Next()
				return true
			}

			// Create a custom response writer to intercept the response
			writer = newResponseWriter(c.Writer)
			c.Writer = writer
			c.Next()
			c.Writer = writer.ResponseWriter

			return writer.buffer.Succeeded()
		})

		if err != nil {
			abortWithRejection(c, err, options)
			return
		}
		if writer == nil {
			return
		}

		if settlement != nil {
			if err := x402http.SetPaymentResponseHeader(c.Writer.Header(), settlement); err != nil {
				options.Logger.ErrorContext(ctx, "gin: failed to encode payment response", "error", err)
			}
		}
		if err := writer.buffer.FlushTo(c.Writer); err != nil {
			options.Logger.ErrorContext(ctx, "gin: failed to write response", "error", err)
		}
	}
}

func abortWithRejection(c *gin.Context, err error, options *PaymentMiddlewareOptions) {
	pre, ok := paygate.AsPaymentRequired(err)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":       err.Error(),
			"x402Version": x402.X402Version,
		})
		return
	}

	if x402http.IsWebBrowser(c.Request) {
		html := options.CustomPaywallHTML
		if html == "" {
			html = x402http.DefaultPaywallHTML(pre)
		}
		c.Abort()
		c.Data(http.StatusPaymentRequired, "text/html; charset=utf-8", []byte(html))
		return
	}

	c.AbortWithStatusJSON(pre.StatusCode(), pre.Response)
}

// responseWriter is a custom response writer that captures the response
type responseWriter struct {
	gin.ResponseWriter
	buffer *x402http.ResponseBuffer
}

func newResponseWriter(w gin.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, buffer: x402http.NewResponseBuffer()}
}

func (w *responseWriter) Header() http.Header {
	return w.buffer.Header()
}

func (w *responseWriter) WriteHeader(code int) {
	w.buffer.WriteHeader(code)
}

func (w *responseWriter) WriteHeaderNow() {
	w.buffer.WriteHeader(w.buffer.StatusCode())
}

func (w *responseWriter) Write(b []byte) (int, error) {
	return w.buffer.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	return w.buffer.WriteString(s)
}

// Flush keeps gin from committing the status line before settlement
func (w *responseWriter) Flush() {
	w.buffer.Flush()
}

func (w *responseWriter) Status() int {
	return w.buffer.StatusCode()
}

func (w *responseWriter) Size() int {
	return w.buffer.Size()
}

func (w *responseWriter) Written() bool {
	return w.buffer.Written()
}
