// Package nethttp protects net/http handlers with an x402 payment gate.
package nethttp

import (
	"log/slog"
	"net/http"

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

// WithCustomPaywallHTML sets the page served to browsers instead of the JSON 402 body.
func WithCustomPaywallHTML(html string) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.CustomPaywallHTML = html
	}
}

// WithLogger sets the logger used for response encoding failures.
func WithLogger(logger *slog.Logger) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.Logger = logger
	}
}

// PaymentMiddleware gates next behind the configuration currently held by source.
func PaymentMiddleware(source paygate.Source, opts ...Options) func(http.Handler) http.Handler {
	options := &PaymentMiddlewareOptions{Logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gate := source.Load().Paygate(r.URL)

			var buffer *x402http.ResponseBuffer
			settlement, err := gate.Run(r.Context(), r.Header, func(s *x402.SettleResponse) bool {
				if s != nil {
					if err := x402http.SetPaymentResponseHeader(w.Header(), s); err != nil {
						options.Logger.ErrorContext(r.Context(), "nethttp: failed to encode payment response", "error", err)
					}
					next.ServeHTTP(w, r)
					return true
				}

				buffer = x402http.NewResponseBuffer()
				next.ServeHTTP(buffer, r)
				return buffer.Succeeded()
			})

			if err != nil {
				writeRejection(w, r, err, options)
				return
			}
			if buffer == nil {
				return
			}

			if settlement != nil {
				if err := x402http.SetPaymentResponseHeader(w.Header(), settlement); err != nil {
					options.Logger.ErrorContext(r.Context(), "nethttp: failed to encode payment response", "error", err)
				}
			}
			if err := buffer.FlushTo(w); err != nil {
				options.Logger.ErrorContext(r.Context(), "nethttp: failed to write response", "error", err)
			}
		})
	}
}

func writeRejection(w http.ResponseWriter, r *http.Request, err error, options *PaymentMiddlewareOptions) {
	pre, ok := paygate.AsPaymentRequired(err)
	if !ok {
		x402http.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	if x402http.IsWebBrowser(r) {
		html := options.CustomPaywallHTML
		if html == "" {
			html = x402http.DefaultPaywallHTML(pre)
		}
		x402http.WritePaywall(w, html)
		return
	}

	x402http.WritePaymentRequired(w, pre)
}
