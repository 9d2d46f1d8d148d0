// Package echo protects echo routes with an x402 payment gate.
package echo

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

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

// PaymentMiddleware gates echo handlers behind the configuration currently held by source.
// A handler that returns an error or a status of 400 or above is not charged.
func PaymentMiddleware(source paygate.Source, opts ...Options) echo.MiddlewareFunc {
	options := &PaymentMiddlewareOptions{Logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()
			resp := c.Response()
			gate := source.Load().Paygate(req.URL)

			var (
				buffer     *x402http.ResponseBuffer
				original   http.ResponseWriter
				handlerErr error
			)
			settlement, err := gate.Run(ctx, req.Header, func(s *x402.SettleResponse) bool {
				if s != nil {
					if err := x402http.SetPaymentResponseHeader(resp.Header(), s); err != nil {
						options.Logger.ErrorContext(ctx, "echo: failed to encode payment response", "error", err)
					}
					handlerErr = next(c)
					return true
				}

				buffer = x402http.NewResponseBuffer()
				original = resp.Writer
				resp.Writer = buffer
				handlerErr = next(c)
				resp.Writer = original

				return handlerErr == nil && buffer.Succeeded()
			})

			if err != nil {
				if buffer != nil {
					resetResponse(resp)
				}
				return respondWithRejection(c, err, options)
			}
			if buffer == nil {
				return handlerErr
			}

			if handlerErr != nil && !buffer.Written() {
				resetResponse(resp)
				return handlerErr
			}

			if settlement != nil {
				if err := x402http.SetPaymentResponseHeader(original.Header(), settlement); err != nil {
					options.Logger.ErrorContext(ctx, "echo: failed to encode payment response", "error", err)
				}
			}
			if err := buffer.FlushTo(original); err != nil {
				options.Logger.ErrorContext(ctx, "echo: failed to write response", "error", err)
			}
			return handlerErr
		}
	}
}

// resetResponse forgets what the handler wrote into the buffer
func resetResponse(resp *echo.Response) {
	resp.Committed = false
	resp.Status = 0
	resp.Size = 0
}

func respondWithRejection(c echo.Context, err error, options *PaymentMiddlewareOptions) error {
	pre, ok := paygate.AsPaymentRequired(err)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error":       err.Error(),
			"x402Version": x402.X402Version,
		})
	}

	if x402http.IsWebBrowser(c.Request()) {
		html := options.CustomPaywallHTML
		if html == "" {
			html = x402http.DefaultPaywallHTML(pre)
		}
		return c.HTML(http.StatusPaymentRequired, html)
	}

	return c.JSON(pre.StatusCode(), pre.Response)
}
