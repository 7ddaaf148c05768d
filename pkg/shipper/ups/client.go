// Package ups provides integration with the UPS Rating API.
package ups

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/ratebridge/pkg/shipper"
	"github.com/tournevent/ratebridge/pkg/shipper/oauth"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	carrierName = "ups"

	// ProductionBaseURL and SandboxBaseURL are the UPS API hosts.
	ProductionBaseURL = "https://onlinetools.ups.com"
	SandboxBaseURL    = "https://wwwcie.ups.com"

	tokenPath          = "/security/v1/oauth/token"
	statusCodeSuccess  = "1"
	defaultAPIVersion  = "v2403"
	defaultRequestOpt  = "Shoptimeintransit"
	defaultTransSource = "ratebridge"
)

// Config holds UPS configuration.
type Config struct {
	ClientID           string
	ClientSecret       string
	AccountNumber      string
	BaseURL            string
	APIVersion         string // default v2403
	RequestOption      string // default Shoptimeintransit
	TransactionSource  string
	UseNegotiatedRates bool // default for requests that do not say
	RequestTimeout     time.Duration
	TokenRefreshBuffer time.Duration // zero or negative means 300s
	DefaultCurrency    shipper.Currency

	// OnTokenRefresh, when set, observes every token refresh.
	OnTokenRefresh func(d time.Duration, err error)
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = ProductionBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.APIVersion == "" {
		c.APIVersion = defaultAPIVersion
	}
	if c.RequestOption == "" {
		c.RequestOption = defaultRequestOpt
	}
	if c.TransactionSource == "" {
		c.TransactionSource = defaultTransSource
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.TokenRefreshBuffer <= 0 {
		c.TokenRefreshBuffer = oauth.DefaultRefreshBuffer
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = shipper.CurrencyUSD
	}
	return c
}

// TokenProvider supplies bearer tokens for UPS calls.
type TokenProvider interface {
	GetToken(ctx context.Context) (oauth.Token, error)
	ClearCache()
}

// Client is the UPS shipper client.
// It implements the shipper.Shipper interface, authenticating through a
// shared token cache and sending requests through the injected transport.
type Client struct {
	config    Config
	transport shipper.Transport
	tokens    TokenProvider
	mapper    *ResponseMapper
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new UPS client whose tokens come from the client-credentials
// grant against cfg.BaseURL.
func New(cfg Config, transport shipper.Transport, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	cfg = cfg.withDefaults()

	fetcher := &oauth.ClientCredentials{
		Carrier:      carrierName,
		TokenURL:     cfg.BaseURL + tokenPath,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Transport:    transport,
	}
	if cfg.AccountNumber != "" {
		fetcher.Header = http.Header{}
		fetcher.Header.Set("x-merchant-id", cfg.AccountNumber)
	}
	tokens := oauth.NewCache(oauth.Config{
		Carrier:       carrierName,
		RefreshBuffer: cfg.TokenRefreshBuffer,
		Timeout:       cfg.RequestTimeout,
		OnRefresh:     cfg.OnTokenRefresh,
	}, fetcher, logger)

	return NewWithTokenProvider(cfg, transport, tokens, logger, tracer)
}

// NewWithTokenProvider creates a new UPS client with a custom token source.
// This is useful for injecting fakes in tests.
func NewWithTokenProvider(cfg Config, transport shipper.Transport, tokens TokenProvider, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/ratebridge/pkg/shipper/ups")
	}
	return &Client{
		config:    cfg,
		transport: transport,
		tokens:    tokens,
		mapper:    NewResponseMapper(cfg.DefaultCurrency, logger),
		logger:    logger,
		tracer:    tracer,
	}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return carrierName
}

// Rate shops every UPS service for the shipment.
//
// The token is acquired before the rating call is issued. Transport failures
// and non-2xx answers are classified; a 200 answer whose embedded status is
// not successful is reported as a carrier API error.
func (c *Client) Rate(ctx context.Context, req *shipper.RateRequest) (*shipper.RateResult, error) {
	ctx, span := c.tracer.Start(ctx, "ups.Rate", trace.WithAttributes(
		attribute.String("carrier", carrierName),
		attribute.Int("package_count", len(req.Packages)),
	))
	defer span.End()

	c.logger.Ctx(ctx).Info("Getting UPS rates",
		zap.String("origin_country", req.Origin.CountryCode),
		zap.String("destination_country", req.Destination.CountryCode),
		zap.Int("package_count", len(req.Packages)),
	)

	opts := c.mergeOptions(req.Options)

	tok, err := c.tokens.GetToken(ctx)
	if err != nil {
		return nil, c.fail(ctx, span, err)
	}

	transID := uuid.NewString()
	body, err := json.Marshal(c.buildRateRequest(req, opts, transID))
	if err != nil {
		return nil, c.fail(ctx, span, shipper.NewCarrierAPIError(carrierName, "encoding rate request", 0, "").WithCause(err))
	}

	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	header := http.Header{}
	header.Set("Authorization", tokenType+" "+tok.AccessToken)
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	header.Set("transId", transID)
	header.Set("transactionSrc", c.config.TransactionSource)

	resp, err := c.transport.Send(ctx, &shipper.Request{
		Method:  http.MethodPost,
		URL:     c.rateURL(),
		Header:  header,
		Body:    body,
		Timeout: c.config.RequestTimeout,
	})
	if err != nil || !resp.OK() {
		classified := shipper.Classify(carrierName, resp, err)
		if classified.Kind == shipper.KindAuthentication {
			// The token was rejected; make the next call authenticate again.
			c.tokens.ClearCache()
		}
		return nil, c.fail(ctx, span, classified.WithContext("trans_id", transID))
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	var envelope RateResponseEnvelope
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, c.fail(ctx, span, shipper.NewCarrierAPIError(carrierName,
			"malformed rate response", resp.StatusCode, string(resp.Body)).WithCause(err))
	}

	if status := envelope.RateResponse.Response.ResponseStatus; status.Code != statusCodeSuccess {
		msg := status.Description
		if msg == "" {
			msg = fmt.Sprintf("rate request failed with response status %q", status.Code)
		}
		return nil, c.fail(ctx, span, shipper.NewCarrierAPIError(carrierName, msg, resp.StatusCode, string(resp.Body)).
			WithContext("response_status_code", status.Code).
			WithContext("trans_id", transID))
	}

	result := c.mapper.Map(ctx, &envelope.RateResponse, req)
	span.SetAttributes(attribute.Int("quote_count", len(result.Quotes)))
	return result, nil
}

// CreateLabel is not supported yet.
func (c *Client) CreateLabel(ctx context.Context, req *shipper.LabelRequest) (*shipper.LabelResponse, error) {
	return nil, shipper.NewNotImplementedError(carrierName, "createLabel")
}

// Track is not supported yet.
func (c *Client) Track(ctx context.Context, req *shipper.TrackRequest) (*shipper.TrackResponse, error) {
	return nil, shipper.NewNotImplementedError(carrierName, "track")
}

func (c *Client) rateURL() string {
	return fmt.Sprintf("%s/api/rating/%s/%s", c.config.BaseURL, c.config.APIVersion, c.config.RequestOption)
}

func (c *Client) fail(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.logger.Ctx(ctx).Error("UPS API error",
		zap.String("error_kind", string(shipper.KindOf(err))),
		zap.Error(err),
	)
	return err
}

var _ shipper.Shipper = (*Client)(nil)
