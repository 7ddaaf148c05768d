package main

import (
	"context"

	"github.com/tournevent/ratebridge/internal/config"
	"github.com/tournevent/ratebridge/internal/telemetry"
	"github.com/tournevent/ratebridge/pkg/shipper"
	"github.com/tournevent/ratebridge/pkg/shipper/mock"
	"github.com/tournevent/ratebridge/pkg/shipper/ups"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return otel.Tracer(cfg.ServiceName), func(context.Context) error { return nil }, nil
	}

	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version, cfg.Attributes()...)
}

func initShipperRegistry(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer, metrics *telemetry.Metrics) *shipper.Registry {
	registry := shipper.NewRegistry()

	if tracer == nil {
		tracer = otel.Tracer(cfg.ServiceName)
	}

	// Register enabled carriers
	if cfg.UPSEnabled {
		if cfg.UPSUseMock {
			registry.Register(mock.New("ups"))
		} else {
			transport := shipper.NewHTTPTransport(shipper.HTTPTransportConfig{
				Timeout:   cfg.UPSRequestTimeout,
				UserAgent: cfg.ServiceName + "/" + cfg.Version,
			})
			registry.Register(ups.New(ups.Config{
				ClientID:           cfg.UPSClientID,
				ClientSecret:       cfg.UPSClientSecret,
				AccountNumber:      cfg.UPSAccountNumber,
				BaseURL:            cfg.UPSEndpoint(),
				APIVersion:         cfg.UPSAPIVersion,
				UseNegotiatedRates: cfg.UPSUseNegotiatedRates,
				RequestTimeout:     cfg.UPSRequestTimeout,
				TokenRefreshBuffer: cfg.UPSTokenRefreshBuffer,
				DefaultCurrency:    cfg.Currency(),
				OnTokenRefresh:     metrics.TokenRefreshObserver("ups"),
			}, transport, logger, tracer))
		}
	}

	return registry
}
