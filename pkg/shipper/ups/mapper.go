package ups

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tournevent/ratebridge/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// ResponseMapper converts UPS rating answers into shipper.RateResult values.
// Bad fields in a rated shipment degrade to defaults; they never fail the
// whole mapping.
type ResponseMapper struct {
	defaultCurrency shipper.Currency
	logger          *otelzap.Logger
	now             func() time.Time
	newID           func() string
}

// NewResponseMapper creates a mapper that substitutes defaultCurrency for
// unrecognised currency codes.
func NewResponseMapper(defaultCurrency shipper.Currency, logger *otelzap.Logger) *ResponseMapper {
	if defaultCurrency == "" {
		defaultCurrency = shipper.CurrencyUSD
	}
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	return &ResponseMapper{
		defaultCurrency: defaultCurrency,
		logger:          logger,
		now:             time.Now,
		newID:           uuid.NewString,
	}
}

// Map builds the rate result for req from a successful rating answer.
// Quotes are sorted ascending by total price; equal prices keep UPS order.
func (m *ResponseMapper) Map(ctx context.Context, resp *RateResponse, req *shipper.RateRequest) *shipper.RateResult {
	quotes := make([]shipper.RateQuote, 0, len(resp.RatedShipment))
	for i := range resp.RatedShipment {
		quotes = append(quotes, m.mapQuote(ctx, &resp.RatedShipment[i]))
	}
	sortQuotes(quotes)

	return &shipper.RateResult{
		RequestID:       m.newID(),
		Carrier:         carrierName,
		Timestamp:       m.now().UTC(),
		Quotes:          quotes,
		OriginalRequest: req,
	}
}

func sortQuotes(quotes []shipper.RateQuote) {
	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].TotalPrice.Amount.LessThan(quotes[j].TotalPrice.Amount)
	})
}

func (m *ResponseMapper) mapQuote(ctx context.Context, rs *RatedShipment) shipper.RateQuote {
	code := rs.Service.Code

	total := rs.TotalCharges
	if rs.NegotiatedRateCharges != nil && rs.NegotiatedRateCharges.TotalCharge != nil {
		total = rs.NegotiatedRateCharges.TotalCharge
	}
	if total == nil {
		m.logger.Ctx(ctx).Warn("UPS rated shipment has no total charge, using zero",
			zap.String("service_code", code),
		)
	}
	base := rs.TransportationCharges
	if rs.BaseServiceCharge != nil {
		base = rs.BaseServiceCharge
	}

	quote := shipper.RateQuote{
		Carrier:     carrierName,
		ServiceCode: code,
		ServiceName: serviceDisplayName(rs.Service),
		TotalPrice:  m.money(ctx, code, "total", total),
		BasePrice:   m.money(ctx, code, "base", base),
		Surcharges:  m.surcharges(ctx, code, rs.ItemizedCharges),
		Guaranteed:  rs.GuaranteedDelivery != nil,
	}

	var summary *ServiceSummary
	if rs.TimeInTransit != nil {
		summary = rs.TimeInTransit.ServiceSummary
	}
	if summary != nil {
		quote.SaturdayDelivery = isTruthy(summary.SaturdayDelivery)
		if arrival := summary.EstimatedArrival; arrival != nil {
			quote.TransitDays = parseTransitDays(arrival.BusinessDaysInTransit)
			if d, err := time.Parse("20060102", strings.TrimSpace(arrival.Arrival.Date)); err == nil {
				quote.EstimatedDeliveryDate = &d
			}
		}
	}
	if quote.TransitDays == nil && rs.GuaranteedDelivery != nil {
		quote.TransitDays = parseTransitDays(rs.GuaranteedDelivery.BusinessDaysInTransit)
	}

	return quote
}

func (m *ResponseMapper) surcharges(ctx context.Context, service string, charges []ItemizedCharge) []shipper.Surcharge {
	out := make([]shipper.Surcharge, 0, len(charges))
	for _, c := range charges {
		amount, err := decimal.NewFromString(strings.TrimSpace(c.MonetaryValue))
		if err != nil || !amount.IsPositive() {
			continue
		}
		desc := strings.TrimSpace(c.Description)
		if desc == "" {
			desc = c.Code
		}
		out = append(out, shipper.Surcharge{
			Code:        c.Code,
			Description: desc,
			Amount: shipper.Money{
				Amount:   amount,
				Currency: m.currency(ctx, service, c.CurrencyCode),
			},
		})
	}
	return out
}

func (m *ResponseMapper) money(ctx context.Context, service, field string, c *Charge) shipper.Money {
	if c == nil {
		return shipper.Money{Amount: decimal.Zero, Currency: m.defaultCurrency}
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(c.MonetaryValue))
	if err != nil {
		m.logger.Ctx(ctx).Warn("Unparseable UPS monetary value, using zero",
			zap.String("service_code", service),
			zap.String("field", field),
			zap.String("value", c.MonetaryValue),
		)
		amount = decimal.Zero
	}
	return shipper.Money{Amount: amount, Currency: m.currency(ctx, service, c.CurrencyCode)}
}

func (m *ResponseMapper) currency(ctx context.Context, service, code string) shipper.Currency {
	cur, err := shipper.ParseCurrency(code)
	if err != nil {
		m.logger.Ctx(ctx).Warn("Unrecognized UPS currency code, using default",
			zap.String("service_code", service),
			zap.String("currency_code", code),
			zap.String("default_currency", string(m.defaultCurrency)),
		)
		return m.defaultCurrency
	}
	return cur
}

func serviceDisplayName(svc CodeDescription) string {
	if desc := strings.TrimSpace(svc.Description); desc != "" {
		return desc
	}
	return ServiceName(svc.Code)
}

func parseTransitDays(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func isTruthy(flag string) bool {
	switch strings.TrimSpace(flag) {
	case "Y", "1":
		return true
	default:
		return false
	}
}
