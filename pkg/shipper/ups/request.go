package ups

import (
	"strconv"
	"strings"

	"github.com/tournevent/ratebridge/pkg/shipper"
)

// defaultPackagingType is UPS "Customer Supplied Package".
const defaultPackagingType = "02"

// rateOptions are the caller's options merged with carrier defaults.
type rateOptions struct {
	negotiatedRates  bool
	saturdayDelivery bool
}

func (c *Client) mergeOptions(opts *shipper.RateOptions) rateOptions {
	merged := rateOptions{negotiatedRates: c.config.UseNegotiatedRates}
	if opts == nil {
		return merged
	}
	if opts.NegotiatedRates != nil {
		merged.negotiatedRates = *opts.NegotiatedRates
	}
	merged.saturdayDelivery = opts.SaturdayDelivery
	return merged
}

// buildRateRequest converts a domain rate request to the UPS wire shape.
func (c *Client) buildRateRequest(req *shipper.RateRequest, opts rateOptions, requestID string) *RateRequestEnvelope {
	shipment := Shipment{
		Shipper: Party{
			Name:          req.Origin.Name,
			ShipperNumber: c.config.AccountNumber,
			Address:       addressToAPI(req.Origin),
		},
		ShipFrom: Party{
			Name:    req.Origin.Name,
			Address: addressToAPI(req.Origin),
		},
		ShipTo: Party{
			Name:          req.Destination.Name,
			AttentionName: req.Destination.Company,
			Address:       addressToAPI(req.Destination),
		},
		Package: packagesToAPI(req.Packages),
		DeliveryTimeInformation: &DeliveryTimeInformation{
			PackageBillType: "03", // non-document
		},
	}

	if req.ShipDate != "" {
		shipment.DeliveryTimeInformation.Pickup = &Pickup{Date: strings.ReplaceAll(req.ShipDate, "-", "")}
	}
	if opts.negotiatedRates {
		shipment.ShipmentRatingOptions = &ShipmentRatingOptions{NegotiatedRatesIndicator: indicator()}
	}
	if opts.saturdayDelivery {
		shipment.ShipmentServiceOptions = &ShipmentServiceOptions{SaturdayDeliveryIndicator: indicator()}
	}

	return &RateRequestEnvelope{
		RateRequest: RateRequest{
			Request: RequestInfo{
				RequestOption:        c.config.RequestOption,
				TransactionReference: &TransactionReference{CustomerContext: requestID},
			},
			Shipment: shipment,
		},
	}
}

// indicator returns UPS's presence-only flag value.
func indicator() *string {
	s := ""
	return &s
}

func addressToAPI(addr shipper.Address) Address {
	var lines []string
	for _, l := range []string{addr.Line1, addr.Line2} {
		if l != "" {
			lines = append(lines, l)
		}
	}
	a := Address{
		AddressLine:       lines,
		City:              addr.City,
		StateProvinceCode: addr.StateCode,
		PostalCode:        addr.PostalCode,
		CountryCode:       addr.CountryCode,
	}
	if addr.Residential {
		a.ResidentialAddressIndicator = indicator()
	}
	return a
}

func packagesToAPI(pkgs []shipper.Package) []Package {
	result := make([]Package, len(pkgs))
	for i, p := range pkgs {
		packagingType := p.PackagingType
		if packagingType == "" {
			packagingType = defaultPackagingType
		}
		pkg := Package{
			PackagingType: CodeDescription{Code: packagingType},
			PackageWeight: PackageWeight{
				UnitOfMeasurement: CodeDescription{Code: weightUnitToAPI(p.WeightUnit)},
				Weight:            formatNumber(p.Weight),
			},
		}
		if p.Length > 0 && p.Width > 0 && p.Height > 0 {
			pkg.Dimensions = &Dimensions{
				UnitOfMeasurement: CodeDescription{Code: dimensionUnitToAPI(p.DimensionUnit)},
				Length:            formatNumber(p.Length),
				Width:             formatNumber(p.Width),
				Height:            formatNumber(p.Height),
			}
		}
		if p.DeclaredValue != nil {
			pkg.PackageOptions = &PackageOptions{
				DeclaredValue: &Charge{
					CurrencyCode:  string(p.DeclaredValue.Currency),
					MonetaryValue: p.DeclaredValue.Amount.StringFixed(2),
				},
			}
		}
		result[i] = pkg
	}
	return result
}

func weightUnitToAPI(u shipper.WeightUnit) string {
	if u == shipper.WeightKG {
		return "KGS"
	}
	return "LBS"
}

func dimensionUnitToAPI(u shipper.DimensionUnit) string {
	if u == shipper.DimensionCM {
		return "CM"
	}
	return "IN"
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
