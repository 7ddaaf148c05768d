package shipper_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/ratebridge/pkg/shipper"
	"github.com/tournevent/ratebridge/pkg/shipper/mock"
)

func sampleRequest() *shipper.RateRequest {
	return &shipper.RateRequest{
		Origin: shipper.Address{
			Name:        "Sender",
			Line1:       "123 Main St",
			City:        "Atlanta",
			StateCode:   "GA",
			PostalCode:  "30301",
			CountryCode: "US",
		},
		Destination: shipper.Address{
			Name:        "Receiver",
			Line1:       "456 Oak Ave",
			City:        "Seattle",
			StateCode:   "WA",
			PostalCode:  "98101",
			CountryCode: "US",
		},
		Packages: []shipper.Package{
			{Weight: 5, WeightUnit: shipper.WeightLB, Length: 10, Width: 10, Height: 10, DimensionUnit: shipper.DimensionIN},
		},
	}
}

func TestRegistry_Register(t *testing.T) {
	registry := shipper.NewRegistry()

	registry.Register(mock.New("test-shipper"))

	got, err := registry.Get("test-shipper")
	require.NoError(t, err, "shipper should be registered")
	assert.Equal(t, "test-shipper", got.Name())
}

func TestRegistry_Register_Override(t *testing.T) {
	registry := shipper.NewRegistry()

	registry.Register(mock.New("test-shipper"))
	assert.Equal(t, 1, registry.Count())

	// Register again with same name should override
	registry.Register(mock.New("test-shipper"))
	assert.Equal(t, 1, registry.Count())
}

func TestRegistry_Get_NotFound(t *testing.T) {
	registry := shipper.NewRegistry()

	_, err := registry.Get("nonexistent")
	assert.Error(t, err, "should return error for unregistered shipper")
	assert.True(t, errors.Is(err, shipper.ErrCarrierNotFound))
}

func TestRegistry_All_Sorted(t *testing.T) {
	registry := shipper.NewRegistry()

	registry.Register(mock.New("shipper-c"))
	registry.Register(mock.New("shipper-a"))
	registry.Register(mock.New("shipper-b"))

	all := registry.All()
	require.Len(t, all, 3)
	assert.Equal(t, "shipper-a", all[0].Name())
	assert.Equal(t, "shipper-b", all[1].Name())
	assert.Equal(t, "shipper-c", all[2].Name())
}

func TestRegistry_Names(t *testing.T) {
	registry := shipper.NewRegistry()

	registry.Register(mock.New("ups"))
	registry.Register(mock.New("fedex"))
	registry.Register(mock.New("dhl"))

	assert.Equal(t, []string{"dhl", "fedex", "ups"}, registry.Names())
}

func TestRegistry_Count(t *testing.T) {
	registry := shipper.NewRegistry()
	assert.Equal(t, 0, registry.Count())

	registry.Register(mock.New("shipper-a"))
	assert.Equal(t, 1, registry.Count())

	registry.Register(mock.New("shipper-b"))
	assert.Equal(t, 2, registry.Count())
}

func TestRegistry_RateAll(t *testing.T) {
	registry := shipper.NewRegistry()

	registry.Register(mock.New("ups"))
	registry.Register(mock.New("fedex"))

	results, errs := registry.RateAll(context.Background(), sampleRequest(), nil)

	assert.Empty(t, errs, "should have no errors from mock shippers")
	require.Len(t, results, 2, "should have results from both shippers")

	// Results follow carrier name order.
	assert.Equal(t, "fedex", results[0].Carrier)
	assert.Equal(t, "ups", results[1].Carrier)
	for _, result := range results {
		assert.NotEmpty(t, result.RequestID)
		assert.NotEmpty(t, result.Quotes)
	}
}

func TestRegistry_RateAll_EmptyRegistry(t *testing.T) {
	registry := shipper.NewRegistry()

	results, errs := registry.RateAll(context.Background(), sampleRequest(), nil)

	assert.Empty(t, results, "should return empty results for empty registry")
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], shipper.ErrCarrierNotFound))
}

func TestRegistry_RateAll_SelectedCarriers(t *testing.T) {
	registry := shipper.NewRegistry()

	registry.Register(mock.New("ups"))
	registry.Register(mock.New("fedex"))
	registry.Register(mock.New("dhl"))

	results, errs := registry.RateAll(context.Background(), sampleRequest(), []string{"ups", "dhl"})

	assert.Empty(t, errs)
	require.Len(t, results, 2)
	assert.Equal(t, "ups", results[0].Carrier)
	assert.Equal(t, "dhl", results[1].Carrier)
}

func TestRegistry_RateAll_NotFound(t *testing.T) {
	registry := shipper.NewRegistry()

	registry.Register(mock.New("ups"))

	results, errs := registry.RateAll(context.Background(), sampleRequest(), []string{"nonexistent"})

	assert.Len(t, results, 0)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], shipper.ErrCarrierNotFound))
}

func TestRegistry_RateAll_PartialFailure(t *testing.T) {
	registry := shipper.NewRegistry()

	failing := mock.New("broken")
	failing.OnRate = func(ctx context.Context, req *shipper.RateRequest) (*shipper.RateResult, error) {
		return nil, shipper.NewNetworkError("broken", "no response from carrier", false)
	}
	registry.Register(failing)
	registry.Register(mock.New("ups"))

	results, errs := registry.RateAll(context.Background(), sampleRequest(), nil)

	require.Len(t, results, 1)
	assert.Equal(t, "ups", results[0].Carrier)
	require.Len(t, errs, 1)
	assert.Equal(t, shipper.KindNetwork, shipper.KindOf(errs[0]))
	assert.Contains(t, errs[0].Error(), "broken")
}

func TestRegistry_RateAllObserved_TimesEachCarrier(t *testing.T) {
	registry := shipper.NewRegistry()

	slow := mock.New("slow")
	slow.OnRate = func(ctx context.Context, req *shipper.RateRequest) (*shipper.RateResult, error) {
		time.Sleep(200 * time.Millisecond)
		return &shipper.RateResult{Carrier: "slow"}, nil
	}
	registry.Register(slow)
	registry.Register(mock.New("fast"))

	var mu sync.Mutex
	elapsed := map[string]time.Duration{}
	outcomes := map[string]error{}
	observe := func(ctx context.Context, carrier string, d time.Duration, res *shipper.RateResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		elapsed[carrier] = d
		outcomes[carrier] = err
	}

	results, errs := registry.RateAllObserved(context.Background(), sampleRequest(), []string{"fast", "slow", "dhl"}, observe)

	require.Len(t, results, 2)
	require.Len(t, errs, 1)
	require.Len(t, elapsed, 3)
	assert.GreaterOrEqual(t, elapsed["slow"], 200*time.Millisecond)
	assert.Less(t, elapsed["fast"], 100*time.Millisecond, "a fast carrier is not charged for the slowest one")
	assert.NoError(t, outcomes["fast"])
	assert.ErrorIs(t, outcomes["dhl"], shipper.ErrCarrierNotFound)
}
