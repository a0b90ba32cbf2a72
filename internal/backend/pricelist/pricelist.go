// Package pricelist carries approximate us-east-1 Linux on-demand prices for
// the small instance types region-proxy is normally run on. Prices vary a
// little between regions; they are only used for estimates.
package pricelist

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// PriceList maps an instance type to its hourly on-demand price in USD.
type PriceList map[types.InstanceType]float64

var priceList = PriceList{
	types.InstanceTypeT4gNano:   0.0042,
	types.InstanceTypeT4gMicro:  0.0084,
	types.InstanceTypeT4gSmall:  0.0168,
	types.InstanceTypeT4gMedium: 0.0336,
	types.InstanceTypeT3Nano:    0.0052,
	types.InstanceTypeT3Micro:   0.0104,
	types.InstanceTypeT3Small:   0.0208,
	types.InstanceTypeT3Medium:  0.0416,
	types.InstanceTypeT3aNano:   0.0047,
	types.InstanceTypeT3aMicro:  0.0094,
	types.InstanceTypeM7gMedium: 0.0408,
	types.InstanceTypeC7gMedium: 0.0363,
}

// Lookup returns the hourly price of 'instanceType', if known.
func Lookup(instanceType types.InstanceType) (float64, bool) {
	price, ok := priceList[instanceType]
	return price, ok
}

// Estimate returns the cost of running 'instanceType' for 'd'. Partial hours
// are prorated, matching per-second billing.
func Estimate(instanceType types.InstanceType, d time.Duration) (float64, bool) {
	price, ok := Lookup(instanceType)
	if !ok || d < 0 {
		return 0, false
	}
	return price * d.Hours(), true
}
