package config

// Region is an AWS region region-proxy can run in.
type Region struct {
	Code        string
	Name        string
	SupportsARM bool
}

const (
	armInstanceType = "t4g.nano"
	x86InstanceType = "t3.nano"
)

// DefaultInstanceType is the cheapest burstable type for the region.
func (r Region) DefaultInstanceType() string {
	if r.SupportsARM {
		return armInstanceType
	}
	return x86InstanceType
}

var regions = []Region{
	// Asia Pacific
	{Code: "ap-northeast-1", Name: "Tokyo", SupportsARM: true},
	{Code: "ap-northeast-2", Name: "Seoul", SupportsARM: true},
	{Code: "ap-northeast-3", Name: "Osaka", SupportsARM: true},
	{Code: "ap-southeast-1", Name: "Singapore", SupportsARM: true},
	{Code: "ap-southeast-2", Name: "Sydney", SupportsARM: true},
	{Code: "ap-south-1", Name: "Mumbai", SupportsARM: true},

	// North America
	{Code: "us-east-1", Name: "N. Virginia", SupportsARM: true},
	{Code: "us-east-2", Name: "Ohio", SupportsARM: true},
	{Code: "us-west-1", Name: "N. California", SupportsARM: true},
	{Code: "us-west-2", Name: "Oregon", SupportsARM: true},

	// Europe
	{Code: "eu-west-1", Name: "Ireland", SupportsARM: true},
	{Code: "eu-west-2", Name: "London", SupportsARM: true},
	{Code: "eu-west-3", Name: "Paris", SupportsARM: true},
	{Code: "eu-central-1", Name: "Frankfurt", SupportsARM: true},
	{Code: "eu-north-1", Name: "Stockholm", SupportsARM: true},

	// South America
	{Code: "sa-east-1", Name: "São Paulo", SupportsARM: true},

	// Canada
	{Code: "ca-central-1", Name: "Canada", SupportsARM: true},
}

// Regions returns the region catalogue.
func Regions() []Region {
	out := make([]Region, len(regions))
	copy(out, regions)
	return out
}

// RegionCodes returns the code of every catalogued region.
func RegionCodes() []string {
	codes := make([]string, 0, len(regions))
	for _, r := range regions {
		codes = append(codes, r.Code)
	}
	return codes
}

// FindRegion looks a region up by code.
func FindRegion(code string) (Region, bool) {
	for _, r := range regions {
		if r.Code == code {
			return r, true
		}
	}
	return Region{}, false
}

// RegionName returns the display name of 'code', or 'code' itself when it
// is not catalogued.
func RegionName(code string) string {
	if r, ok := FindRegion(code); ok {
		return r.Name
	}
	return code
}
