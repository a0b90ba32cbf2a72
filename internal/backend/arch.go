package backend

import "strings"

// Arch is a processor architecture as named by EC2 image metadata.
type Arch string

const (
	ArchX86_64 Arch = "x86_64"
	ArchARM64  Arch = "arm64"
)

// armFamilies lists the Graviton instance families region-proxy knows about.
var armFamilies = []string{"t4g", "m7g", "c7g"}

// ArchitectureFor infers the architecture of 'instanceType' from its family
// prefix. Unknown families are assumed to be x86_64.
//
// This is a name heuristic; an authoritative answer would come from
// 'DescribeInstanceTypes' ('ProcessorInfo.SupportedArchitectures').
func ArchitectureFor(instanceType string) Arch {
	for _, family := range armFamilies {
		if strings.HasPrefix(instanceType, family) {
			return ArchARM64
		}
	}
	return ArchX86_64
}
