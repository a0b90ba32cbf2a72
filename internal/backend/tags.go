package backend

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

const (
	// TagKeyOwner and OwnerTag mark a resource as owned by region-proxy.
	TagKeyOwner = "CreatedBy"
	OwnerTag    = "region-proxy"

	tagKeyName = "Name"

	// resourcePrefix prefixes generated resource names.
	resourcePrefix = OwnerTag
)

// tagSpecification produces a tag specification for 'rt' carrying the owner
// tag followed by 'withTags'.
func tagSpecification(rt types.ResourceType, withTags ...types.Tag) []types.TagSpecification {
	return []types.TagSpecification{{
		ResourceType: rt,
		Tags:         append([]types.Tag{ownerTag()}, withTags...),
	}}
}

func ownerTag() types.Tag {
	return types.Tag{
		Key:   aws.String(TagKeyOwner),
		Value: aws.String(OwnerTag),
	}
}

func tagName(name string) types.Tag {
	return types.Tag{
		Key:   aws.String(tagKeyName),
		Value: aws.String(name),
	}
}

// ownerFilter matches resources carrying the owner tag.
func ownerFilter() types.Filter {
	return types.Filter{
		Name:   aws.String("tag:" + TagKeyOwner),
		Values: []string{OwnerTag},
	}
}
