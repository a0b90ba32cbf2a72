package backend

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
)

// OrphanSet lists owner-tagged resources found in a region.
type OrphanSet struct {
	InstanceIDs      []string
	SecurityGroupIDs []string
	KeyPairNames     []string
}

// Empty reports whether there is nothing to reclaim.
func (o OrphanSet) Empty() bool {
	return len(o.InstanceIDs) == 0 && len(o.SecurityGroupIDs) == 0 && len(o.KeyPairNames) == 0
}

// Len is the total number of resources in the set.
func (o OrphanSet) Len() int {
	return len(o.InstanceIDs) + len(o.SecurityGroupIDs) + len(o.KeyPairNames)
}

// liveInstanceStates are the states in which an instance still exists and
// may still bill.
var liveInstanceStates = []string{
	string(types.InstanceStateNamePending),
	string(types.InstanceStateNameRunning),
	string(types.InstanceStateNameStopping),
	string(types.InstanceStateNameStopped),
}

// FindTaggedResources returns every instance, security group, and key pair
// in the region carrying the owner tag.
func (c *Client) FindTaggedResources(ctx context.Context) (OrphanSet, error) {
	log := clog.FromContext(ctx).With("region", c.region)
	var set OrphanSet

	instances := ec2.NewDescribeInstancesPaginator(c.api, &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			ownerFilter(),
			{Name: aws.String("instance-state-name"), Values: liveInstanceStates},
		},
	})
	for instances.HasMorePages() {
		page, err := instances.NextPage(ctx)
		if err != nil {
			return OrphanSet{}, classify("listing tagged instances", err)
		}
		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				if instance.InstanceId != nil {
					set.InstanceIDs = append(set.InstanceIDs, *instance.InstanceId)
				}
			}
		}
	}

	groups := ec2.NewDescribeSecurityGroupsPaginator(c.api, &ec2.DescribeSecurityGroupsInput{
		Filters: []types.Filter{ownerFilter()},
	})
	for groups.HasMorePages() {
		page, err := groups.NextPage(ctx)
		if err != nil {
			return OrphanSet{}, classify("listing tagged security groups", err)
		}
		for _, group := range page.SecurityGroups {
			if group.GroupId != nil {
				set.SecurityGroupIDs = append(set.SecurityGroupIDs, *group.GroupId)
			}
		}
	}

	// 'DescribeKeyPairs' does not paginate.
	keys, err := c.api.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{
		Filters: []types.Filter{ownerFilter()},
	})
	if err != nil {
		return OrphanSet{}, classify("listing tagged key pairs", err)
	}
	for _, key := range keys.KeyPairs {
		if key.KeyName != nil {
			set.KeyPairNames = append(set.KeyPairNames, *key.KeyName)
		}
	}

	log.Debug("found tagged resources",
		"instances", len(set.InstanceIDs),
		"security_groups", len(set.SecurityGroupIDs),
		"key_pairs", len(set.KeyPairNames),
	)
	return set, nil
}
