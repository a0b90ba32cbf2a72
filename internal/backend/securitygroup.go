package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/region-proxy/internal/errs"
	"github.com/chainguard-dev/region-proxy/internal/retry"
	"github.com/google/uuid"
)

const securityGroupDescription = "Temporary security group for region-proxy SSH access"

// CreateSecurityGroup creates an empty, owner-tagged security group in the
// region's default VPC.
func (c *Client) CreateSecurityGroup(ctx context.Context) (string, error) {
	log := clog.FromContext(ctx)
	name := resourcePrefix + "-" + uuid.NewString()

	result, err := c.api.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:         aws.String(name),
		Description:       aws.String(securityGroupDescription),
		TagSpecifications: tagSpecification(types.ResourceTypeSecurityGroup, tagName(name)),
	})
	if err != nil {
		return "", classify("creating security group", err)
	}
	if result.GroupId == nil {
		return "", fmt.Errorf("%w: created security group has no ID", errs.ErrBackendRejected)
	}

	log.Info("created security group", "id", *result.GroupId, "name", name)
	return *result.GroupId, nil
}

// AuthorizeIngress opens TCP 'port' on the group to the IPv4 range 'cidr'.
func (c *Client) AuthorizeIngress(ctx context.Context, groupID string, port int32, cidr string) error {
	if err := ipv4Prefix(cidr); err != nil {
		return errs.Wrap(errs.ErrInvalidConfig, "authorizing ingress", err)
	}
	_, err := c.api.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:    aws.String(groupID),
		IpProtocol: aws.String("tcp"),
		FromPort:   aws.Int32(port),
		ToPort:     aws.Int32(port),
		CidrIp:     aws.String(cidr),
	})
	if err != nil {
		return classify("authorizing ingress", err)
	}
	clog.FromContext(ctx).Info("authorized ingress", "id", groupID, "port", port, "from", cidr)
	return nil
}

// DeleteSecurityGroup deletes the group, retrying while the backend still
// considers it in use. A group that no longer exists fails immediately with
// 'errs.ErrNotFound'.
func (c *Client) DeleteSecurityGroup(ctx context.Context, groupID string) error {
	log := clog.FromContext(ctx).With("id", groupID)
	log.Info("deleting security group")

	err := retry.Do(ctx, c.policies.DeleteGroup, func(ctx context.Context) error {
		_, err := c.api.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
			GroupId: aws.String(groupID),
		})
		if err == nil {
			return nil
		}
		err = classify("deleting security group", err)
		if errors.Is(err, errs.ErrNotFound) {
			return retry.Stop(err)
		}
		log.Debug("security group delete failed, may still be in use", "error", err)
		return err
	})
	if err != nil {
		return err
	}

	log.Info("security group deleted")
	return nil
}
