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
)

const instanceName = resourcePrefix + "-instance"

var (
	// ErrInstanceTerminated is returned when an instance being waited on
	// enters 'shutting-down' or 'terminated'.
	ErrInstanceTerminated        = fmt.Errorf("%w: instance terminated unexpectedly", errs.ErrBackendRejected)
	ErrInstanceCreateNoInstances = fmt.Errorf("%w: encountered no error during "+
		"instance launch, but no instance was actually created", errs.ErrBackendRejected)
)

// LaunchInstance launches a single owner-tagged instance.
func (c *Client) LaunchInstance(ctx context.Context, image, instanceType, groupID, keyName string) (string, error) {
	log := clog.FromContext(ctx).With("image", image, "type", instanceType)
	log.Info("launching instance")

	result, err := c.api.RunInstances(ctx, &ec2.RunInstancesInput{
		ImageId:          aws.String(image),
		InstanceType:     types.InstanceType(instanceType),
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		KeyName:          aws.String(keyName),
		SecurityGroupIds: []string{groupID},
		TagSpecifications: tagSpecification(
			types.ResourceTypeInstance,
			tagName(instanceName),
		),
	})
	if err != nil {
		return "", classify("launching instance", err)
	}
	if len(result.Instances) < 1 || result.Instances[0].InstanceId == nil {
		return "", ErrInstanceCreateNoInstances
	}

	id := *result.Instances[0].InstanceId
	log.Info("launched instance", "id", id)
	return id, nil
}

// describeInstance fetches a single instance. An instance missing from the
// response yields 'errs.ErrNotFound'.
func (c *Client) describeInstance(ctx context.Context, id string) (types.Instance, error) {
	result, err := c.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		return types.Instance{}, classify("describing instance", err)
	}
	for _, reservation := range result.Reservations {
		for _, instance := range reservation.Instances {
			if aws.ToString(instance.InstanceId) == id {
				return instance, nil
			}
		}
	}
	return types.Instance{}, fmt.Errorf("%w: instance %s", errs.ErrNotFound, id)
}

func instanceState(instance types.Instance) types.InstanceStateName {
	if instance.State == nil {
		return ""
	}
	return instance.State.Name
}

// WaitUntilRunning polls the instance until it is 'running' with a public IP
// assigned, then waits for the settle delay so that sshd inside the guest is
// up. It fails fast when the instance starts terminating.
//
// A freshly launched instance may briefly be unknown to 'DescribeInstances',
// so 'errs.ErrNotFound' keeps polling. Any other describe failure is returned
// immediately.
func (c *Client) WaitUntilRunning(ctx context.Context, id string) (string, error) {
	log := clog.FromContext(ctx).With("id", id)
	log.Info("waiting for instance to be running")

	ip, err := retry.Poll(ctx, c.policies.Running, func(ctx context.Context) (string, error) {
		instance, err := c.describeInstance(ctx, id)
		if errors.Is(err, errs.ErrNotFound) {
			return "", fmt.Errorf("%w: %w", retry.ErrPending, err)
		} else if err != nil {
			return "", err
		}

		state := instanceState(instance)
		switch state {
		case types.InstanceStateNameShuttingDown, types.InstanceStateNameTerminated:
			return "", fmt.Errorf("%w: instance %s is %s", ErrInstanceTerminated, id, state)
		case types.InstanceStateNameRunning:
			if ip := aws.ToString(instance.PublicIpAddress); ip != "" {
				return ip, nil
			}
			log.Debug("instance running but has no public IP yet")
		default:
			log.Debug("instance not running yet", "state", state)
		}
		return "", fmt.Errorf("%w: instance %s is %q", retry.ErrPending, id, state)
	})
	if err != nil {
		return "", err
	}

	log.Info("instance running, waiting for sshd to come up", "ip", ip, "settle", c.policies.Settle)
	if err := sleep(ctx, c.policies.Settle); err != nil {
		return "", err
	}
	return ip, nil
}

// TerminateInstance requests termination of the instance once.
func (c *Client) TerminateInstance(ctx context.Context, id string) error {
	clog.FromContext(ctx).Info("terminating instance", "id", id)
	_, err := c.api.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{id},
	})
	return classify("terminating instance", err)
}

// WaitUntilTerminated polls until the instance is 'terminated' or no longer
// known to the backend.
func (c *Client) WaitUntilTerminated(ctx context.Context, id string) error {
	log := clog.FromContext(ctx).With("id", id)
	_, err := retry.Poll(ctx, c.policies.Terminated, func(ctx context.Context) (struct{}, error) {
		instance, err := c.describeInstance(ctx, id)
		if errors.Is(err, errs.ErrNotFound) {
			return struct{}{}, nil
		} else if err != nil {
			return struct{}{}, err
		}
		if state := instanceState(instance); state != types.InstanceStateNameTerminated {
			log.Debug("instance still terminating, waiting longer", "state", state)
			return struct{}{}, fmt.Errorf("%w: instance %s is %q", retry.ErrPending, id, state)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}
	log.Info("instance termination complete")
	return nil
}
