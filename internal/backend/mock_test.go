package backend

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/chainguard-dev/region-proxy/internal/retry"
)

// API operation names recorded by 'mockEC2Client'.
const (
	opDescribeImages                = "DescribeImages"
	opCreateSecurityGroup           = "CreateSecurityGroup"
	opAuthorizeSecurityGroupIngress = "AuthorizeSecurityGroupIngress"
	opDeleteSecurityGroup           = "DeleteSecurityGroup"
	opDescribeSecurityGroups        = "DescribeSecurityGroups"
	opImportKeyPair                 = "ImportKeyPair"
	opDeleteKeyPair                 = "DeleteKeyPair"
	opDescribeKeyPairs              = "DescribeKeyPairs"
	opRunInstances                  = "RunInstances"
	opDescribeInstances             = "DescribeInstances"
	opTerminateInstances            = "TerminateInstances"
)

// mockEC2Client is a mock implementation of the EC2 client for testing.
type mockEC2Client struct {
	describeImagesFunc                func(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
	createSecurityGroupFunc           func(ctx context.Context, params *ec2.CreateSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error)
	authorizeSecurityGroupIngressFunc func(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
	deleteSecurityGroupFunc           func(ctx context.Context, params *ec2.DeleteSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error)
	describeSecurityGroupsFunc        func(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	importKeyPairFunc                 func(ctx context.Context, params *ec2.ImportKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.ImportKeyPairOutput, error)
	deleteKeyPairFunc                 func(ctx context.Context, params *ec2.DeleteKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.DeleteKeyPairOutput, error)
	describeKeyPairsFunc              func(ctx context.Context, params *ec2.DescribeKeyPairsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error)
	runInstancesFunc                  func(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	describeInstancesFunc             func(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	terminateInstancesFunc            func(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)

	// Track operations for testing.
	mu         sync.Mutex
	operations []string
}

var _ API = (*mockEC2Client)(nil)

func (m *mockEC2Client) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations = append(m.operations, op)
}

func (m *mockEC2Client) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.operations {
		if o == op {
			n++
		}
	}
	return n
}

func (m *mockEC2Client) DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	m.record(opDescribeImages)
	if m.describeImagesFunc != nil {
		return m.describeImagesFunc(ctx, params, optFns...)
	}
	return &ec2.DescribeImagesOutput{}, nil
}

func (m *mockEC2Client) CreateSecurityGroup(ctx context.Context, params *ec2.CreateSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	m.record(opCreateSecurityGroup)
	if m.createSecurityGroupFunc != nil {
		return m.createSecurityGroupFunc(ctx, params, optFns...)
	}
	return &ec2.CreateSecurityGroupOutput{GroupId: aws.String("sg-0123456789abcdef0")}, nil
}

func (m *mockEC2Client) AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	m.record(opAuthorizeSecurityGroupIngress)
	if m.authorizeSecurityGroupIngressFunc != nil {
		return m.authorizeSecurityGroupIngressFunc(ctx, params, optFns...)
	}
	return &ec2.AuthorizeSecurityGroupIngressOutput{Return: aws.Bool(true)}, nil
}

func (m *mockEC2Client) DeleteSecurityGroup(ctx context.Context, params *ec2.DeleteSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
	m.record(opDeleteSecurityGroup)
	if m.deleteSecurityGroupFunc != nil {
		return m.deleteSecurityGroupFunc(ctx, params, optFns...)
	}
	return &ec2.DeleteSecurityGroupOutput{}, nil
}

func (m *mockEC2Client) DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	m.record(opDescribeSecurityGroups)
	if m.describeSecurityGroupsFunc != nil {
		return m.describeSecurityGroupsFunc(ctx, params, optFns...)
	}
	return &ec2.DescribeSecurityGroupsOutput{}, nil
}

func (m *mockEC2Client) ImportKeyPair(ctx context.Context, params *ec2.ImportKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.ImportKeyPairOutput, error) {
	m.record(opImportKeyPair)
	if m.importKeyPairFunc != nil {
		return m.importKeyPairFunc(ctx, params, optFns...)
	}
	return &ec2.ImportKeyPairOutput{
		KeyName:   params.KeyName,
		KeyPairId: aws.String("key-0123456789abcdef0"),
	}, nil
}

func (m *mockEC2Client) DeleteKeyPair(ctx context.Context, params *ec2.DeleteKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.DeleteKeyPairOutput, error) {
	m.record(opDeleteKeyPair)
	if m.deleteKeyPairFunc != nil {
		return m.deleteKeyPairFunc(ctx, params, optFns...)
	}
	return &ec2.DeleteKeyPairOutput{}, nil
}

func (m *mockEC2Client) DescribeKeyPairs(ctx context.Context, params *ec2.DescribeKeyPairsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error) {
	m.record(opDescribeKeyPairs)
	if m.describeKeyPairsFunc != nil {
		return m.describeKeyPairsFunc(ctx, params, optFns...)
	}
	return &ec2.DescribeKeyPairsOutput{}, nil
}

func (m *mockEC2Client) RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	m.record(opRunInstances)
	if m.runInstancesFunc != nil {
		return m.runInstancesFunc(ctx, params, optFns...)
	}
	return &ec2.RunInstancesOutput{
		Instances: []types.Instance{{InstanceId: aws.String("i-0123456789abcdef0")}},
	}, nil
}

func (m *mockEC2Client) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	m.record(opDescribeInstances)
	if m.describeInstancesFunc != nil {
		return m.describeInstancesFunc(ctx, params, optFns...)
	}
	return &ec2.DescribeInstancesOutput{}, nil
}

func (m *mockEC2Client) TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	m.record(opTerminateInstances)
	if m.terminateInstancesFunc != nil {
		return m.terminateInstancesFunc(ctx, params, optFns...)
	}
	return &ec2.TerminateInstancesOutput{}, nil
}

// testPolicies keeps every wait in the millisecond range.
func testPolicies() Policies {
	return Policies{
		Running:     retry.Policy{Attempts: 4, Interval: time.Millisecond},
		Settle:      0,
		Terminated:  retry.Policy{Attempts: 3, Interval: time.Millisecond},
		DeleteGroup: retry.Policy{Attempts: 5, Interval: time.Millisecond},
	}
}

func newTestClient(m *mockEC2Client) *Client {
	return NewFromAPI(m, "eu-west-1", WithPolicies(testPolicies()))
}

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func instanceIn(id string, state types.InstanceStateName, ip string) *ec2.DescribeInstancesOutput {
	instance := types.Instance{
		InstanceId: aws.String(id),
		State:      &types.InstanceState{Name: state},
	}
	if ip != "" {
		instance.PublicIpAddress = aws.String(ip)
	}
	return &ec2.DescribeInstancesOutput{
		Reservations: []types.Reservation{{Instances: []types.Instance{instance}}},
	}
}
