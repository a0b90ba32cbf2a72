package backend

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/region-proxy/internal/errs"
)

const (
	imageOwner       = "amazon"
	imageNamePattern = "al2023-ami-2023.*-%s"
)

// FindLatestImage returns the most recently created Amazon Linux 2023 image
// for 'arch'.
func (c *Client) FindLatestImage(ctx context.Context, arch Arch) (string, error) {
	log := clog.FromContext(ctx).With("arch", arch)
	log.Debug("finding latest Amazon Linux 2023 image")

	result, err := c.api.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{imageOwner},
		Filters: []types.Filter{
			{Name: aws.String("name"), Values: []string{fmt.Sprintf(imageNamePattern, arch)}},
			{Name: aws.String("state"), Values: []string{"available"}},
			{Name: aws.String("architecture"), Values: []string{string(arch)}},
		},
	})
	if err != nil {
		return "", classify("describing images", err)
	}
	if len(result.Images) == 0 {
		return "", fmt.Errorf("%w: no Amazon Linux 2023 image for architecture %s", errs.ErrNotFound, arch)
	}

	// 'CreationDate' is ISO 8601, so lexical order is chronological order.
	latest := slices.MaxFunc(result.Images, func(a, b types.Image) int {
		return strings.Compare(aws.ToString(a.CreationDate), aws.ToString(b.CreationDate))
	})
	if latest.ImageId == nil {
		return "", fmt.Errorf("%w: latest image has no ID", errs.ErrNotFound)
	}

	log.Info("found image", "id", *latest.ImageId, "created", aws.ToString(latest.CreationDate))
	return *latest.ImageId, nil
}
