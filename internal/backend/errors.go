package backend

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
	"github.com/chainguard-dev/region-proxy/internal/errs"
)

// classify wraps an EC2 API failure with its taxonomy kind. Error codes of
// the '*.NotFound' family ('InvalidInstanceID.NotFound',
// 'InvalidGroup.NotFound', 'InvalidKeyPair.NotFound', ...) become
// 'errs.ErrNotFound', everything else 'errs.ErrBackendRejected'.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && strings.HasSuffix(apiErr.ErrorCode(), ".NotFound") {
		return errs.Wrap(errs.ErrNotFound, op, err)
	}
	return errs.Wrap(errs.ErrBackendRejected, op, err)
}
