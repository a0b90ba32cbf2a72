package backend

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/region-proxy/internal/sshkey"
	"github.com/google/uuid"
)

// CreateKeyPair generates an ED25519 key pair, imports its public half into
// EC2 under a fresh owner-tagged name, and returns that name along with the
// PEM-encoded private key.
func (c *Client) CreateKeyPair(ctx context.Context) (string, []byte, error) {
	log := clog.FromContext(ctx)
	name := resourcePrefix + "-" + uuid.NewString()

	keys, err := sshkey.New()
	if err != nil {
		return "", nil, fmt.Errorf("generating key pair: %w", err)
	}
	pubKey, err := keys.Public.AuthorizedKey()
	if err != nil {
		return "", nil, fmt.Errorf("marshaling public key: %w", err)
	}
	privKey, err := keys.Private.PEM(name)
	if err != nil {
		return "", nil, fmt.Errorf("marshaling private key: %w", err)
	}

	result, err := c.api.ImportKeyPair(ctx, &ec2.ImportKeyPairInput{
		KeyName:           aws.String(name),
		PublicKeyMaterial: pubKey,
		TagSpecifications: tagSpecification(types.ResourceTypeKeyPair, tagName(name)),
	})
	if err != nil {
		return "", nil, classify("importing key pair", err)
	}

	fingerprint, _ := keys.Public.Fingerprint()
	log.Info("imported key pair", "id", aws.ToString(result.KeyPairId), "name", name, "fingerprint", fingerprint)
	return name, privKey, nil
}

// DeleteKeyPair deletes the named key pair. Key material deletion is
// synchronous on the backend, so this is attempted once.
func (c *Client) DeleteKeyPair(ctx context.Context, name string) error {
	log := clog.FromContext(ctx).With("name", name)
	log.Info("deleting key pair")
	_, err := c.api.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{
		KeyName: aws.String(name),
	})
	if err != nil {
		return classify("deleting key pair", err)
	}
	log.Info("key pair deleted")
	return nil
}
