// Package kms wraps key material at rest with Google Cloud KMS.
package kms

import (
	"context"
	"errors"
	"fmt"

	kms "cloud.google.com/go/kms/apiv1"
	kmspb "cloud.google.com/go/kms/apiv1/kmspb"
	"google.golang.org/api/option"

	"github.com/zoobzio/veil/keys"
)

// ErrNoKeyName is returned when no CryptoKey resource name is configured.
var ErrNoKeyName = errors.New("kms key name is required")

// Client implements keys.KMS over one Cloud KMS CryptoKey.
type Client struct {
	client  *kms.KeyManagementClient
	keyName string
}

var _ keys.KMS = (*Client)(nil)

// New creates a Client for keyName, a resource name of the form
// projects/*/locations/*/keyRings/*/cryptoKeys/*.
func New(ctx context.Context, keyName string, opts ...option.ClientOption) (*Client, error) {
	if keyName == "" {
		return nil, ErrNoKeyName
	}

	client, err := kms.NewKeyManagementClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating KMS client: %w", err)
	}

	return &Client{
		client:  client,
		keyName: keyName,
	}, nil
}

// WithCredentialsFile returns the client option for a service account file.
func WithCredentialsFile(path string) option.ClientOption {
	return option.WithCredentialsFile(path)
}

// KeyName returns the CryptoKey resource name.
func (c *Client) KeyName() string {
	return c.keyName
}

// Encrypt implements keys.KMS.
func (c *Client) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	resp, err := c.client.Encrypt(ctx, &kmspb.EncryptRequest{
		Name:      c.keyName,
		Plaintext: plaintext,
	})
	if err != nil {
		return nil, fmt.Errorf("encrypting: %w", err)
	}
	return resp.Ciphertext, nil
}

// Decrypt implements keys.KMS.
func (c *Client) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	resp, err := c.client.Decrypt(ctx, &kmspb.DecryptRequest{
		Name:       c.keyName,
		Ciphertext: ciphertext,
	})
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return resp.Plaintext, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}
