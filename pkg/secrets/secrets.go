// Package secrets loads sensitive configuration (signing keys, webhook
// secrets) from AWS Secrets Manager when an ARN is configured, so that key
// material never has to live in environment variables.
package secrets

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type Loader struct {
	client *secretsmanager.Client
}

func NewLoader(ctx context.Context) (*Loader, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Loader{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// GetString fetches the secret value identified by arn as a string.
func (l *Loader) GetString(ctx context.Context, arn string) (string, error) {
	out, err := l.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &arn,
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch secret %s: %w", arn, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", arn)
	}
	return *out.SecretString, nil
}
