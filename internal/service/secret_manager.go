package service

import (
	"context"
	"fmt"
	"strings"

	"edupro/internal/config"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

type SecretManagerService interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

type secretManagerService struct {
	client    *secretmanager.Client
	projectID string
}

func NewSecretManagerService(ctx context.Context, cfg *config.Config) (SecretManagerService, error) {
	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("GCP Project ID is not set")
	}

	client, err := secretmanager.NewClient(ctx, option.WithUserAgent("edupro"))
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}

	return &secretManagerService{
		client:    client,
		projectID: cfg.GCPProjectID,
	}, nil
}

// GetSecret reads the latest version of the named secret.
func (s *secretManagerService) GetSecret(ctx context.Context, name string) (string, error) {
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name)
	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: resourceName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret version: %w", err)
	}
	return string(result.Payload.Data), nil
}

// ResolveAdminCredentials takes the admin PIN from Secret Manager when
// ADMIN_PIN_SECRET is set and from the environment otherwise.
func ResolveAdminCredentials(ctx context.Context, cfg *config.Config, secrets SecretManagerService) (AdminCredentials, error) {
	creds := AdminCredentials{Email: cfg.AdminEmail, PIN: cfg.AdminPIN}
	if cfg.AdminPINSecret == "" {
		return creds, nil
	}
	if secrets == nil {
		return AdminCredentials{}, fmt.Errorf("secret manager is required to read %s", cfg.AdminPINSecret)
	}
	pin, err := secrets.GetSecret(ctx, cfg.AdminPINSecret)
	if err != nil {
		return AdminCredentials{}, fmt.Errorf("failed to resolve admin PIN: %w", err)
	}
	creds.PIN = strings.TrimSpace(pin)
	if creds.PIN == "" {
		return AdminCredentials{}, fmt.Errorf("admin PIN secret %s is empty", cfg.AdminPINSecret)
	}
	return creds, nil
}
