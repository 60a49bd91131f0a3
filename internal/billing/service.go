package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/sapliy/baas-integration/internal/apierror"
	"github.com/sapliy/baas-integration/internal/qitech"
	"github.com/sapliy/baas-integration/pkg/observability"
)

// Provider is the subset of the banking provider API the billing service
// uses.
type Provider interface {
	GetBillingConfiguration(ctx context.Context, accountKey string) (*qitech.BillingConfiguration, error)
	UpdateBillingConfiguration(ctx context.Context, cfg *qitech.BillingConfiguration) (*qitech.BillingConfiguration, error)
}

// Store is the persistence contract for configuration requests.
type Store interface {
	Create(ctx context.Context, cr *ConfigurationRequest) error
	UpdateStatus(ctx context.Context, id string, status RequestStatus) error
	ListPending(ctx context.Context) ([]*ConfigurationRequest, error)
}

// Service submits billing configuration changes and reconciles them
// against the provider's actual state.
type Service struct {
	store    Store
	provider Provider
	logger   *observability.Logger
}

func NewService(store Store, provider Provider, logger *observability.Logger) *Service {
	return &Service{store: store, provider: provider, logger: logger}
}

// RequestChange submits a configuration change and records it as pending
// until the reconcile job confirms it.
func (s *Service) RequestChange(ctx context.Context, cfg *qitech.BillingConfiguration) (*ConfigurationRequest, error) {
	if cfg.AccountKey == "" {
		return nil, apierror.Validation("account key is required")
	}

	resp, err := s.provider.UpdateBillingConfiguration(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("provider billing update failed: %w", err)
	}

	rawReq, err := json.Marshal(cfg)
	if err != nil {
		return nil, apierror.Wrap("failed to serialize request", err)
	}
	rawResp, err := json.Marshal(resp)
	if err != nil {
		return nil, apierror.Wrap("failed to serialize response", err)
	}

	cr := &ConfigurationRequest{
		AccountKey: cfg.AccountKey,
		Status:     StatusPending,
		Request:    rawReq,
		Response:   rawResp,
	}
	if err := s.store.Create(ctx, cr); err != nil {
		return nil, apierror.Wrap("failed to persist billing request", err)
	}

	s.logger.WithContext(ctx).Info("billing change submitted", "account_key", cfg.AccountKey)
	return cr, nil
}

// GetConfiguration fetches the provider's current configuration for an
// account.
func (s *Service) GetConfiguration(ctx context.Context, accountKey string) (*qitech.BillingConfiguration, error) {
	cfg, err := s.provider.GetBillingConfiguration(ctx, accountKey)
	if err != nil {
		if qitech.IsNotFound(err) {
			return nil, apierror.NotFound("no billing configuration for account " + accountKey)
		}
		return nil, fmt.Errorf("provider billing fetch failed: %w", err)
	}
	return cfg, nil
}

// Reconcile confirms pending requests against the provider's actual
// configuration. It runs daily; failures are logged and retried on the
// next run.
func (s *Service) Reconcile(ctx context.Context) {
	pending, err := s.store.ListPending(ctx)
	if err != nil {
		s.logger.WithContext(ctx).Error("failed to list pending billing requests", "error", err.Error())
		return
	}

	for _, cr := range pending {
		applied, err := s.confirm(ctx, cr)
		if err != nil {
			s.logger.WithContext(ctx).Error("billing reconcile failed",
				"id", cr.ID, "account_key", cr.AccountKey, "error", err.Error())
			continue
		}
		if !applied {
			continue
		}
		if err := s.store.UpdateStatus(ctx, cr.ID, StatusApplied); err != nil {
			s.logger.WithContext(ctx).Error("failed to mark billing request applied",
				"id", cr.ID, "error", err.Error())
			continue
		}
		s.logger.WithContext(ctx).Info("billing change confirmed",
			"id", cr.ID, "account_key", cr.AccountKey)
	}
}

func (s *Service) confirm(ctx context.Context, cr *ConfigurationRequest) (bool, error) {
	var requested qitech.BillingConfiguration
	if err := json.Unmarshal(cr.Request, &requested); err != nil {
		return false, fmt.Errorf("unreadable stored request: %w", err)
	}

	actual, err := s.provider.GetBillingConfiguration(ctx, cr.AccountKey)
	if err != nil {
		return false, err
	}

	if requested.Plan != "" && actual.Plan != requested.Plan {
		return false, nil
	}
	if len(requested.Configuration) > 0 && !reflect.DeepEqual(actual.Configuration, requested.Configuration) {
		return false, nil
	}
	return true, nil
}
