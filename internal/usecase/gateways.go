package usecase

import (
	"charity-billing/internal/domain"
	"charity-billing/internal/domain/model"
	"charity-billing/internal/domain/ports/adapter"
)

// Gateways holds the adapters constructed once at startup. A provider with
// no credentials is simply absent, which disables it.
type Gateways map[model.Provider]adapter.PaymentGateway

func (g Gateways) Pick(p model.Provider) (adapter.PaymentGateway, error) {
	gw, ok := g[p]
	if !ok {
		return nil, domain.ErrProviderNotConfigured
	}
	return gw, nil
}
