package billing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/DukeRupert/podforge/internal/domain"
)

// PriceConfig holds the Stripe price IDs for each paid plan.
type PriceConfig struct {
	ProMonthlyPriceID        string
	ProYearlyPriceID         string
	EnterpriseMonthlyPriceID string
	EnterpriseYearlyPriceID  string
}

// Checkout options accepted from clients.
const (
	OptionPro              = "Pro"
	OptionProAnnual        = "Pro-annual"
	OptionEnterprise       = "Enterprise"
	OptionEnterpriseAnnual = "Enterprise-annual"
)

// PriceFor maps a checkout option to its price id and plan.
func (c PriceConfig) PriceFor(option string) (string, domain.Plan, error) {
	var priceID string
	var plan domain.Plan

	switch strings.TrimSpace(option) {
	case OptionPro:
		priceID, plan = c.ProMonthlyPriceID, domain.PlanPro
	case OptionProAnnual:
		priceID, plan = c.ProYearlyPriceID, domain.PlanPro
	case OptionEnterprise:
		priceID, plan = c.EnterpriseMonthlyPriceID, domain.PlanEnterprise
	case OptionEnterpriseAnnual:
		priceID, plan = c.EnterpriseYearlyPriceID, domain.PlanEnterprise
	default:
		return "", "", domain.Invalid("PriceConfig.PriceFor", fmt.Sprintf("unknown plan option %q", option))
	}
	if priceID == "" {
		return "", "", domain.Invalid("PriceConfig.PriceFor", fmt.Sprintf("plan option %q is not available", option))
	}
	return priceID, plan, nil
}

func (c PriceConfig) planByPrice() map[string]domain.Plan {
	m := make(map[string]domain.Plan)
	for id, plan := range map[string]domain.Plan{
		c.ProMonthlyPriceID:        domain.PlanPro,
		c.ProYearlyPriceID:         domain.PlanPro,
		c.EnterpriseMonthlyPriceID: domain.PlanEnterprise,
		c.EnterpriseYearlyPriceID:  domain.PlanEnterprise,
	} {
		if id != "" {
			m[id] = plan
		}
	}
	return m
}

// ProductNamer looks up a product's display name.
type ProductNamer interface {
	ProductName(ctx context.Context, productID string) (string, error)
}

// DefaultPlanCacheSize bounds the product → plan cache.
const DefaultPlanCacheSize = 128

// PlanResolver maps a subscription's price to a plan. Configured price ids
// win; otherwise the product name is fetched once and cached.
type PlanResolver struct {
	byPrice map[string]domain.Plan
	namer   ProductNamer
	cache   *lru.Cache[string, domain.Plan]
	logger  *slog.Logger
}

// NewPlanResolver creates a resolver. namer may be nil, in which case only
// configured price ids resolve.
func NewPlanResolver(prices PriceConfig, namer ProductNamer, size int, logger *slog.Logger) (*PlanResolver, error) {
	if size <= 0 {
		size = DefaultPlanCacheSize
	}
	cache, err := lru.New[string, domain.Plan](size)
	if err != nil {
		return nil, fmt.Errorf("create plan cache: %w", err)
	}
	return &PlanResolver{
		byPrice: prices.planByPrice(),
		namer:   namer,
		cache:   cache,
		logger:  logger,
	}, nil
}

// Resolve returns the plan for the given price and product.
func (r *PlanResolver) Resolve(ctx context.Context, priceID, productID string) (domain.Plan, error) {
	const op = "PlanResolver.Resolve"

	if plan, ok := r.byPrice[priceID]; ok {
		return plan, nil
	}
	if productID == "" || r.namer == nil {
		return "", domain.Invalid(op, fmt.Sprintf("unknown price %q", priceID))
	}
	if plan, ok := r.cache.Get(productID); ok {
		return plan, nil
	}

	name, err := r.namer.ProductName(ctx, productID)
	if err != nil {
		return "", domain.Unavailable(err, op, "failed to look up product")
	}
	plan, ok := domain.ParsePlan(name)
	if !ok || !plan.IsPaid() {
		return "", domain.Invalid(op, fmt.Sprintf("product %q does not name a paid plan", name))
	}

	r.cache.Add(productID, plan)
	r.logger.Debug("resolved plan from product", "product_id", productID, "product_name", name, "plan", plan)
	return plan, nil
}
