// internal/domain/plan/entity.go
package plan

import (
	"time"

	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/money"
)

// DefaultPeriod is the renewal period every plan carries unless configured otherwise.
const DefaultPeriod = 30 * 24 * time.Hour

type Plan struct {
	ID          uint64          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Price       money.Amount    `json:"price" db:"price"`
	Description string          `json:"description" db:"description"`
	Creator     account.Address `json:"creator" db:"creator"`
	IsActive    bool            `json:"is_active" db:"is_active"`

	// Period is the length of one paid renewal period.
	Period time.Duration `json:"-" db:"period_seconds"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PeriodSeconds returns the renewal period in whole seconds.
func (p *Plan) PeriodSeconds() uint64 {
	return uint64(p.Period / time.Second)
}

// Default describes a catalog entry seeded into an empty registry.
type Default struct {
	Name        string
	Price       money.Amount
	Description string
}

// Defaults is the launch catalog.
var Defaults = []Default{
	{Name: "DeFi Analytics Pro", Price: money.MustParse("29.99"), Description: "Advanced DeFi analytics and portfolio tracking"},
	{Name: "Web3 Gaming Hub", Price: money.MustParse("19.99"), Description: "Premium gaming features and exclusive NFT drops"},
	{Name: "NFT Marketplace Plus", Price: money.MustParse("39.99"), Description: "Advanced NFT trading tools and market insights"},
}
