package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"account_manager/internal/domain"
	"account_manager/internal/pubkey"
)

// Gorm is the MySQL backend. Commits run inside one database transaction and
// guard every account row with its version column.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) Account(ctx context.Context, addr pubkey.Pubkey) (*domain.Account, error) {
	var a domain.Account
	if err := g.db.WithContext(ctx).Where("address = ?", addr).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (g *Gorm) Commit(ctx context.Context, accounts []*domain.Account, tx *domain.Transaction) error {
	return g.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		for _, a := range accounts {
			if a.Version == 0 {
				row := a.Clone()
				row.Version = 1
				res := dbtx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return ErrConflict // Someone created it first
				}
				continue
			}
			res := dbtx.Model(&domain.Account{}).
				Where("address = ? AND version = ?", a.Address, a.Version).
				Updates(map[string]any{
					"lamports": a.Lamports,
					"owner":    a.Owner,
					"data":     a.Data,
					"version":  a.Version + 1,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrConflict // Stale version
			}
		}
		if tx == nil {
			return nil
		}
		return dbtx.Create(tx).Error
	})
}

func (g *Gorm) Transactions(ctx context.Context, wallet pubkey.Pubkey, offset, limit int) ([]domain.Transaction, int64, error) {
	q := func() *gorm.DB {
		return g.db.WithContext(ctx).Model(&domain.Transaction{}).Where("wallet = ?", wallet)
	}
	var total int64
	if err := q().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var txs []domain.Transaction
	if err := q().Order("created_at desc").Order("id desc").Offset(offset).Limit(limit).Find(&txs).Error; err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

func (g *Gorm) Accounts(ctx context.Context, owner pubkey.Pubkey, offset, limit int) ([]domain.Account, int64, error) {
	q := func() *gorm.DB {
		return g.db.WithContext(ctx).Model(&domain.Account{}).Where("owner = ?", owner)
	}
	var total int64
	if err := q().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var accounts []domain.Account
	if err := q().Order("address").Offset(offset).Limit(limit).Find(&accounts).Error; err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
