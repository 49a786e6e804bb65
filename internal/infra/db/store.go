package db

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"lineage/internal/config"
)

type Store struct {
	DB *gorm.DB
}

// NewStore connects to postgres. An empty DSN yields a store with a nil DB;
// callers fall back to the in-memory store in that case.
func NewStore(cfg config.Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PostgresDSN == "" {
		logger.Info("POSTGRES_DSN not set; starting in no-db mode")
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &Store{DB: gdb}, nil
}

func (s *Store) Enabled() bool {
	return s != nil && s.DB != nil
}

func (s *Store) Graph() *GraphRepository {
	return NewGraphRepository(s.DB)
}

func (s *Store) Privileges() *PrivilegeRepository {
	return NewPrivilegeRepository(s.DB)
}
