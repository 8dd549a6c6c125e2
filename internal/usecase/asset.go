package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

type Asset struct {
	ID          uint
	Name        string
	Type        string
	Description string
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// GroupIDs is derived from group membership and never written directly.
	GroupIDs IDSet
}

// AssetManager owns the asset lifecycle.
type AssetManager struct {
	repo   Repository
	logger *slog.Logger
}

func validateAsset(a Asset) error {
	if strings.TrimSpace(a.Name) == "" {
		return ValidationError("asset_name_empty", "Asset name cannot be empty")
	}
	if strings.TrimSpace(a.Type) == "" {
		return ValidationError("asset_type_empty", "Asset type cannot be empty")
	}
	return nil
}

func (m AssetManager) ListAssets(ctx context.Context) ([]Asset, error) {
	m.logger.DebugContext(ctx, "fetching all assets")
	return inTx(ctx, m.repo, TxOptions{ReadOnly: true}, func(ctx context.Context) ([]Asset, error) {
		return m.repo.ListAssets(ctx)
	})
}

func (m AssetManager) GetAssetByID(ctx context.Context, id uint) (Asset, error) {
	return inTx(ctx, m.repo, TxOptions{ReadOnly: true}, func(ctx context.Context) (Asset, error) {
		return m.repo.GetAssetByID(ctx, id)
	})
}

// GetAssetWithGroups loads the asset together with its group set. Called
// with a context that carries a transaction, it reads inside that
// transaction.
func (m AssetManager) GetAssetWithGroups(ctx context.Context, id uint) (Asset, error) {
	return inTx(ctx, m.repo, TxOptions{ReadOnly: true}, func(ctx context.Context) (Asset, error) {
		return m.repo.GetAssetWithGroups(ctx, id)
	})
}

func (m AssetManager) CreateAsset(ctx context.Context, asset Asset) (Asset, error) {
	if err := validateAsset(asset); err != nil {
		return Asset{}, err
	}

	asset.ID = 0
	asset.Version = 0
	asset.GroupIDs = NewIDSet()

	created, err := inTx(ctx, m.repo, TxOptions{}, func(ctx context.Context) (Asset, error) {
		return m.repo.CreateAsset(ctx, asset)
	})
	if err != nil {
		return Asset{}, err
	}

	m.logger.InfoContext(ctx, "asset created",
		slog.Uint64("asset_id", uint64(created.ID)),
		slog.String("name", created.Name))
	return created, nil
}

func (m AssetManager) DeleteAsset(ctx context.Context, id uint) error {
	err := m.repo.Transaction(ctx, TxOptions{}, func(ctx context.Context) error {
		exists, err := m.repo.ExistsAsset(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			m.logger.WarnContext(ctx, "asset not found", slog.Uint64("asset_id", uint64(id)))
			return ErrAssetNotFound(id)
		}
		return m.repo.DeleteAsset(ctx, id)
	})
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "asset deleted", slog.Uint64("asset_id", uint64(id)))
	return nil
}

// UpdateAsset replaces name, type and description of asset.ID. The write
// only lands if the stored version still equals expectedVersion.
func (m AssetManager) UpdateAsset(ctx context.Context, asset Asset, expectedVersion int) (Asset, error) {
	if err := validateAsset(asset); err != nil {
		return Asset{}, err
	}

	updated, err := inTx(ctx, m.repo, TxOptions{}, func(ctx context.Context) (Asset, error) {
		current, err := m.repo.LockAssetForUpdate(ctx, asset.ID)
		if err != nil {
			return Asset{}, err
		}

		next := current
		next.Name = asset.Name
		next.Type = asset.Type
		next.Description = asset.Description

		saved, err := m.repo.UpdateAssetWithVersion(ctx, next, expectedVersion)
		if err != nil {
			return Asset{}, err
		}
		saved.GroupIDs = current.GroupIDs.Clone()
		return saved, nil
	})
	if err != nil {
		if KindOf(err) == KindConcurrencyConflict {
			m.logger.WarnContext(ctx, "stale asset update rejected",
				slog.Uint64("asset_id", uint64(asset.ID)),
				slog.Int("expected_version", expectedVersion))
		}
		return Asset{}, err
	}

	m.logger.InfoContext(ctx, "asset updated",
		slog.Uint64("asset_id", uint64(updated.ID)),
		slog.Int("version", updated.Version))
	return updated, nil
}
