package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

type Group struct {
	ID          uint
	Name        string
	Description string
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// AssetIDs is the owning side of the membership association.
	AssetIDs IDSet
}

// GroupManager owns the group lifecycle and the membership protocol. Assets
// are resolved through the AssetManager, never through the repository.
type GroupManager struct {
	repo   Repository
	assets AssetManager
	logger *slog.Logger
}

func (m GroupManager) ListGroups(ctx context.Context) ([]Group, error) {
	m.logger.DebugContext(ctx, "fetching all groups")
	return inTx(ctx, m.repo, TxOptions{ReadOnly: true}, func(ctx context.Context) ([]Group, error) {
		return m.repo.ListGroups(ctx)
	})
}

func (m GroupManager) GetGroupByID(ctx context.Context, id uint) (Group, error) {
	return inTx(ctx, m.repo, TxOptions{ReadOnly: true}, func(ctx context.Context) (Group, error) {
		return m.repo.GetGroupWithAssets(ctx, id)
	})
}

func (m GroupManager) CreateGroup(ctx context.Context, group Group) (Group, error) {
	if strings.TrimSpace(group.Name) == "" {
		return Group{}, ValidationError("group_name_empty", "Group name cannot be empty")
	}

	group.ID = 0
	group.Version = 0
	group.AssetIDs = NewIDSet()

	created, err := inTx(ctx, m.repo, TxOptions{}, func(ctx context.Context) (Group, error) {
		return m.repo.CreateGroup(ctx, group)
	})
	if err != nil {
		return Group{}, err
	}

	m.logger.InfoContext(ctx, "group created",
		slog.Uint64("group_id", uint64(created.ID)),
		slog.String("name", created.Name))
	return created, nil
}

// ListGroupAssets returns the member assets of the group, fully loaded.
func (m GroupManager) ListGroupAssets(ctx context.Context, groupID uint) ([]Asset, error) {
	return inTx(ctx, m.repo, TxOptions{ReadOnly: true}, func(ctx context.Context) ([]Asset, error) {
		return m.repo.ListGroupAssets(ctx, groupID)
	})
}

func (m GroupManager) AddAssetToGroup(ctx context.Context, groupID, assetID uint) error {
	log := m.logger.With(
		slog.Uint64("group_id", uint64(groupID)),
		slog.Uint64("asset_id", uint64(assetID)))

	err := m.repo.Transaction(ctx, TxOptions{}, func(ctx context.Context) error {
		group, err := m.repo.LockGroupWithAssets(ctx, groupID)
		if err != nil {
			return err
		}
		asset, err := m.assets.GetAssetWithGroups(ctx, assetID)
		if err != nil {
			return err
		}

		if isMember(group, asset) {
			log.WarnContext(ctx, "asset already in group")
			return ErrAssetAlreadyMember(assetID, groupID)
		}

		link(&group, &asset)
		_, err = m.repo.SaveGroup(ctx, group)
		return err
	})
	if err != nil {
		return err
	}

	log.InfoContext(ctx, "asset added to group")
	return nil
}

func (m GroupManager) RemoveAssetFromGroup(ctx context.Context, groupID, assetID uint) error {
	log := m.logger.With(
		slog.Uint64("group_id", uint64(groupID)),
		slog.Uint64("asset_id", uint64(assetID)))

	err := m.repo.Transaction(ctx, TxOptions{}, func(ctx context.Context) error {
		group, err := m.repo.LockGroupWithAssets(ctx, groupID)
		if err != nil {
			return err
		}
		asset, err := m.assets.GetAssetWithGroups(ctx, assetID)
		if err != nil {
			return err
		}

		if !isMember(group, asset) {
			log.WarnContext(ctx, "asset not in group")
			return ErrAssetNotMember(assetID, groupID)
		}

		unlink(&group, &asset)
		_, err = m.repo.SaveGroup(ctx, group)
		return err
	})
	if err != nil {
		return err
	}

	log.InfoContext(ctx, "asset removed from group")
	return nil
}

// DeleteGroup drops the group and every membership it owns.
func (m GroupManager) DeleteGroup(ctx context.Context, id uint) error {
	err := m.repo.Transaction(ctx, TxOptions{}, func(ctx context.Context) error {
		if _, err := m.repo.LockGroupWithAssets(ctx, id); err != nil {
			return err
		}
		return m.repo.DeleteGroup(ctx, id)
	})
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "group deleted", slog.Uint64("group_id", uint64(id)))
	return nil
}
