package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/librarease/assetgroups/internal/usecase"
)

type Asset struct {
	ID          uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Name        string    `gorm:"column:name;type:varchar(255);not null"`
	Type        string    `gorm:"column:type;type:varchar(255);not null"`
	Description string    `gorm:"column:description;type:text"`
	Version     int       `gorm:"column:version;type:int;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`

	Groups []AssetGroup `gorm:"foreignKey:AssetID;references:ID;constraint:OnDelete:CASCADE"`
}

func (Asset) TableName() string {
	return "assets"
}

// Convert core model to Usecase
func (a Asset) ConvertToUsecase() usecase.Asset {
	return usecase.Asset{
		ID:          a.ID,
		Name:        a.Name,
		Type:        a.Type,
		Description: a.Description,
		Version:     a.Version,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func (s *service) ListAssets(ctx context.Context) ([]usecase.Asset, error) {
	var assets []Asset

	if err := s.conn(ctx).Order("id ASC").Find(&assets).Error; err != nil {
		return nil, translateError(err)
	}

	list := make([]usecase.Asset, 0, len(assets))
	for _, a := range assets {
		list = append(list, a.ConvertToUsecase())
	}
	return list, nil
}

func (s *service) GetAssetByID(ctx context.Context, id uint) (usecase.Asset, error) {
	var a Asset

	err := s.conn(ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return usecase.Asset{}, usecase.ErrAssetNotFound(id)
	}
	if err != nil {
		return usecase.Asset{}, translateError(err)
	}
	return a.ConvertToUsecase(), nil
}

func (s *service) GetAssetWithGroups(ctx context.Context, id uint) (usecase.Asset, error) {
	a, err := s.GetAssetByID(ctx, id)
	if err != nil {
		return usecase.Asset{}, err
	}
	if a.GroupIDs, err = s.assetGroupIDs(ctx, id); err != nil {
		return usecase.Asset{}, err
	}
	return a, nil
}

func (s *service) assetGroupIDs(ctx context.Context, assetID uint) (usecase.IDSet, error) {
	var ids []uint
	err := s.conn(ctx).
		Model(&AssetGroup{}).
		Where("asset_id = ?", assetID).
		Pluck("group_id", &ids).Error
	if err != nil {
		return nil, translateError(err)
	}
	return usecase.NewIDSet(ids...), nil
}

func (s *service) ExistsAsset(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := s.conn(ctx).Model(&Asset{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

// LockAssetForUpdate takes SELECT ... FOR UPDATE on the asset row.
func (s *service) LockAssetForUpdate(ctx context.Context, id uint) (usecase.Asset, error) {
	var a Asset

	err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return usecase.Asset{}, usecase.ErrAssetNotFound(id)
	}
	if err != nil {
		return usecase.Asset{}, translateError(err)
	}

	ua := a.ConvertToUsecase()
	if ua.GroupIDs, err = s.assetGroupIDs(ctx, id); err != nil {
		return usecase.Asset{}, err
	}
	return ua, nil
}

func (s *service) CreateAsset(ctx context.Context, asset usecase.Asset) (usecase.Asset, error) {
	a := Asset{
		Name:        asset.Name,
		Type:        asset.Type,
		Description: asset.Description,
	}

	if err := s.conn(ctx).Clauses(clause.Returning{}).Create(&a).Error; err != nil {
		return usecase.Asset{}, translateError(err)
	}

	ua := a.ConvertToUsecase()
	ua.GroupIDs = usecase.NewIDSet()
	return ua, nil
}

func (s *service) UpdateAssetWithVersion(ctx context.Context, asset usecase.Asset, expectedVersion int) (usecase.Asset, error) {
	var a Asset

	res := s.conn(ctx).
		Model(&a).
		Clauses(clause.Returning{}).
		Where("id = ? AND version = ?", asset.ID, expectedVersion).
		Updates(map[string]any{
			"name":        asset.Name,
			"type":        asset.Type,
			"description": asset.Description,
			"version":     gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return usecase.Asset{}, translateError(res.Error)
	}

	if res.RowsAffected == 0 {
		exists, err := s.ExistsAsset(ctx, asset.ID)
		if err != nil {
			return usecase.Asset{}, err
		}
		if !exists {
			return usecase.Asset{}, usecase.ErrAssetNotFound(asset.ID)
		}
		return usecase.Asset{}, usecase.ErrAssetVersionMismatch(asset.ID, expectedVersion)
	}

	return a.ConvertToUsecase(), nil
}

// DeleteAsset removes the memberships of the asset first so that every
// affected group gets its version bumped, then the asset row.
func (s *service) DeleteAsset(ctx context.Context, id uint) error {
	db := s.conn(ctx)

	// the row lock conflicts with the key share lock a concurrent link insert
	// takes, so the group set read below cannot miss a committed add
	locked, err := s.LockAssetForUpdate(ctx, id)
	if err != nil {
		return err
	}
	groupIDs := locked.GroupIDs

	if groupIDs.Len() > 0 {
		// lock in id order, the same order membership changes use
		var groups []Group
		err := db.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", groupIDs.Slice()).
			Order("id ASC").
			Find(&groups).Error
		if err != nil {
			return translateError(err)
		}

		if err := db.Where("asset_id = ?", id).Delete(&AssetGroup{}).Error; err != nil {
			return translateError(err)
		}

		err = db.Model(&Group{}).
			Where("id IN ?", groupIDs.Slice()).
			Updates(map[string]any{"version": gorm.Expr("version + 1")}).Error
		if err != nil {
			return translateError(err)
		}
	}

	res := db.Where("id = ?", id).Delete(&Asset{})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return usecase.ErrAssetNotFound(id)
	}
	return nil
}
