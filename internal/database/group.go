package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/librarease/assetgroups/internal/usecase"
)

type Group struct {
	ID          uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Name        string    `gorm:"column:name;type:varchar(255);not null"`
	Description string    `gorm:"column:description;type:text"`
	Version     int       `gorm:"column:version;type:int;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`

	Assets []AssetGroup `gorm:"foreignKey:GroupID;references:ID;constraint:OnDelete:CASCADE"`
}

func (Group) TableName() string {
	return "groups"
}

func (g Group) ConvertToUsecase() usecase.Group {
	return usecase.Group{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Version:     g.Version,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

// AssetGroup is the link table of the membership association. The composite
// primary key makes a pair unique.
type AssetGroup struct {
	GroupID   uint      `gorm:"column:group_id;primaryKey;autoIncrement:false"`
	AssetID   uint      `gorm:"column:asset_id;primaryKey;autoIncrement:false;index:idx_asset_groups_asset_id"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (AssetGroup) TableName() string {
	return "asset_groups"
}

func (s *service) ListGroups(ctx context.Context) ([]usecase.Group, error) {
	var groups []Group

	if err := s.conn(ctx).Order("id ASC").Find(&groups).Error; err != nil {
		return nil, translateError(err)
	}

	list := make([]usecase.Group, 0, len(groups))
	for _, g := range groups {
		list = append(list, g.ConvertToUsecase())
	}
	return list, nil
}

func (s *service) GetGroupWithAssets(ctx context.Context, id uint) (usecase.Group, error) {
	return s.groupWithAssets(ctx, id, false)
}

// LockGroupWithAssets takes SELECT ... FOR UPDATE on the group row. Every
// membership change of the group serialises on that lock.
func (s *service) LockGroupWithAssets(ctx context.Context, id uint) (usecase.Group, error) {
	return s.groupWithAssets(ctx, id, true)
}

func (s *service) groupWithAssets(ctx context.Context, id uint, lock bool) (usecase.Group, error) {
	var g Group

	db := s.conn(ctx)
	if lock {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	err := db.Where("id = ?", id).First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return usecase.Group{}, usecase.ErrGroupNotFound(id)
	}
	if err != nil {
		return usecase.Group{}, translateError(err)
	}

	ug := g.ConvertToUsecase()
	if ug.AssetIDs, err = s.groupAssetIDs(ctx, id); err != nil {
		return usecase.Group{}, err
	}
	return ug, nil
}

func (s *service) groupAssetIDs(ctx context.Context, groupID uint) (usecase.IDSet, error) {
	var ids []uint
	err := s.conn(ctx).
		Model(&AssetGroup{}).
		Where("group_id = ?", groupID).
		Pluck("asset_id", &ids).Error
	if err != nil {
		return nil, translateError(err)
	}
	return usecase.NewIDSet(ids...), nil
}

func (s *service) existsGroup(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := s.conn(ctx).Model(&Group{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

func (s *service) ListGroupAssets(ctx context.Context, id uint) ([]usecase.Asset, error) {
	exists, err := s.existsGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, usecase.ErrGroupNotFound(id)
	}

	var assets []Asset
	err = s.conn(ctx).
		Joins("JOIN asset_groups ON asset_groups.asset_id = assets.id").
		Where("asset_groups.group_id = ?", id).
		Order("assets.id ASC").
		Find(&assets).Error
	if err != nil {
		return nil, translateError(err)
	}

	list := make([]usecase.Asset, 0, len(assets))
	for _, a := range assets {
		list = append(list, a.ConvertToUsecase())
	}
	return list, nil
}

func (s *service) CreateGroup(ctx context.Context, group usecase.Group) (usecase.Group, error) {
	g := Group{
		Name:        group.Name,
		Description: group.Description,
	}

	if err := s.conn(ctx).Clauses(clause.Returning{}).Create(&g).Error; err != nil {
		return usecase.Group{}, translateError(err)
	}

	ug := g.ConvertToUsecase()
	ug.AssetIDs = usecase.NewIDSet()
	return ug, nil
}

// SaveGroup writes the group row guarded by its version, then brings the
// link rows in line with group.AssetIDs.
func (s *service) SaveGroup(ctx context.Context, group usecase.Group) (usecase.Group, error) {
	db := s.conn(ctx)

	var g Group
	res := db.
		Model(&g).
		Clauses(clause.Returning{}).
		Where("id = ? AND version = ?", group.ID, group.Version).
		Updates(map[string]any{
			"name":        group.Name,
			"description": group.Description,
			"version":     gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return usecase.Group{}, translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		exists, err := s.existsGroup(ctx, group.ID)
		if err != nil {
			return usecase.Group{}, err
		}
		if !exists {
			return usecase.Group{}, usecase.ErrGroupNotFound(group.ID)
		}
		return usecase.Group{}, usecase.ErrGroupVersionMismatch(group.ID, group.Version)
	}

	current, err := s.groupAssetIDs(ctx, group.ID)
	if err != nil {
		return usecase.Group{}, err
	}

	var removed []uint
	for _, id := range current.Slice() {
		if !group.AssetIDs.Has(id) {
			removed = append(removed, id)
		}
	}
	var added []AssetGroup
	for _, id := range group.AssetIDs.Slice() {
		if !current.Has(id) {
			added = append(added, AssetGroup{GroupID: group.ID, AssetID: id})
		}
	}

	if len(removed) > 0 {
		err := db.
			Where("group_id = ? AND asset_id IN ?", group.ID, removed).
			Delete(&AssetGroup{}).Error
		if err != nil {
			return usecase.Group{}, translateError(err)
		}
	}
	if len(added) > 0 {
		// a missing asset fails the foreign key, a duplicate pair the primary key
		if err := db.Create(&added).Error; err != nil {
			return usecase.Group{}, linkInsertError(err, added)
		}
	}

	saved := g.ConvertToUsecase()
	saved.AssetIDs = group.AssetIDs.Clone()
	return saved, nil
}

// DeleteGroup removes the group. Its link rows go with it through
// ON DELETE CASCADE.
func (s *service) DeleteGroup(ctx context.Context, id uint) error {
	res := s.conn(ctx).Where("id = ?", id).Delete(&Group{})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return usecase.ErrGroupNotFound(id)
	}
	return nil
}
