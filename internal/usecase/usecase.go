package usecase

import (
	"context"
	"log/slog"
)

func New(repo Repository, logger *slog.Logger) Usecase {
	if logger == nil {
		logger = slog.Default()
	}
	assets := AssetManager{repo: repo, logger: logger}
	return Usecase{
		AssetManager: assets,
		GroupManager: GroupManager{repo: repo, assets: assets, logger: logger},
		repo:         repo,
	}
}

// TxOptions describes the transaction a manager operation runs in.
type TxOptions struct {
	ReadOnly bool
}

// Repository is the persistence boundary of the managers. Absence is
// reported with a NotFound *Error, infrastructure failures with a
// StorageUnavailable *Error.
type Repository interface {
	Health() map[string]string
	Close() error

	// Transaction runs fn inside one transaction carried by the context
	// passed to fn. Repository calls made with that context join it, and
	// so does a nested Transaction call. fn returning an error rolls back.
	Transaction(ctx context.Context, opt TxOptions, fn func(ctx context.Context) error) error

	ListAssets(context.Context) ([]Asset, error)
	GetAssetByID(context.Context, uint) (Asset, error)
	GetAssetWithGroups(context.Context, uint) (Asset, error)
	ExistsAsset(context.Context, uint) (bool, error)
	// LockAssetForUpdate loads the asset and its groups holding an
	// exclusive row lock until the surrounding transaction ends.
	LockAssetForUpdate(context.Context, uint) (Asset, error)
	CreateAsset(context.Context, Asset) (Asset, error)
	// UpdateAssetWithVersion writes name, type and description only if the
	// stored version equals expectedVersion, bumping the version by one.
	UpdateAssetWithVersion(ctx context.Context, asset Asset, expectedVersion int) (Asset, error)
	// DeleteAsset removes every membership of the asset, bumping the
	// version of each affected group, then the asset itself.
	DeleteAsset(context.Context, uint) error

	ListGroups(context.Context) ([]Group, error)
	GetGroupWithAssets(context.Context, uint) (Group, error)
	// LockGroupWithAssets is GetGroupWithAssets holding an exclusive row
	// lock on the group until the surrounding transaction ends.
	LockGroupWithAssets(context.Context, uint) (Group, error)
	ListGroupAssets(context.Context, uint) ([]Asset, error)
	CreateGroup(context.Context, Group) (Group, error)
	// SaveGroup persists name, description and the member set of the group
	// if the stored version still equals group.Version, bumping it by one.
	SaveGroup(context.Context, Group) (Group, error)
	DeleteGroup(context.Context, uint) error
}

type Usecase struct {
	AssetManager
	GroupManager

	repo Repository
}

func (u Usecase) Health() map[string]string {
	return u.repo.Health()
}

func (u Usecase) Close() error {
	return u.repo.Close()
}

// inTx runs fn in a transaction and hands back its result.
func inTx[T any](ctx context.Context, repo Repository, opt TxOptions, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := repo.Transaction(ctx, opt, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
