package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/librarease/assetgroups/internal/usecase"
)

func TestTransactionRollsBackOnError(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Transaction(ctx, usecase.TxOptions{}, func(ctx context.Context) error {
		if _, err := s.CreateAsset(ctx, usecase.Asset{Name: "a", Type: "t"}); err != nil {
			return err
		}
		if _, err := s.CreateGroup(ctx, usecase.Group{Name: "g"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("transaction error = %v, want %v", err, boom)
	}

	assets, _ := s.ListAssets(ctx)
	groups, _ := s.ListGroups(ctx)
	if len(assets) != 0 || len(groups) != 0 {
		t.Fatalf("rolled back store has %d assets, %d groups, want none", len(assets), len(groups))
	}

	a, err := s.CreateAsset(ctx, usecase.Asset{Name: "a", Type: "t"})
	if err != nil {
		t.Fatalf("create asset: %v", err)
	}
	if a.ID != 1 {
		t.Fatalf("id after rollback = %d, want 1", a.ID)
	}
}

func TestNestedTransactionJoinsOuter(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	err := s.Transaction(ctx, usecase.TxOptions{}, func(ctx context.Context) error {
		return s.Transaction(ctx, usecase.TxOptions{ReadOnly: true}, func(ctx context.Context) error {
			_, err := s.CreateGroup(ctx, usecase.Group{Name: "g"})
			return err
		})
	})
	if err != nil {
		t.Fatalf("nested transaction: %v", err)
	}

	groups, _ := s.ListGroups(ctx)
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
}

func TestReadOnlyTransaction(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	a, _ := s.CreateAsset(ctx, usecase.Asset{Name: "a", Type: "t"})
	g, _ := s.CreateGroup(ctx, usecase.Group{Name: "g"})

	var got usecase.Asset
	err := s.Transaction(ctx, usecase.TxOptions{ReadOnly: true}, func(ctx context.Context) error {
		var err error
		got, err = s.GetAssetWithGroups(ctx, a.ID)
		return err
	})
	if err != nil {
		t.Fatalf("read-only transaction: %v", err)
	}
	if got.ID != a.ID || got.Name != "a" {
		t.Fatalf("read asset = %+v, want %+v", got, a)
	}

	writes := map[string]func(ctx context.Context) error{
		"create asset": func(ctx context.Context) error {
			_, err := s.CreateAsset(ctx, usecase.Asset{Name: "b", Type: "t"})
			return err
		},
		"update asset": func(ctx context.Context) error {
			_, err := s.UpdateAssetWithVersion(ctx, usecase.Asset{ID: a.ID, Name: "b", Type: "t"}, 0)
			return err
		},
		"delete asset": func(ctx context.Context) error { return s.DeleteAsset(ctx, a.ID) },
		"lock asset": func(ctx context.Context) error {
			_, err := s.LockAssetForUpdate(ctx, a.ID)
			return err
		},
		"lock group": func(ctx context.Context) error {
			_, err := s.LockGroupWithAssets(ctx, g.ID)
			return err
		},
		"save group": func(ctx context.Context) error {
			_, err := s.SaveGroup(ctx, usecase.Group{ID: g.ID, Name: "g", AssetIDs: usecase.NewIDSet(a.ID)})
			return err
		},
		"delete group": func(ctx context.Context) error { return s.DeleteGroup(ctx, g.ID) },
	}
	for name, write := range writes {
		err := s.Transaction(ctx, usecase.TxOptions{ReadOnly: true}, write)
		if !errors.Is(err, usecase.ErrStorageUnavailable) {
			t.Fatalf("%s in read-only transaction: error = %v, want storage unavailable", name, err)
		}
	}

	after, err := s.GetAssetWithGroups(ctx, a.ID)
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if after.Version != 0 || after.Name != "a" || after.GroupIDs.Len() != 0 {
		t.Fatalf("asset changed by read-only transactions: %+v", after)
	}
	groups, _ := s.ListGroups(ctx)
	if len(groups) != 1 || groups[0].Version != 0 {
		t.Fatalf("groups changed by read-only transactions: %+v", groups)
	}
}

func TestUpdateAssetWithVersion(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	a, _ := s.CreateAsset(ctx, usecase.Asset{Name: "a", Type: "t"})
	a.Name = "b"

	if _, err := s.UpdateAssetWithVersion(ctx, a, 3); !errors.Is(err, usecase.ErrConcurrencyConflict) {
		t.Fatalf("stale update error = %v, want concurrency conflict", err)
	}

	got, err := s.UpdateAssetWithVersion(ctx, a, 0)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Version != 1 || got.Name != "b" {
		t.Fatalf("updated = %+v, want version 1 name b", got)
	}

	if _, err := s.UpdateAssetWithVersion(ctx, usecase.Asset{ID: 42}, 0); !errors.Is(err, usecase.ErrNotFound) {
		t.Fatalf("missing update error = %v, want not found", err)
	}
}

func TestSaveGroupSyncsBothSides(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	a1, _ := s.CreateAsset(ctx, usecase.Asset{Name: "a1", Type: "t"})
	a2, _ := s.CreateAsset(ctx, usecase.Asset{Name: "a2", Type: "t"})
	g, _ := s.CreateGroup(ctx, usecase.Group{Name: "g"})

	g.AssetIDs = usecase.NewIDSet(a1.ID, a2.ID)
	saved, err := s.SaveGroup(ctx, g)
	if err != nil {
		t.Fatalf("save group: %v", err)
	}
	if saved.Version != 1 {
		t.Fatalf("version = %d, want 1", saved.Version)
	}

	got, _ := s.GetAssetWithGroups(ctx, a2.ID)
	if !got.GroupIDs.Has(g.ID) {
		t.Fatalf("asset %d groups = %v, want %d", a2.ID, got.GroupIDs.Slice(), g.ID)
	}

	// stale version
	if _, err := s.SaveGroup(ctx, g); !errors.Is(err, usecase.ErrConcurrencyConflict) {
		t.Fatalf("stale save error = %v, want concurrency conflict", err)
	}

	saved.AssetIDs = usecase.NewIDSet(a1.ID)
	if _, err := s.SaveGroup(ctx, saved); err != nil {
		t.Fatalf("save group: %v", err)
	}
	got, _ = s.GetAssetWithGroups(ctx, a2.ID)
	if got.GroupIDs.Len() != 0 {
		t.Fatalf("asset %d groups = %v, want none", a2.ID, got.GroupIDs.Slice())
	}
}

func TestSaveGroupRejectsUnknownAsset(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	g, _ := s.CreateGroup(ctx, usecase.Group{Name: "g"})
	g.AssetIDs = usecase.NewIDSet(99)

	if _, err := s.SaveGroup(ctx, g); !errors.Is(err, usecase.ErrNotFound) {
		t.Fatalf("save error = %v, want not found", err)
	}
}

func TestDeleteGroupClearsAssetSide(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	a, _ := s.CreateAsset(ctx, usecase.Asset{Name: "a", Type: "t"})
	g, _ := s.CreateGroup(ctx, usecase.Group{Name: "g"})
	g.AssetIDs = usecase.NewIDSet(a.ID)
	if _, err := s.SaveGroup(ctx, g); err != nil {
		t.Fatalf("save group: %v", err)
	}

	if err := s.DeleteGroup(ctx, g.ID); err != nil {
		t.Fatalf("delete group: %v", err)
	}
	got, _ := s.GetAssetWithGroups(ctx, a.ID)
	if got.GroupIDs.Len() != 0 {
		t.Fatalf("asset groups = %v, want none", got.GroupIDs.Slice())
	}
	if err := s.DeleteGroup(ctx, g.ID); !errors.Is(err, usecase.ErrNotFound) {
		t.Fatalf("second delete error = %v, want not found", err)
	}
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Transaction(ctx, usecase.TxOptions{}, func(context.Context) error { return nil })
	if !errors.Is(err, usecase.ErrStorageUnavailable) {
		t.Fatalf("error = %v, want storage unavailable", err)
	}
}
