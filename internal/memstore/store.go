// Package memstore is an in-memory implementation of usecase.Repository.
//
// Transactions are serialised by a single mutex. The maps of a read-write
// transaction are snapshotted when it begins and restored when it fails, so
// a failed operation leaves no partial writes behind. Read-only transactions
// take no snapshot and reject writes.
package memstore

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/librarease/assetgroups/internal/usecase"
)

type txKey struct{}

type txState struct {
	store    *Store
	readOnly bool
}

var errReadOnlyTx = errors.New("memstore: write in a read-only transaction")

type Store struct {
	mu sync.Mutex

	nextAssetID uint
	nextGroupID uint

	assets map[uint]usecase.Asset
	groups map[uint]usecase.Group

	// the two sides of the membership association
	groupAssets map[uint]usecase.IDSet // group id -> asset ids
	assetGroups map[uint]usecase.IDSet // asset id -> group ids

	now func() time.Time
}

func New() *Store {
	return &Store{
		assets:      make(map[uint]usecase.Asset),
		groups:      make(map[uint]usecase.Group),
		groupAssets: make(map[uint]usecase.IDSet),
		assetGroups: make(map[uint]usecase.IDSet),
		now:         time.Now,
	}
}

func (s *Store) Health() map[string]string {
	unlock := s.enter(context.Background())
	defer unlock()

	return map[string]string{
		"status":  "up",
		"message": "It's healthy",
		"driver":  "memory",
		"assets":  strconv.Itoa(len(s.assets)),
		"groups":  strconv.Itoa(len(s.groups)),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) tx(ctx context.Context) (*txState, bool) {
	tx, ok := ctx.Value(txKey{}).(*txState)
	if !ok || tx.store != s {
		return nil, false
	}
	return tx, true
}

// enter takes the store lock unless ctx already runs inside one of this
// store's transactions.
func (s *Store) enter(ctx context.Context) func() {
	if _, ok := s.tx(ctx); ok {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// enterWrite is enter for operations that modify the store.
func (s *Store) enterWrite(ctx context.Context) (func(), error) {
	if tx, ok := s.tx(ctx); ok && tx.readOnly {
		return nil, usecase.StorageUnavailableError(errReadOnlyTx)
	}
	return s.enter(ctx), nil
}

func (s *Store) Transaction(ctx context.Context, opt usecase.TxOptions, fn func(ctx context.Context) error) error {
	if _, ok := s.tx(ctx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return usecase.StorageUnavailableError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txCtx := context.WithValue(ctx, txKey{}, &txState{store: s, readOnly: opt.ReadOnly})
	if opt.ReadOnly {
		return fn(txCtx)
	}

	snap := s.snapshot()
	committed := false
	defer func() {
		if !committed {
			s.restore(snap)
		}
	}()

	if err := fn(txCtx); err != nil {
		return err
	}
	committed = true
	return nil
}

type snapshot struct {
	nextAssetID uint
	nextGroupID uint
	assets      map[uint]usecase.Asset
	groups      map[uint]usecase.Group
	groupAssets map[uint]usecase.IDSet
	assetGroups map[uint]usecase.IDSet
}

func cloneSets(m map[uint]usecase.IDSet) map[uint]usecase.IDSet {
	out := make(map[uint]usecase.IDSet, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		nextAssetID: s.nextAssetID,
		nextGroupID: s.nextGroupID,
		assets:      maps.Clone(s.assets),
		groups:      maps.Clone(s.groups),
		groupAssets: cloneSets(s.groupAssets),
		assetGroups: cloneSets(s.assetGroups),
	}
}

func (s *Store) restore(snap snapshot) {
	s.nextAssetID = snap.nextAssetID
	s.nextGroupID = snap.nextGroupID
	s.assets = snap.assets
	s.groups = snap.groups
	s.groupAssets = snap.groupAssets
	s.assetGroups = snap.assetGroups
}

func (s *Store) ListAssets(ctx context.Context) ([]usecase.Asset, error) {
	unlock := s.enter(ctx)
	defer unlock()

	list := make([]usecase.Asset, 0, len(s.assets))
	for _, id := range slices.Sorted(maps.Keys(s.assets)) {
		list = append(list, s.assets[id])
	}
	return list, nil
}

func (s *Store) GetAssetByID(ctx context.Context, id uint) (usecase.Asset, error) {
	unlock := s.enter(ctx)
	defer unlock()

	a, ok := s.assets[id]
	if !ok {
		return usecase.Asset{}, usecase.ErrAssetNotFound(id)
	}
	return a, nil
}

func (s *Store) GetAssetWithGroups(ctx context.Context, id uint) (usecase.Asset, error) {
	unlock := s.enter(ctx)
	defer unlock()

	return s.assetWithGroups(id)
}

func (s *Store) assetWithGroups(id uint) (usecase.Asset, error) {
	a, ok := s.assets[id]
	if !ok {
		return usecase.Asset{}, usecase.ErrAssetNotFound(id)
	}
	a.GroupIDs = s.assetGroups[id].Clone()
	return a, nil
}

func (s *Store) ExistsAsset(ctx context.Context, id uint) (bool, error) {
	unlock := s.enter(ctx)
	defer unlock()

	_, ok := s.assets[id]
	return ok, nil
}

// LockAssetForUpdate relies on the transaction mutex for exclusivity.
func (s *Store) LockAssetForUpdate(ctx context.Context, id uint) (usecase.Asset, error) {
	unlock, err := s.enterWrite(ctx)
	if err != nil {
		return usecase.Asset{}, err
	}
	defer unlock()

	return s.assetWithGroups(id)
}

func (s *Store) CreateAsset(ctx context.Context, a usecase.Asset) (usecase.Asset, error) {
	unlock, err := s.enterWrite(ctx)
	if err != nil {
		return usecase.Asset{}, err
	}
	defer unlock()

	s.nextAssetID++
	now := s.now()
	a.ID = s.nextAssetID
	a.Version = 0
	a.CreatedAt = now
	a.UpdatedAt = now
	a.GroupIDs = nil

	s.assets[a.ID] = a
	s.assetGroups[a.ID] = usecase.NewIDSet()

	a.GroupIDs = usecase.NewIDSet()
	return a, nil
}

func (s *Store) UpdateAssetWithVersion(ctx context.Context, a usecase.Asset, expectedVersion int) (usecase.Asset, error) {
	unlock, err := s.enterWrite(ctx)
	if err != nil {
		return usecase.Asset{}, err
	}
	defer unlock()

	row, ok := s.assets[a.ID]
	if !ok {
		return usecase.Asset{}, usecase.ErrAssetNotFound(a.ID)
	}
	if row.Version != expectedVersion {
		return usecase.Asset{}, usecase.ErrAssetVersionMismatch(a.ID, expectedVersion)
	}

	row.Name = a.Name
	row.Type = a.Type
	row.Description = a.Description
	row.Version++
	row.UpdatedAt = s.now()
	s.assets[a.ID] = row
	return row, nil
}

func (s *Store) DeleteAsset(ctx context.Context, id uint) error {
	unlock, err := s.enterWrite(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := s.assets[id]; !ok {
		return usecase.ErrAssetNotFound(id)
	}

	now := s.now()
	for gid := range s.assetGroups[id] {
		s.groupAssets[gid].Remove(id)
		g := s.groups[gid]
		g.Version++
		g.UpdatedAt = now
		s.groups[gid] = g
	}
	delete(s.assetGroups, id)
	delete(s.assets, id)
	return nil
}

func (s *Store) ListGroups(ctx context.Context) ([]usecase.Group, error) {
	unlock := s.enter(ctx)
	defer unlock()

	list := make([]usecase.Group, 0, len(s.groups))
	for _, id := range slices.Sorted(maps.Keys(s.groups)) {
		list = append(list, s.groups[id])
	}
	return list, nil
}

func (s *Store) GetGroupWithAssets(ctx context.Context, id uint) (usecase.Group, error) {
	unlock := s.enter(ctx)
	defer unlock()

	return s.groupWithAssets(id)
}

func (s *Store) groupWithAssets(id uint) (usecase.Group, error) {
	g, ok := s.groups[id]
	if !ok {
		return usecase.Group{}, usecase.ErrGroupNotFound(id)
	}
	g.AssetIDs = s.groupAssets[id].Clone()
	return g, nil
}

// LockGroupWithAssets relies on the transaction mutex for exclusivity.
func (s *Store) LockGroupWithAssets(ctx context.Context, id uint) (usecase.Group, error) {
	unlock, err := s.enterWrite(ctx)
	if err != nil {
		return usecase.Group{}, err
	}
	defer unlock()

	return s.groupWithAssets(id)
}

func (s *Store) ListGroupAssets(ctx context.Context, id uint) ([]usecase.Asset, error) {
	unlock := s.enter(ctx)
	defer unlock()

	if _, ok := s.groups[id]; !ok {
		return nil, usecase.ErrGroupNotFound(id)
	}

	members := s.groupAssets[id]
	list := make([]usecase.Asset, 0, members.Len())
	for _, aid := range members.Slice() {
		list = append(list, s.assets[aid])
	}
	return list, nil
}

func (s *Store) CreateGroup(ctx context.Context, g usecase.Group) (usecase.Group, error) {
	unlock, err := s.enterWrite(ctx)
	if err != nil {
		return usecase.Group{}, err
	}
	defer unlock()

	s.nextGroupID++
	now := s.now()
	g.ID = s.nextGroupID
	g.Version = 0
	g.CreatedAt = now
	g.UpdatedAt = now
	g.AssetIDs = nil

	s.groups[g.ID] = g
	s.groupAssets[g.ID] = usecase.NewIDSet()

	g.AssetIDs = usecase.NewIDSet()
	return g, nil
}

func (s *Store) SaveGroup(ctx context.Context, g usecase.Group) (usecase.Group, error) {
	unlock, err := s.enterWrite(ctx)
	if err != nil {
		return usecase.Group{}, err
	}
	defer unlock()

	row, ok := s.groups[g.ID]
	if !ok {
		return usecase.Group{}, usecase.ErrGroupNotFound(g.ID)
	}
	if row.Version != g.Version {
		return usecase.Group{}, usecase.ErrGroupVersionMismatch(g.ID, g.Version)
	}
	for aid := range g.AssetIDs {
		if _, ok := s.assets[aid]; !ok {
			return usecase.Group{}, usecase.ErrAssetNotFound(aid)
		}
	}

	current := s.groupAssets[g.ID]
	for aid := range current {
		if !g.AssetIDs.Has(aid) {
			s.assetGroups[aid].Remove(g.ID)
		}
	}
	for aid := range g.AssetIDs {
		if !current.Has(aid) {
			s.assetGroups[aid].Add(g.ID)
		}
	}
	s.groupAssets[g.ID] = g.AssetIDs.Clone()

	row.Name = g.Name
	row.Description = g.Description
	row.Version++
	row.UpdatedAt = s.now()
	s.groups[g.ID] = row

	row.AssetIDs = g.AssetIDs.Clone()
	return row, nil
}

func (s *Store) DeleteGroup(ctx context.Context, id uint) error {
	unlock, err := s.enterWrite(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := s.groups[id]; !ok {
		return usecase.ErrGroupNotFound(id)
	}
	for aid := range s.groupAssets[id] {
		s.assetGroups[aid].Remove(id)
	}
	delete(s.groupAssets, id)
	delete(s.groups, id)
	return nil
}
