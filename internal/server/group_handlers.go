package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/librarease/assetgroups/internal/usecase"
)

type Group struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     int    `json:"version"`
	AssetIDs    []uint `json:"asset_ids,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func newGroup(g usecase.Group) Group {
	return Group{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Version:     g.Version,
		CreatedAt:   g.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   g.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) ListGroups(ctx echo.Context) error {
	groups, err := s.server.ListGroups(ctx.Request().Context())
	if err != nil {
		return err
	}

	list := make([]Group, 0, len(groups))
	for _, g := range groups {
		list = append(list, newGroup(g))
	}
	return ctx.JSON(http.StatusOK, list)
}

type GroupIDRequest struct {
	ID uint `param:"id" validate:"required"`
}

func (s *Server) GetGroupByID(ctx echo.Context) error {
	var req GroupIDRequest
	if err := s.bind(ctx, &req); err != nil {
		return err
	}

	g, err := s.server.GetGroupByID(ctx.Request().Context(), req.ID)
	if err != nil {
		return err
	}
	res := newGroup(g)
	res.AssetIDs = g.AssetIDs.Slice()
	return ctx.JSON(http.StatusOK, res)
}

type CreateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) CreateGroup(ctx echo.Context) error {
	var req CreateGroupRequest
	if err := s.bind(ctx, &req); err != nil {
		return err
	}

	g, err := s.server.CreateGroup(ctx.Request().Context(), usecase.Group{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, newGroup(g))
}

func (s *Server) DeleteGroup(ctx echo.Context) error {
	var req GroupIDRequest
	if err := s.bind(ctx, &req); err != nil {
		return err
	}

	if err := s.server.DeleteGroup(ctx.Request().Context(), req.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) ListGroupAssets(ctx echo.Context) error {
	var req GroupIDRequest
	if err := s.bind(ctx, &req); err != nil {
		return err
	}

	assets, err := s.server.ListGroupAssets(ctx.Request().Context(), req.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newAssets(assets))
}

type GroupAssetRequest struct {
	GroupID uint `param:"id" json:"-" validate:"required"`
	AssetID uint `param:"asset_id" json:"-" validate:"required"`
}

func (s *Server) AddAssetToGroup(ctx echo.Context) error {
	var req GroupAssetRequest
	if err := s.bind(ctx, &req); err != nil {
		return err
	}

	if err := s.server.AddAssetToGroup(ctx.Request().Context(), req.GroupID, req.AssetID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusCreated)
}

func (s *Server) RemoveAssetFromGroup(ctx echo.Context) error {
	var req GroupAssetRequest
	if err := s.bind(ctx, &req); err != nil {
		return err
	}

	if err := s.server.RemoveAssetFromGroup(ctx.Request().Context(), req.GroupID, req.AssetID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
