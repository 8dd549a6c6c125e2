package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/librarease/assetgroups/internal/usecase"
)

type Asset struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Version     int    `json:"version"`
	GroupIDs    []uint `json:"group_ids,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func newAsset(a usecase.Asset) Asset {
	return Asset{
		ID:          a.ID,
		Name:        a.Name,
		Type:        a.Type,
		Description: a.Description,
		Version:     a.Version,
		CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func newAssets(assets []usecase.Asset) []Asset {
	list := make([]Asset, 0, len(assets))
	for _, a := range assets {
		list = append(list, newAsset(a))
	}
	return list
}

func (s *Server) ListAssets(ctx echo.Context) error {
	assets, err := s.server.ListAssets(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newAssets(assets))
}

type GetAssetByIDRequest struct {
	ID            uint `param:"id" validate:"required"`
	IncludeGroups bool `query:"include_groups"`
}

func (s *Server) GetAssetByID(ctx echo.Context) error {
	var req GetAssetByIDRequest
	if err := s.bind(ctx, &req); err != nil {
		return err
	}

	if !req.IncludeGroups {
		a, err := s.server.GetAssetByID(ctx.Request().Context(), req.ID)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, newAsset(a))
	}

	a, err := s.server.GetAssetWithGroups(ctx.Request().Context(), req.ID)
	if err != nil {
		return err
	}
	res := newAsset(a)
	res.GroupIDs = a.GroupIDs.Slice()
	return ctx.JSON(http.StatusOK, res)
}

type CreateAssetRequest struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

func (s *Server) CreateAsset(ctx echo.Context) error {
	var req CreateAssetRequest
	if err := s.bind(ctx, &req); err != nil {
		return err
	}

	a, err := s.server.CreateAsset(ctx.Request().Context(), usecase.Asset{
		Name:        req.Name,
		Type:        req.Type,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, newAsset(a))
}

type UpdateAssetRequest struct {
	ID          uint   `param:"id" json:"-" validate:"required"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	// the version the client last read
	Version *int `json:"version" validate:"required,min=0"`
}

func (s *Server) UpdateAsset(ctx echo.Context) error {
	var req UpdateAssetRequest
	if err := s.bind(ctx, &req); err != nil {
		return err
	}

	a, err := s.server.UpdateAsset(ctx.Request().Context(), usecase.Asset{
		ID:          req.ID,
		Name:        req.Name,
		Type:        req.Type,
		Description: req.Description,
	}, *req.Version)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newAsset(a))
}

type DeleteAssetRequest struct {
	ID uint `param:"id" validate:"required"`
}

func (s *Server) DeleteAsset(ctx echo.Context) error {
	var req DeleteAssetRequest
	if err := s.bind(ctx, &req); err != nil {
		return err
	}

	if err := s.server.DeleteAsset(ctx.Request().Context(), req.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
