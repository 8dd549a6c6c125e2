package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/librarease/assetgroups/internal/usecase"
)

// postgres error codes the repository translates
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// translateError maps driver errors onto the usecase error kinds. Errors that
// already are *usecase.Error pass through untouched.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var uerr *usecase.Error
	if errors.As(err, &uerr) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return usecase.NotFoundError("record_not_found", "record not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return &usecase.Error{
				Kind:    usecase.KindConflict,
				Code:    "duplicate_key",
				Message: "record already exists",
				Err:     err,
			}
		case pgForeignKeyViolation:
			return &usecase.Error{
				Kind:    usecase.KindNotFound,
				Code:    "referenced_record_not_found",
				Message: "referenced record not found",
				Err:     err,
			}
		case pgSerializationFailure, pgDeadlockDetected:
			return usecase.ConcurrencyConflictError("transaction_conflict",
				"transaction conflicted with a concurrent one", err)
		}
	}

	// connection loss, canceled contexts and anything else the driver reports
	return usecase.StorageUnavailableError(err)
}

// linkInsertError names the asset when a link insert fails its foreign key.
// Postgres reports the offending key in the detail, e.g.
// "Key (asset_id)=(5) is not present in table "assets"."
func linkInsertError(err error, added []AssetGroup) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgForeignKeyViolation {
		return translateError(err)
	}
	if len(added) == 1 {
		return usecase.ErrAssetNotFound(added[0].AssetID)
	}
	for _, link := range added {
		if strings.Contains(pgErr.Detail, fmt.Sprintf("(asset_id)=(%d)", link.AssetID)) {
			return usecase.ErrAssetNotFound(link.AssetID)
		}
	}
	return translateError(err)
}
