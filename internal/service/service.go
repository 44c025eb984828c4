package service

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
	"github.com/noah-isme/lingowow-api/pkg/validation"
)

// txProvider opens database transactions for multi-statement writes.
type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// inTx runs fn inside a transaction, committing on success.
func inTx(ctx context.Context, db txProvider, fn func(tx *sqlx.Tx) error) error {
	if db == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transacción no disponible")
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Internal(err, "no se pudo iniciar la transacción")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Internal(err, "no se pudo confirmar la transacción")
	}
	return nil
}

func validationError(v *validation.Validator, err error) error {
	msg := v.Describe(err)
	if msg == "" {
		msg = appErrors.ErrValidation.Message
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, msg)
}
