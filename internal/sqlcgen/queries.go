package sqlcgen

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const getMapDocument = `-- name: GetMapDocument :one
SELECT name,
       body,
       updated_at
FROM map_documents
WHERE name = $1
`

func (q *Queries) GetMapDocument(ctx context.Context, name string) (MapDocument, error) {
	row := q.db.QueryRow(ctx, getMapDocument, name)
	var i MapDocument
	err := row.Scan(&i.Name, &i.Body, &i.UpdatedAt)
	return i, err
}
