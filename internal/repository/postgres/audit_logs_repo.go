package postgres

import (
	"context"

	"github.com/baharkarakas/wallet-engine/internal/models"
)

type auditLogsRepo struct{ q querier }

func (r *auditLogsRepo) create(ctx context.Context, l models.AuditLog) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO audit_logs(entity_type, entity_id, action, details) VALUES($1,$2,$3,$4)`,
		l.EntityType, l.EntityID, l.Action, l.Details)
	return mapErr(err)
}

func (r *auditLogsRepo) List(ctx context.Context, entityType, entityID string, limit int) ([]models.AuditLog, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id::text, entity_type, entity_id, action, details, created_at
		   FROM audit_logs
		  WHERE ($1 = '' OR entity_type = $1)
		    AND ($2 = '' OR entity_id = $2)
		  ORDER BY created_at DESC, id
		  LIMIT NULLIF($3, 0)`,
		entityType, entityID, limit,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []models.AuditLog{}
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.EntityType, &l.EntityID, &l.Action, &l.Details, &l.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, l)
	}
	return out, mapErr(rows.Err())
}
