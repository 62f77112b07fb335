package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Lina3386/moliya-bot/internal/client/db"
	"github.com/Lina3386/moliya-bot/internal/models"
)

// HistoryRepository keeps the append-only logs: advice results, exports and push attempts.
type HistoryRepository struct {
	client db.Client
	loc    *time.Location
}

func NewHistoryRepository(client db.Client, loc *time.Location) *HistoryRepository {
	return &HistoryRepository{client: client, loc: loc}
}

func (r *HistoryRepository) SaveAnalysis(ctx context.Context, userID int64, analysisType, result string, now time.Time) error {
	return r.client.WriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ai_analysis_history (user_id, analysis_type, result, created_at) VALUES (?, ?, ?, ?)`,
			userID, analysisType, result, formatTS(now, r.loc))
		if err != nil {
			return fmt.Errorf("failed to save analysis: %w", err)
		}
		return nil
	})
}

func (r *HistoryRepository) ListAnalyses(ctx context.Context, userID int64, limit int) ([]models.AnalysisRecord, error) {
	rows, err := r.client.DB().QueryContext(ctx,
		`SELECT id, user_id, analysis_type, result, created_at FROM ai_analysis_history
		 WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, r.client.Classify(err)
	}
	defer rows.Close()

	var out []models.AnalysisRecord
	for rows.Next() {
		var a models.AnalysisRecord
		var createdAt string
		if err := rows.Scan(&a.ID, &a.UserID, &a.AnalysisType, &a.Result, &createdAt); err != nil {
			return nil, r.client.Classify(err)
		}
		a.CreatedAt = parseTS(createdAt, r.loc)
		out = append(out, a)
	}
	return out, r.client.Classify(rows.Err())
}

func (r *HistoryRepository) SaveExport(ctx context.Context, userID int64, format string, rowCount int, now time.Time) error {
	return r.client.WriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO export_history (user_id, format, row_count, created_at) VALUES (?, ?, ?, ?)`,
			userID, format, rowCount, formatTS(now, r.loc))
		return err
	})
}

func (r *HistoryRepository) SavePush(ctx context.Context, rec models.PushRecord, now time.Time) error {
	var errText any
	if rec.Error != "" {
		errText = rec.Error
	}
	return r.client.WriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO push_notifications (batch_id, user_id, topic, status, error, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			rec.BatchID, rec.UserID, rec.Topic, rec.Status, errText, formatTS(now, r.loc))
		return err
	})
}

func (r *HistoryRepository) CountPushes(ctx context.Context, batchID, status string) (int64, error) {
	var n int64
	err := r.client.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM push_notifications WHERE batch_id = ? AND status = ?`, batchID, status).Scan(&n)
	if err != nil {
		return 0, r.client.Classify(err)
	}
	return n, nil
}
