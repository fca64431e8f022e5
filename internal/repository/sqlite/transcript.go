package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/promptcraft/internal/model"
	"github.com/sakif/promptcraft/internal/repository"
)

var _ repository.TranscriptStore = (*TranscriptDB)(nil)

// TranscriptDB is the chat_history table.
//
// ORDERING:
// Each row carries seq, its 0-based position in the user's transcript. seq is
// assigned inside the INSERT itself (MAX(seq)+1), and UNIQUE(user_id, seq)
// rejects a second writer that computed the same position.
type TranscriptDB struct {
	conn *sql.DB
}

// Load returns the user's turns ordered by position.
func (t *TranscriptDB) Load(ctx context.Context, userID string) ([]model.ChatTurn, error) {
	rows, err := t.conn.QueryContext(ctx,
		`SELECT id, seq, role, kind, text, created_at
		 FROM chat_history
		 WHERE user_id = ?
		 ORDER BY seq ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading transcript for user %s: %w", userID, err)
	}
	defer rows.Close()

	turns := []model.ChatTurn{}
	for rows.Next() {
		var (
			turn       model.ChatTurn
			role, kind string
		)
		if err := rows.Scan(&turn.ID, &turn.Index, &role, &kind, &turn.Text, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning chat turn: %w", err)
		}
		turn.Role = model.Role(role)
		turn.Kind = model.TurnKind(kind)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating transcript: %w", err)
	}

	return turns, nil
}

// Append adds turns at the end of the user's transcript, in order, as one
// transaction: either all of them are stored or none is.
func (t *TranscriptDB) Append(ctx context.Context, userID string, turns ...*model.ChatTurn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := t.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning append for user %s: %w", userID, err)
	}
	defer tx.Rollback() // no-op after Commit

	for _, turn := range turns {
		if err := insertTurn(ctx, tx, userID, turn); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing append for user %s: %w", userID, err)
	}
	return nil
}

func insertTurn(ctx context.Context, tx *sql.Tx, userID string, turn *model.ChatTurn) error {
	turn.ID = xid.New().String()
	turn.CreatedAt = time.Now().UTC()
	if turn.Kind == "" {
		turn.Kind = model.KindMessage
	}

	// The aggregate without GROUP BY always yields exactly one row, so this
	// inserts seq 0 into an empty transcript.
	_, err := tx.ExecContext(ctx,
		`INSERT INTO chat_history (id, user_id, seq, role, kind, text, created_at)
		 SELECT ?, ?, COALESCE(MAX(seq) + 1, 0), ?, ?, ?, ?
		 FROM chat_history WHERE user_id = ?`,
		turn.ID,
		userID,
		string(turn.Role),
		string(turn.Kind),
		turn.Text,
		turn.CreatedAt,
		userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: appending chat turn for user %s: %w", userID, err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT seq FROM chat_history WHERE id = ?`, turn.ID,
	).Scan(&turn.Index); err != nil {
		return fmt.Errorf("sqlite: reading chat turn position: %w", err)
	}
	return nil
}

// Clear deletes the user's whole transcript.
func (t *TranscriptDB) Clear(ctx context.Context, userID string) error {
	if _, err := t.conn.ExecContext(ctx, `DELETE FROM chat_history WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("sqlite: clearing transcript for user %s: %w", userID, err)
	}
	return nil
}
