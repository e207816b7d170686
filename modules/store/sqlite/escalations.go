package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/flemzord/hlbroker/internal/approval"
)

func (d *DB) AppendEscalation(ctx context.Context, rec approval.EscalationRecord) error {
	recipients, err := encodeJSON(rec.AdditionalRecipients)
	if err != nil {
		return err
	}
	channel, err := encodeJSON(rec.Channel)
	if err != nil {
		return err
	}
	if _, err := d.db.ExecContext(ctx,
		`INSERT INTO escalations (id, kind, call_id, message, additional_recipients, channel, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Kind), rec.CallID, rec.Message, recipients, channel, formatTime(rec.CreatedAt),
	); err != nil {
		return fmt.Errorf("sqlite: append escalation: %w", err)
	}
	return nil
}

// ListEscalations returns the log for one request in insertion order. IDs
// are ULIDs, so ordering by id is chronological.
func (d *DB) ListEscalations(ctx context.Context, kind approval.Kind, callID string) ([]approval.EscalationRecord, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, kind, call_id, message, additional_recipients, channel, created_at
		 FROM escalations WHERE kind = ? AND call_id = ? ORDER BY id`,
		string(kind), callID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list escalations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []approval.EscalationRecord
	for rows.Next() {
		var (
			rec                 approval.EscalationRecord
			k, createdAt        string
			recipients, channel sql.NullString
		)
		if err := rows.Scan(&rec.ID, &k, &rec.CallID, &rec.Message, &recipients, &channel, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan escalation: %w", err)
		}
		rec.Kind = approval.Kind(k)
		if err := decodeJSON(recipients, &rec.AdditionalRecipients); err != nil {
			return nil, err
		}
		if channel.Valid {
			rec.Channel = &approval.ContactChannel{}
			if err := decodeJSON(channel, rec.Channel); err != nil {
				return nil, err
			}
		}
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (d *DB) CountPending(ctx context.Context) (approval.Pending, error) {
	var p approval.Pending
	err := d.db.QueryRowContext(ctx,
		`SELECT
		   (SELECT count(*) FROM function_call_status WHERE responded_at IS NULL),
		   (SELECT count(*) FROM human_contact_status WHERE responded_at IS NULL)`,
	).Scan(&p.FunctionCalls, &p.HumanContacts)
	if err != nil {
		return approval.Pending{}, fmt.Errorf("sqlite: count pending: %w", err)
	}
	return p, nil
}
