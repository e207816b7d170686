package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/flemzord/hlbroker/internal/approval"
)

func (d *DB) CreateFunctionCall(ctx context.Context, fc *approval.FunctionCall) error {
	kwargs, err := encodeJSON(fc.Spec.Kwargs)
	if err != nil {
		return err
	}
	if kwargs == nil {
		kwargs = "{}"
	}
	channel, err := encodeJSON(fc.Spec.Channel)
	if err != nil {
		return err
	}
	rejectOpts, err := encodeJSON(fc.Spec.RejectOptions)
	if err != nil {
		return err
	}
	state, err := encodeJSON(fc.Spec.State)
	if err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO function_calls (call_id, run_id, fn, kwargs, channel, reject_options, state)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fc.CallID, fc.RunID, fc.Spec.Fn, kwargs, channel, rejectOpts, state,
	); err != nil {
		return fmt.Errorf("sqlite: insert function call %q: %w", fc.CallID, err)
	}

	st := fc.Status
	if st == nil {
		st = &approval.FunctionCallStatus{}
	}
	var respondedAt, approved any
	if st.RespondedAt != nil {
		respondedAt = formatTime(*st.RespondedAt)
	}
	if st.Approved != nil {
		approved = optArg(approval.Some(*st.Approved))
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO function_call_status
		 (call_id, requested_at, responded_at, approved, comment, reject_option_name, slack_message_ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fc.CallID, formatTime(st.RequestedAt), respondedAt, approved,
		nullString(st.Comment), nullString(st.RejectOptionName), nullString(st.SlackMessageTS),
	); err != nil {
		return fmt.Errorf("sqlite: insert function call status %q: %w", fc.CallID, err)
	}

	return tx.Commit()
}

func (d *DB) GetFunctionCall(ctx context.Context, callID string) (*approval.FunctionCall, error) {
	var (
		fc                                     approval.FunctionCall
		kwargs, requestedAt                    string
		channel, rejectOpts, state             sql.NullString
		respondedAt, comment, rejectOpt, tsCol sql.NullString
		approved                               sql.NullInt64
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT f.call_id, f.run_id, f.fn, f.kwargs, f.channel, f.reject_options, f.state,
		        s.requested_at, s.responded_at, s.approved, s.comment, s.reject_option_name, s.slack_message_ts
		 FROM function_calls f
		 JOIN function_call_status s ON s.call_id = f.call_id
		 WHERE f.call_id = ?`, callID,
	).Scan(&fc.CallID, &fc.RunID, &fc.Spec.Fn, &kwargs, &channel, &rejectOpts, &state,
		&requestedAt, &respondedAt, &approved, &comment, &rejectOpt, &tsCol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, approval.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get function call %q: %w", callID, err)
	}

	fc.Spec.Kwargs = []byte(kwargs)
	fc.Spec.State = rawJSON(state)
	if channel.Valid {
		fc.Spec.Channel = &approval.ContactChannel{}
		if err := decodeJSON(channel, fc.Spec.Channel); err != nil {
			return nil, err
		}
	}
	if err := decodeJSON(rejectOpts, &fc.Spec.RejectOptions); err != nil {
		return nil, err
	}

	st := &approval.FunctionCallStatus{
		Comment:          comment.String,
		RejectOptionName: rejectOpt.String,
		SlackMessageTS:   tsCol.String,
	}
	if st.RequestedAt, err = parseTime(requestedAt); err != nil {
		return nil, err
	}
	if st.RespondedAt, err = parseNullTime(respondedAt); err != nil {
		return nil, err
	}
	if approved.Valid {
		v := approved.Int64 != 0
		st.Approved = &v
	}
	fc.Status = st
	return &fc, nil
}

// RespondFunctionCall applies patch in a single UPDATE guarded by
// responded_at IS NULL; unset fields bind NULL and COALESCE keeps the
// stored value.
func (d *DB) RespondFunctionCall(ctx context.Context, callID string, patch approval.FunctionCallResponse) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE function_call_status SET
		   responded_at       = COALESCE(?, responded_at),
		   approved           = COALESCE(?, approved),
		   comment            = COALESCE(?, comment),
		   reject_option_name = COALESCE(?, reject_option_name)
		 WHERE call_id = ? AND responded_at IS NULL`,
		optArg(patch.RespondedAt),
		optArg(patch.Approved),
		optArg(patch.Comment),
		optArg(patch.RejectOptionName),
		callID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: respond function call %q: %w", callID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: respond function call %q: %w", callID, err)
	}
	if n > 0 {
		return nil
	}
	return d.missOrConflict(ctx, "function_call_status", callID, approval.ErrAlreadyDecided)
}

func (d *DB) SetFunctionCallMessageTS(ctx context.Context, callID, ts string) error {
	return d.setMessageTS(ctx, "function_call_status", callID, ts)
}

// missOrConflict tells apart the two reasons a guarded UPDATE touched no row.
func (d *DB) missOrConflict(ctx context.Context, table, callID string, conflict error) error {
	var one int
	err := d.db.QueryRowContext(ctx,
		"SELECT 1 FROM "+table+" WHERE call_id = ?", callID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return approval.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("sqlite: lookup %q: %w", callID, err)
	}
	return conflict
}

func (d *DB) setMessageTS(ctx context.Context, table, callID, ts string) error {
	res, err := d.db.ExecContext(ctx,
		"UPDATE "+table+" SET slack_message_ts = ? WHERE call_id = ? AND responded_at IS NULL",
		ts, callID)
	if err != nil {
		return fmt.Errorf("sqlite: set message ts %q: %w", callID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if err := d.missOrConflict(ctx, table, callID, nil); err != nil {
		return err
	}
	return nil
}
