package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/flemzord/hlbroker/internal/approval"
)

func (d *DB) CreateHumanContact(ctx context.Context, hc *approval.HumanContact) error {
	channel, err := encodeJSON(hc.Spec.Channel)
	if err != nil {
		return err
	}
	opts, err := encodeJSON(hc.Spec.ResponseOptions)
	if err != nil {
		return err
	}
	state, err := encodeJSON(hc.Spec.State)
	if err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO human_contacts (call_id, run_id, msg, subject, channel, response_options, state)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		hc.CallID, hc.RunID, hc.Spec.Msg, nullString(hc.Spec.Subject), channel, opts, state,
	); err != nil {
		return fmt.Errorf("sqlite: insert human contact %q: %w", hc.CallID, err)
	}

	st := hc.Status
	if st == nil {
		st = &approval.HumanContactStatus{}
	}
	var respondedAt any
	if st.RespondedAt != nil {
		respondedAt = formatTime(*st.RespondedAt)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO human_contact_status
		 (call_id, requested_at, responded_at, response, response_option_name, slack_message_ts)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		hc.CallID, formatTime(st.RequestedAt), respondedAt,
		nullString(st.Response), nullString(st.ResponseOptionName), nullString(st.SlackMessageTS),
	); err != nil {
		return fmt.Errorf("sqlite: insert human contact status %q: %w", hc.CallID, err)
	}

	return tx.Commit()
}

func (d *DB) GetHumanContact(ctx context.Context, callID string) (*approval.HumanContact, error) {
	var (
		hc                                    approval.HumanContact
		requestedAt                           string
		subject, channel, opts, state         sql.NullString
		respondedAt, response, optName, tsCol sql.NullString
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT h.call_id, h.run_id, h.msg, h.subject, h.channel, h.response_options, h.state,
		        s.requested_at, s.responded_at, s.response, s.response_option_name, s.slack_message_ts
		 FROM human_contacts h
		 JOIN human_contact_status s ON s.call_id = h.call_id
		 WHERE h.call_id = ?`, callID,
	).Scan(&hc.CallID, &hc.RunID, &hc.Spec.Msg, &subject, &channel, &opts, &state,
		&requestedAt, &respondedAt, &response, &optName, &tsCol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, approval.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get human contact %q: %w", callID, err)
	}

	hc.Spec.Subject = subject.String
	hc.Spec.State = rawJSON(state)
	if channel.Valid {
		hc.Spec.Channel = &approval.ContactChannel{}
		if err := decodeJSON(channel, hc.Spec.Channel); err != nil {
			return nil, err
		}
	}
	if err := decodeJSON(opts, &hc.Spec.ResponseOptions); err != nil {
		return nil, err
	}

	st := &approval.HumanContactStatus{
		Response:           response.String,
		ResponseOptionName: optName.String,
		SlackMessageTS:     tsCol.String,
	}
	if st.RequestedAt, err = parseTime(requestedAt); err != nil {
		return nil, err
	}
	if st.RespondedAt, err = parseNullTime(respondedAt); err != nil {
		return nil, err
	}
	hc.Status = st
	return &hc, nil
}

func (d *DB) RespondHumanContact(ctx context.Context, callID string, patch approval.HumanContactResponse) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE human_contact_status SET
		   responded_at         = COALESCE(?, responded_at),
		   response             = COALESCE(?, response),
		   response_option_name = COALESCE(?, response_option_name)
		 WHERE call_id = ? AND responded_at IS NULL`,
		optArg(patch.RespondedAt),
		optArg(patch.Response),
		optArg(patch.ResponseOptionName),
		callID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: respond human contact %q: %w", callID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: respond human contact %q: %w", callID, err)
	}
	if n > 0 {
		return nil
	}
	return d.missOrConflict(ctx, "human_contact_status", callID, approval.ErrAlreadyResponded)
}

func (d *DB) SetHumanContactMessageTS(ctx context.Context, callID, ts string) error {
	return d.setMessageTS(ctx, "human_contact_status", callID, ts)
}
