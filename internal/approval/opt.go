package approval

import (
	"bytes"
	"encoding/json"
	"time"
)

// Opt is an optional patch field. The zero value is unset; JSON null also
// decodes to unset.
type Opt[T any] struct {
	val T
	set bool
}

// Some returns a set Opt holding v.
func Some[T any](v T) Opt[T] {
	return Opt[T]{val: v, set: true}
}

// Get returns the value and whether it is set.
func (o Opt[T]) Get() (T, bool) { return o.val, o.set }

func (o Opt[T]) IsSet() bool { return o.set }

// IsZero lets encoding/json omit unset fields tagged omitzero.
func (o Opt[T]) IsZero() bool { return !o.set }

// Or returns the value when set and def otherwise.
func (o Opt[T]) Or(def T) T {
	if o.set {
		return o.val
	}
	return def
}

func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.val)
}

func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Opt[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// FunctionCallResponse is a sparse update of a FunctionCallStatus. Unset
// fields keep their stored value. Setting RespondedAt resolves the call.
type FunctionCallResponse struct {
	RespondedAt      Opt[time.Time] `json:"responded_at,omitzero"`
	Approved         Opt[bool]      `json:"approved,omitzero"`
	Comment          Opt[string]    `json:"comment,omitzero"`
	RejectOptionName Opt[string]    `json:"reject_option_name,omitzero"`
}

// Apply writes the set fields onto s.
func (p FunctionCallResponse) Apply(s *FunctionCallStatus) {
	if v, ok := p.RespondedAt.Get(); ok {
		s.RespondedAt = &v
	}
	if v, ok := p.Approved.Get(); ok {
		s.Approved = &v
	}
	if v, ok := p.Comment.Get(); ok {
		s.Comment = v
	}
	if v, ok := p.RejectOptionName.Get(); ok {
		s.RejectOptionName = v
	}
}

// HumanContactResponse is a sparse update of a HumanContactStatus.
type HumanContactResponse struct {
	RespondedAt        Opt[time.Time] `json:"responded_at,omitzero"`
	Response           Opt[string]    `json:"response,omitzero"`
	ResponseOptionName Opt[string]    `json:"response_option_name,omitzero"`
}

// Apply writes the set fields onto s.
func (p HumanContactResponse) Apply(s *HumanContactStatus) {
	if v, ok := p.RespondedAt.Get(); ok {
		s.RespondedAt = &v
	}
	if v, ok := p.Response.Get(); ok {
		s.Response = v
	}
	if v, ok := p.ResponseOptionName.Get(); ok {
		s.ResponseOptionName = v
	}
}
