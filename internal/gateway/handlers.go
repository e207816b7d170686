package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flemzord/hlbroker/internal/approval"
	"github.com/flemzord/hlbroker/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/xeipuuv/gojsonschema"
)

// decode validates the body against schema and unmarshals it into v.
// It writes the 400 response itself and reports whether decoding succeeded.
func decode(w http.ResponseWriter, r *http.Request, schema *gojsonschema.Schema, v any) bool {
	body, err := readBody(r, schema)
	if err == nil {
		err = json.Unmarshal(body, v)
	}
	if err == nil {
		return true
	}

	var ve *validationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, codeValidation, ve.msg, ve.details)
		return false
	}
	writeError(w, http.StatusBadRequest, codeValidation, "request body does not match the expected shape",
		[]FieldError{{Message: err.Error()}})
	return false
}

func callID(r *http.Request) string { return chi.URLParam(r, "call_id") }

func (a *API) audit(r *http.Request, typ security.EventType, kind approval.Kind, runID, id, detail string) {
	a.Audit.Log(security.AuditEvent{
		Type:   typ,
		Kind:   string(kind),
		CallID: id,
		RunID:  runID,
		Actor:  actor(r.Context()),
		Detail: detail,
	})
}

// Function calls.

func (a *API) createFunctionCall(w http.ResponseWriter, r *http.Request) {
	var in approval.FunctionCall
	if !decode(w, r, functionCallSchema, &in) {
		return
	}
	fc, err := a.FunctionCalls.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, a.Logger, err)
		return
	}
	a.audit(r, security.EventRequestCreated, approval.KindFunctionCall, fc.RunID, fc.CallID, fc.Spec.Fn)
	writeJSON(w, http.StatusCreated, fc)
}

func (a *API) getFunctionCall(w http.ResponseWriter, r *http.Request) {
	fc, err := a.FunctionCalls.Get(r.Context(), callID(r))
	if err != nil {
		writeServiceError(w, a.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

func (a *API) respondFunctionCall(w http.ResponseWriter, r *http.Request) {
	var patch approval.FunctionCallResponse
	if !decode(w, r, functionCallResponseSchema, &patch) {
		return
	}
	if !patch.RespondedAt.IsSet() {
		patch.RespondedAt = approval.Some(a.now().UTC())
	}
	fc, err := a.FunctionCalls.Respond(r.Context(), callID(r), patch)
	if err != nil {
		writeServiceError(w, a.Logger, err)
		return
	}
	detail := "denied"
	if approved, _ := patch.Approved.Get(); approved {
		detail = "approved"
	}
	a.audit(r, security.EventRequestResolved, approval.KindFunctionCall, fc.RunID, fc.CallID, detail)
	writeJSON(w, http.StatusOK, fc)
}

func (a *API) escalateFunctionCall(w http.ResponseWriter, r *http.Request) {
	var esc approval.Escalation
	if !decode(w, r, escalationSchema, &esc) {
		return
	}
	fc, err := a.FunctionCalls.EscalateEmail(r.Context(), callID(r), esc)
	if err != nil {
		writeServiceError(w, a.Logger, err)
		return
	}
	a.audit(r, security.EventEscalation, approval.KindFunctionCall, fc.RunID, fc.CallID, esc.EscalationMsg)
	writeJSON(w, http.StatusOK, fc)
}

func (a *API) functionCallEscalations(w http.ResponseWriter, r *http.Request) {
	recs, err := a.FunctionCalls.Escalations(r.Context(), callID(r))
	if err != nil {
		writeServiceError(w, a.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(recs))
}

// Human contacts.

func (a *API) createHumanContact(w http.ResponseWriter, r *http.Request) {
	var in approval.HumanContact
	if !decode(w, r, humanContactSchema, &in) {
		return
	}
	hc, err := a.HumanContacts.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, a.Logger, err)
		return
	}
	a.audit(r, security.EventRequestCreated, approval.KindHumanContact, hc.RunID, hc.CallID, hc.Spec.Subject)
	writeJSON(w, http.StatusCreated, hc)
}

func (a *API) getHumanContact(w http.ResponseWriter, r *http.Request) {
	hc, err := a.HumanContacts.Get(r.Context(), callID(r))
	if err != nil {
		writeServiceError(w, a.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, hc)
}

func (a *API) respondHumanContact(w http.ResponseWriter, r *http.Request) {
	var patch approval.HumanContactResponse
	if !decode(w, r, humanContactResponseSchema, &patch) {
		return
	}
	if !patch.RespondedAt.IsSet() {
		patch.RespondedAt = approval.Some(a.now().UTC())
	}
	hc, err := a.HumanContacts.Respond(r.Context(), callID(r), patch)
	if err != nil {
		writeServiceError(w, a.Logger, err)
		return
	}
	a.audit(r, security.EventRequestResolved, approval.KindHumanContact, hc.RunID, hc.CallID,
		patch.ResponseOptionName.Or(""))
	writeJSON(w, http.StatusOK, hc)
}

func (a *API) escalateHumanContact(w http.ResponseWriter, r *http.Request) {
	var esc approval.Escalation
	if !decode(w, r, escalationSchema, &esc) {
		return
	}
	hc, err := a.HumanContacts.EscalateEmail(r.Context(), callID(r), esc)
	if err != nil {
		writeServiceError(w, a.Logger, err)
		return
	}
	a.audit(r, security.EventEscalation, approval.KindHumanContact, hc.RunID, hc.CallID, esc.EscalationMsg)
	writeJSON(w, http.StatusOK, hc)
}

func (a *API) humanContactEscalations(w http.ResponseWriter, r *http.Request) {
	recs, err := a.HumanContacts.Escalations(r.Context(), callID(r))
	if err != nil {
		writeServiceError(w, a.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(recs))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
