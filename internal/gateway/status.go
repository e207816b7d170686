package gateway

import (
	"net/http"
	"slices"
	"time"

	"github.com/flemzord/hlbroker/internal/approval"
)

// StatusResponse is the JSON response for GET /humanlayer/v1/status.
type StatusResponse struct {
	Version       string                 `json:"version"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Pending       PendingCounts          `json:"pending"`
	Channels      []approval.ChannelKind `json:"channels"`
	Webhooks      int                    `json:"webhooks"`
	Events        *EventsStatus          `json:"events,omitempty"`
}

// PendingCounts is the number of unresolved requests per kind.
type PendingCounts struct {
	FunctionCalls int `json:"function_calls"`
	HumanContacts int `json:"human_contacts"`
}

// EventsStatus describes the event stream.
type EventsStatus struct {
	Subscribers int   `json:"subscribers"`
	Dropped     int64 `json:"dropped"`
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	p, err := a.FunctionCalls.Pending(r.Context())
	if err != nil {
		writeServiceError(w, a.Logger, err)
		return
	}
	if a.Metrics != nil {
		a.Metrics.SetPending(p)
	}

	resp := StatusResponse{
		Version:       a.Version,
		UptimeSeconds: int64(a.now().Sub(a.startedAt) / time.Second),
		Pending:       PendingCounts{FunctionCalls: p.FunctionCalls, HumanContacts: p.HumanContacts},
		Channels:      []approval.ChannelKind{},
		Webhooks:      a.Webhooks.Len(),
	}
	if a.Channels != nil {
		resp.Channels = append(resp.Channels, a.Channels()...)
		slices.Sort(resp.Channels)
	}
	if a.Events != nil {
		resp.Events = &EventsStatus{Subscribers: a.Events.Subscribers(), Dropped: a.Events.Dropped()}
	}
	writeJSON(w, http.StatusOK, resp)
}
