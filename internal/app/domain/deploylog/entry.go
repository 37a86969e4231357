package deploylog

import "time"

// Entry is one immutable log line emitted while a deployment served a
// request. Seq is assigned by the store, strictly increasing and gap-free per
// deployment; TS is event time and carries no ordering authority.
type Entry struct {
	Seq       int64     `json:"seq"`
	TS        time.Time `json:"ts"`
	RequestID string    `json:"request_id"`
	Message   string    `json:"message"`
}

// Page is one page of entries in descending seq order plus the cursor for
// the next (older) page. An empty cursor means the log is exhausted.
type Page struct {
	Data   []Entry `json:"data"`
	Cursor string  `json:"cursor,omitempty"`
}
