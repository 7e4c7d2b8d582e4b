package model

import "time"

// Mailing is one bulk SMS send accepted by the gateway.
type Mailing struct {
	ID          string    `json:"id"           db:"id"`
	Text        string    `json:"text"         db:"text"`
	Recipients  string    `json:"recipients"   db:"recipients"`
	PhonesCount int       `json:"phones_count" db:"phones_count"`
	CreatedAt   time.Time `json:"created_at"   db:"created_at"`
}

const MsgTypeMailingStatus = "SMSMailingStatus"

// StatusEvent is the per-mailing payload pushed to real-time subscribers.
type StatusEvent struct {
	MailingID string  `json:"mailingId"`
	Text      string  `json:"SMSText"`
	Timestamp float64 `json:"timestamp"` // mailing creation, unix seconds
	Total     int     `json:"totalSMSAmount"`
	Delivered int     `json:"deliveredSMSAmount"`
	Failed    int     `json:"failedSMSAmount"`
}

// StatusFrame is a single websocket frame.
type StatusFrame struct {
	MsgType  string        `json:"msgType"`
	Mailings []StatusEvent `json:"SMSMailings"`
}

// NewStatusFrame wraps events into a frame of type SMSMailingStatus.
func NewStatusFrame(events ...StatusEvent) StatusFrame {
	return StatusFrame{MsgType: MsgTypeMailingStatus, Mailings: events}
}

// DeliveryCounts is what is known about delivery of a mailing at report time.
type DeliveryCounts struct {
	Delivered int
	Failed    int
}

// StatusEventOf builds the status event for m.
func StatusEventOf(m Mailing, dc DeliveryCounts) StatusEvent {
	return StatusEvent{
		MailingID: m.ID,
		Text:      m.Text,
		Timestamp: float64(m.CreatedAt.UnixNano()) / float64(time.Second),
		Total:     m.PhonesCount,
		Delivered: dc.Delivered,
		Failed:    dc.Failed,
	}
}
