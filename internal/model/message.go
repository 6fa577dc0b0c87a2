package model

// UnknownMessageID is used when the provider did not send a message id.
const UnknownMessageID = "UNKNOWN"

// InboundMessage is a normalized SMS received from the provider.
// From and To are E.164.
type InboundMessage struct {
	From      string
	To        string
	Text      string
	MessageID string
}

// OutboundMessage is a single SMS to send.
type OutboundMessage struct {
	To   string
	From string
	Text string
}
