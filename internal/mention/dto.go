package mention

// ResolveRequest is the body of the resolve and notify endpoints
type ResolveRequest struct {
	ChannelID string `json:"channel_id"`
	Mentions
}

// RecipientsResponse lists who a mention reaches
type RecipientsResponse struct {
	Recipients []string `json:"recipients"`
	Count      int      `json:"count"`
}

// Notification is the payload of a published mention event
type Notification struct {
	ChannelID  string   `json:"channel_id"`
	SenderID   string   `json:"sender_id"`
	Recipients []string `json:"recipients"`
}

func toResponse(recipients []string) *RecipientsResponse {
	return &RecipientsResponse{Recipients: recipients, Count: len(recipients)}
}
