package domain

// InboundMessage is one message delivered by the gateway webhook.
type InboundMessage struct {
	Author     string `json:"author"`     // sender id, e.g. 79001234567@c.us
	Body       string `json:"body"`
	ChatID     string `json:"chatId"`
	SenderName string `json:"senderName"`
	FromMe     bool   `json:"fromMe"` // echo of a message the bot sent itself
}

// WebhookPayload is the JSON body of a webhook POST.
type WebhookPayload struct {
	Messages []InboundMessage `json:"messages"`
}

// Request is an outbound gateway call: the remote method name and its
// JSON parameters.
type Request struct {
	Method string
	Params map[string]any
}
