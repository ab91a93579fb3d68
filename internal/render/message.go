package render

import "ncreceiver/internal/model"

type EmbedFooter struct {
	Text string `json:"text"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type Embed struct {
	Title     string       `json:"title"`
	Color     int          `json:"color"`
	Footer    *EmbedFooter `json:"footer,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
	Fields    []EmbedField `json:"fields"`
}

type Card struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type discordPayload struct {
	Username string  `json:"username,omitempty"`
	Embeds   []Embed `json:"embeds"`
}

// Message is a rendered payload bound to one destination. Exactly one of
// Embed and Card is set.
type Message struct {
	Destination model.Destination
	Username    string
	Embed       *Embed
	Card        *Card
}

// Payload returns the JSON wire object for the destination webhook.
func (m Message) Payload() any {
	if m.Embed != nil {
		return discordPayload{Username: m.Username, Embeds: []Embed{*m.Embed}}
	}
	if m.Card != nil {
		return *m.Card
	}
	return nil
}
