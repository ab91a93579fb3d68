package render

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ncreceiver/internal/model"
	"ncreceiver/internal/normalize"
)

const (
	EmbedTitle       = "SOAP Notification"
	DefaultColor     = 2368548
	DefaultFooterURL = "https://nc.syschimp.com"
	DefaultUsername  = "NC Receiver"
	UnknownCardTitle = "Unknown Notification Type"
	UnknownCardText  = "Unhandled notification type"
	cardTitlePrefix  = "SOAP Notification - "
)

var ErrUnsupportedNotificationType = errors.New("unsupported notification type")

type Options struct {
	Color     int
	FooterURL string
	Username  string
	Now       func() time.Time
}

type Renderer struct {
	color     int
	footerURL string
	username  string
	now       func() time.Time
}

func New(opts Options) *Renderer {
	r := &Renderer{
		color:     opts.Color,
		footerURL: opts.FooterURL,
		username:  opts.Username,
		now:       opts.Now,
	}
	if r.color == 0 {
		r.color = DefaultColor
	}
	if r.footerURL == "" {
		r.footerURL = DefaultFooterURL
	}
	if r.username == "" {
		r.username = DefaultUsername
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Field is one labeled value in display order.
type Field struct {
	Name  string
	Value string
}

// Fields returns the labeled values for rec in display order. Unknown
// records have no fields.
func Fields(rec model.NotificationRecord) []Field {
	ts := FormatTimestamp(rec.TimeOfStateChange)
	switch rec.Type {
	case model.NotificationServiceFailure:
		return []Field{
			{"Notification Type", string(rec.Type)},
			{"Notification Trigger ID", rec.TriggerID},
			{"Customer Name", rec.CustomerName},
			{"Device Name", rec.DeviceName},
			{"Device URI", rec.DeviceURI},
			{"Affected Service", rec.AffectedService},
			{"Qualitative New State", rec.QualitativeNewState},
			{"Qualitative Old State", rec.QualitativeOldState},
			{"Time of State Change", ts},
			{"Probe URI", rec.ProbeURI},
			{"Quantitative New State", rec.QuantitativeNewState},
		}
	case model.NotificationReturnToNormal:
		return []Field{
			{"Notification Type", string(rec.Type)},
			{"Customer Name", rec.CustomerName},
			{"Device Name", rec.DeviceName},
			{"Device URI", rec.DeviceURI},
			{"Affected Service", rec.AffectedService},
			{"Qualitative New State", rec.QualitativeNewState},
			{"Qualitative Old State", rec.QualitativeOldState},
			{"Time of State Change", ts},
			{"Probe URI", rec.ProbeURI},
			{"Remote Control Link", rec.RemoteControlLink},
			{"Active Profile", rec.ActiveProfile},
			{"Quantitative New State", rec.QuantitativeNewState},
		}
	}
	return nil
}

func FormatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Format(normalize.TimestampLayout)
}

// Render builds the destination-specific message for rec.
func (r *Renderer) Render(rec model.NotificationRecord, dest model.Destination) (Message, error) {
	switch dest {
	case model.DestinationDiscord:
		embed, err := r.Embed(rec)
		if err != nil {
			return Message{}, err
		}
		return Message{Destination: dest, Username: r.username, Embed: &embed}, nil
	case model.DestinationTeams:
		card := r.Card(rec)
		return Message{Destination: dest, Card: &card}, nil
	}
	return Message{}, fmt.Errorf("unknown destination %q", dest)
}

func (r *Renderer) Embed(rec model.NotificationRecord) (Embed, error) {
	if !rec.Type.Known() {
		return Embed{}, fmt.Errorf("%w: %q", ErrUnsupportedNotificationType, rec.Type)
	}
	fields := Fields(rec)
	embed := Embed{
		Title:     EmbedTitle,
		Color:     r.color,
		Footer:    &EmbedFooter{Text: r.footerURL},
		Timestamp: r.now().UTC().Format(time.RFC3339),
		Fields:    make([]EmbedField, 0, len(fields)),
	}
	for _, f := range fields {
		embed.Fields = append(embed.Fields, EmbedField{Name: f.Name, Value: f.Value, Inline: true})
	}
	return embed, nil
}

// Card never fails; unknown records get a fixed placeholder card.
func (r *Renderer) Card(rec model.NotificationRecord) Card {
	if !rec.Type.Known() {
		return Card{Title: UnknownCardTitle, Text: UnknownCardText}
	}
	fields := Fields(rec)
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		lines = append(lines, f.Name+": "+f.Value)
	}
	return Card{
		Title: cardTitlePrefix + string(rec.Type),
		Text:  strings.Join(lines, "\n"),
	}
}
