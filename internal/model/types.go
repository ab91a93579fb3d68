package model

import "time"

type NotificationType string

const (
	NotificationUnknown        NotificationType = ""
	NotificationServiceFailure NotificationType = "Service Failure"
	NotificationReturnToNormal NotificationType = "RTN"
)

func (t NotificationType) Known() bool {
	return t == NotificationServiceFailure || t == NotificationReturnToNormal
}

// NotificationRecord is the normalized form of one inbound SOAP notification.
// Fields that do not belong to Type are always empty.
type NotificationRecord struct {
	Type                 NotificationType `json:"notification_type"`
	TriggerID            string           `json:"notification_trigger_id,omitempty"`
	CustomerName         string           `json:"customer_name"`
	DeviceName           string           `json:"device_name"`
	DeviceURI            string           `json:"device_uri"`
	AffectedService      string           `json:"affected_service"`
	QualitativeNewState  string           `json:"qualitative_new_state"`
	QualitativeOldState  string           `json:"qualitative_old_state"`
	QuantitativeNewState string           `json:"quantitative_new_state"`
	TimeOfStateChange    time.Time        `json:"time_of_state_change"`
	ProbeURI             string           `json:"probe_uri"`
	RemoteControlLink    string           `json:"remote_control_link,omitempty"`
	ActiveProfile        string           `json:"active_profile,omitempty"`
}

type Destination string

const (
	DestinationDiscord Destination = "discord"
	DestinationTeams   Destination = "teams"
)

func ParseDestination(s string) (Destination, bool) {
	switch Destination(s) {
	case DestinationDiscord:
		return DestinationDiscord, true
	case DestinationTeams:
		return DestinationTeams, true
	}
	return "", false
}

type DeliveryReceipt struct {
	Destination Destination   `json:"destination"`
	StatusCode  int           `json:"status_code"`
	Body        string        `json:"body,omitempty"`
	Duration    time.Duration `json:"duration"`
}

type Stage string

const (
	StageReceive   Stage = "receive"
	StageNormalize Stage = "normalize"
	StageRender    Stage = "render"
	StageDeliver   Stage = "deliver"
)

// DeliveryOutcome summarizes one relay attempt. It never carries record content.
type DeliveryOutcome struct {
	Timestamp   time.Time   `json:"timestamp"`
	RequestID   string      `json:"request_id"`
	Source      string      `json:"source"`
	Destination Destination `json:"destination"`
	Success     bool        `json:"success"`
	Stage       Stage       `json:"stage,omitempty"`
	Error       string      `json:"error,omitempty"`
	StatusCode  int         `json:"status_code,omitempty"`
}

type DestinationStats struct {
	Received         int       `json:"received"`
	Delivered        int       `json:"delivered"`
	ReceiveFailure   int       `json:"receive_failures"`
	NormalizeFailure int       `json:"normalize_failures"`
	RenderFailure    int       `json:"render_failures"`
	DeliveryFailure  int       `json:"delivery_failures"`
	LastOutcomeAt    time.Time `json:"last_outcome_at"`
}
