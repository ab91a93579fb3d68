package normalize

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"ncreceiver/internal/model"
)

// TimestampLayout is the only accepted TimeOfStateChange format.
const TimestampLayout = "2006-01-02 15:04:05"

var (
	ErrMalformedXML                 = errors.New("malformed xml")
	ErrUnrecognizedNotificationType = errors.New("unrecognized notification type")
	ErrInvalidTimestamp             = errors.New("invalid timestamp")
)

// Normalize parses a SOAP notification body and classifies it by its
// QualitativeNewState element. Timestamps without a zone are read in loc.
func Normalize(raw []byte, loc *time.Location) (model.NotificationRecord, error) {
	doc, err := parseLeaves(raw)
	if err != nil {
		return model.NotificationRecord{}, err
	}
	if loc == nil {
		loc = time.UTC
	}

	state := doc.text("QualitativeNewState")
	switch Classify(state) {
	case model.NotificationServiceFailure:
		ts, err := parseStateChange(doc, loc)
		if err != nil {
			return model.NotificationRecord{}, err
		}
		return model.NotificationRecord{
			Type:                 model.NotificationServiceFailure,
			TriggerID:            doc.text("ActiveNotificationTriggerID"),
			CustomerName:         doc.text("CustomerName"),
			DeviceName:           doc.text("DeviceName"),
			DeviceURI:            doc.text("DeviceURI"),
			AffectedService:      doc.text("AffectedService"),
			TimeOfStateChange:    ts,
			ProbeURI:             doc.text("ProbeURI"),
			QuantitativeNewState: doc.text("QuantitativeNewState"),
			QualitativeNewState:  state,
			QualitativeOldState:  doc.text("QualitativeOldState"),
		}, nil
	case model.NotificationReturnToNormal:
		ts, err := parseStateChange(doc, loc)
		if err != nil {
			return model.NotificationRecord{}, err
		}
		return model.NotificationRecord{
			Type:                 model.NotificationReturnToNormal,
			CustomerName:         doc.text("CustomerName"),
			DeviceName:           doc.text("DeviceName"),
			DeviceURI:            doc.text("DeviceURI"),
			AffectedService:      doc.text("AffectedService"),
			QualitativeOldState:  doc.text("QualitativeOldState"),
			QualitativeNewState:  state,
			TimeOfStateChange:    ts,
			ProbeURI:             doc.text("ProbeURI"),
			RemoteControlLink:    doc.text("RemoteControlLink"),
			ActiveProfile:        doc.text("ActiveProfile"),
			QuantitativeNewState: doc.text("QuantitativeNewState"),
		}, nil
	}
	if state == "" {
		return model.NotificationRecord{}, fmt.Errorf("%w: QualitativeNewState missing", ErrUnrecognizedNotificationType)
	}
	return model.NotificationRecord{}, fmt.Errorf("%w: QualitativeNewState %q", ErrUnrecognizedNotificationType, state)
}

// Classify maps a QualitativeNewState value to a notification type.
func Classify(state string) model.NotificationType {
	switch state {
	case "Failed", "Warning":
		return model.NotificationServiceFailure
	case "Normal":
		return model.NotificationReturnToNormal
	}
	return model.NotificationUnknown
}

func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidTimestamp)
	}
	ts, err := time.ParseInLocation(TimestampLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q does not match %s", ErrInvalidTimestamp, value, TimestampLayout)
	}
	return ts, nil
}

func parseStateChange(doc leaves, loc *time.Location) (time.Time, error) {
	return ParseTimestamp(doc.text("TimeOfStateChange"), loc)
}

// leaves maps element local names to the trimmed text of their first
// childless occurrence.
type leaves map[string]string

func (l leaves) text(name string) string {
	return l[name]
}

type frame struct {
	name     string
	text     strings.Builder
	hasChild bool
}

// charsetReader decodes documents that declare a non-UTF-8 encoding, such as
// ISO-8859-1 or windows-1252.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", label)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}

func parseLeaves(raw []byte) (leaves, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = true
	dec.CharsetReader = charsetReader

	out := leaves{}
	var stack []*frame
	sawRoot := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedXML, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 {
				if sawRoot {
					return nil, fmt.Errorf("%w: multiple root elements", ErrMalformedXML)
				}
				sawRoot = true
			} else {
				stack[len(stack)-1].hasChild = true
			}
			stack = append(stack, &frame{name: t.Name.Local})
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			} else if len(bytes.TrimSpace(t)) > 0 {
				return nil, fmt.Errorf("%w: text outside root element", ErrMalformedXML)
			}
		case xml.EndElement:
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.hasChild {
				continue
			}
			if _, seen := out[top.name]; !seen {
				out[top.name] = strings.TrimSpace(top.text.String())
			}
		}
	}
	if !sawRoot {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedXML)
	}
	return out, nil
}
