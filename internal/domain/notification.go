package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Defaults applied when a request omits title or body.
const (
	DefaultTitle = "MottorPay"
	DefaultBody  = "Новое уведомление"
)

// Reserved keys in the notification data map.
const (
	// DataKeyURL carries the deep link opened when the notification is clicked.
	DataKeyURL = "url"
	// DataKeyTag groups web notifications so a newer one replaces the older.
	DataKeyTag = "tag"
)

// Content limits. Data is capped at the FCM per-message data payload limit.
const (
	MaxTitleRunes = 256
	MaxBodyRunes  = 1024
	MaxDataBytes  = 4096
)

// Notification is the provider-independent message content: title, body and
// an arbitrary string-to-string data map supplied by the caller.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// Normalize applies the default title and body and ensures the data map is
// non-nil. Called once at the dispatch boundary before validation.
func (n *Notification) Normalize() {
	n.Title = strings.TrimSpace(n.Title)
	n.Body = strings.TrimSpace(n.Body)
	if n.Title == "" {
		n.Title = DefaultTitle
	}
	if n.Body == "" {
		n.Body = DefaultBody
	}
	if n.Data == nil {
		n.Data = map[string]string{}
	}
}

func (n *Notification) Validate() error {
	if titleLen := len([]rune(n.Title)); titleLen > MaxTitleRunes {
		return fmt.Errorf("%w: title exceeds %d characters (got %d)", ErrValidation, MaxTitleRunes, titleLen)
	}
	if bodyLen := len([]rune(n.Body)); bodyLen > MaxBodyRunes {
		return fmt.Errorf("%w: body exceeds %d characters (got %d)", ErrValidation, MaxBodyRunes, bodyLen)
	}

	if len(n.Data) > 0 {
		raw, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("%w: data is not serializable: %v", ErrValidation, err)
		}
		if len(raw) > MaxDataBytes {
			return fmt.Errorf("%w: data exceeds %d bytes (got %d)", ErrValidation, MaxDataBytes, len(raw))
		}
	}

	return nil
}

// Link returns the deep link from the data map, or empty when absent.
func (n *Notification) Link() string {
	return strings.TrimSpace(n.Data[DataKeyURL])
}

// Tag returns the web notification tag from the data map, or empty when absent.
func (n *Notification) Tag() string {
	return strings.TrimSpace(n.Data[DataKeyTag])
}
