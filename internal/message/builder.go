// Package message builds provider-specific envelopes from notification
// content. Pure transformation: no network, no crypto.
package message

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mottorpay/push-gateway/internal/domain"
)

// Presentation defaults shipped with the MottorPay web client.
const (
	DefaultLink  = "https://mottorpay.netlify.app/investor.html"
	defaultIcon  = "/icon-192.png"
	defaultBadge = "/icon-72.png"
)

// FCMEnvelope is the FCM HTTP v1 send request body.
type FCMEnvelope struct {
	Message FCMMessage `json:"message"`
}

type FCMMessage struct {
	Token        string            `json:"token"`
	Notification FCMNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	WebPush      *FCMWebPush       `json:"webpush,omitempty"`
	Android      *FCMAndroid       `json:"android,omitempty"`
	APNS         *FCMAPNS          `json:"apns,omitempty"`
}

type FCMNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type FCMWebPush struct {
	Notification FCMWebPushNotification `json:"notification"`
	FCMOptions   FCMWebPushOptions      `json:"fcm_options"`
}

type FCMWebPushNotification struct {
	Title              string `json:"title"`
	Body               string `json:"body"`
	Icon               string `json:"icon"`
	Badge              string `json:"badge"`
	Vibrate            []int  `json:"vibrate"`
	RequireInteraction bool   `json:"requireInteraction"`
	Tag                string `json:"tag"`
}

type FCMWebPushOptions struct {
	Link string `json:"link"`
}

type FCMAndroid struct {
	Priority     string                 `json:"priority"`
	Notification FCMAndroidNotification `json:"notification"`
}

type FCMAndroidNotification struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	Sound       string `json:"sound"`
	ClickAction string `json:"click_action"`
}

type FCMAPNS struct {
	Payload FCMAPNSPayload `json:"payload"`
}

type FCMAPNSPayload struct {
	APS FCMAPNSAps `json:"aps"`
}

type FCMAPNSAps struct {
	Alert FCMAPNSAlert `json:"alert"`
	Badge int          `json:"badge"`
	Sound string       `json:"sound"`
}

type FCMAPNSAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// WebPushPayload is the flat JSON body encrypted and delivered on the
// Web Push path.
type WebPushPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Icon  string            `json:"icon"`
	Badge string            `json:"badge"`
	Data  map[string]string `json:"data"`
}

// Builder constructs provider envelopes with configured presentation
// defaults. Safe for concurrent use.
type Builder struct {
	defaultLink string
	icon        string
	badge       string
	now         func() time.Time
}

func NewBuilder(defaultLink string) *Builder {
	defaultLink = strings.TrimSpace(defaultLink)
	if defaultLink == "" {
		defaultLink = DefaultLink
	}

	return &Builder{
		defaultLink: defaultLink,
		icon:        defaultIcon,
		badge:       defaultBadge,
		now:         time.Now,
	}
}

// BuildFCMEnvelope constructs the FCM v1 message for one device token.
// The android and apns blocks duplicate title/body with platform hints;
// they are additive, delivery works without them.
func (b *Builder) BuildFCMEnvelope(token string, n domain.Notification) (*FCMEnvelope, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: device token is required", domain.ErrValidation)
	}

	link := n.Link()
	if link == "" {
		link = b.defaultLink
	}

	tag := n.Tag()
	if tag == "" {
		tag = fmt.Sprintf("mottorpay-%d", b.now().UnixMilli())
	}

	data := make(map[string]string, len(n.Data)+1)
	for key, value := range n.Data {
		data[key] = value
	}
	data["click_action"] = link

	return &FCMEnvelope{
		Message: FCMMessage{
			Token: token,
			Notification: FCMNotification{
				Title: n.Title,
				Body:  n.Body,
			},
			Data: data,
			WebPush: &FCMWebPush{
				Notification: FCMWebPushNotification{
					Title:              n.Title,
					Body:               n.Body,
					Icon:               b.icon,
					Badge:              b.badge,
					Vibrate:            []int{200, 100, 200},
					RequireInteraction: false,
					Tag:                tag,
				},
				FCMOptions: FCMWebPushOptions{Link: link},
			},
			Android: &FCMAndroid{
				Priority: "high",
				Notification: FCMAndroidNotification{
					Title:       n.Title,
					Body:        n.Body,
					Icon:        "ic_notification",
					Color:       "#5B67CA",
					Sound:       "default",
					ClickAction: "OPEN_APP",
				},
			},
			APNS: &FCMAPNS{
				Payload: FCMAPNSPayload{
					APS: FCMAPNSAps{
						Alert: FCMAPNSAlert{Title: n.Title, Body: n.Body},
						Badge: 1,
						Sound: "default",
					},
				},
			},
		},
	}, nil
}

// BuildWebPushPayload serializes the flat payload delivered to a Web Push
// subscription endpoint.
func (b *Builder) BuildWebPushPayload(n domain.Notification) ([]byte, error) {
	payload := WebPushPayload{
		Title: n.Title,
		Body:  n.Body,
		Icon:  b.icon,
		Badge: b.badge,
		Data:  n.Data,
	}
	if payload.Data == nil {
		payload.Data = map[string]string{}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot serialize web push payload: %v", domain.ErrValidation, err)
	}
	return raw, nil
}
