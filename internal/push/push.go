/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package push receives playlist deliveries and device commands over
// NATS and feeds them to the engine. The device subscribes to its
// group's playlist subject plus its own device subject, and answers
// every delivery with an acknowledgment on the shared sync subject.
package push

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/ayushbirla71/adupApp/internal/engine"
	"github.com/ayushbirla71/adupApp/internal/playlist"
)

const (
	ackSubject       = "device.sync"
	reconnectWait    = 2 * time.Second
	placeholderDefID = "placeholder"
)

// Sink receives decoded deliveries. Satisfied by *engine.Engine.
type Sink interface {
	OnPlaylistReceived(d engine.Delivery)
}

// CommandHandler receives device-level commands. Exit asks the device
// process to shut down.
type CommandHandler interface {
	Exit()
}

// adPayload is one creative inside a playlist message.
type adPayload struct {
	URL      string `json:"url"`
	AdID     string `json:"ad_id"`
	Duration int    `json:"duration"`
	Ticker   string `json:"ticker,omitempty"`
}

// playlistMessage is the wire shape of a playlist delivery.
type playlistMessage struct {
	Ads         []adPayload `json:"ads"`
	Placeholder string      `json:"placeholder,omitempty"`
	Timestamp   int64       `json:"timestamp"`
	RCS         string      `json:"rcs,omitempty"`
	Ticker      string      `json:"ticker,omitempty"`
}

// deviceCommand is the wire shape of a device-directed message.
type deviceCommand struct {
	Action string `json:"action"`
}

// acknowledgment is published to the sync subject for every delivery.
type acknowledgment struct {
	MessageID string `json:"message_id"`
	DeviceID  string `json:"device_id"`
	GroupID   string `json:"group_id"`
	Timestamp int64  `json:"timestamp"`
	Status    string `json:"status"`
}

// Receiver is the NATS-facing side of the device.
type Receiver struct {
	conn     *nats.Conn
	sink     Sink
	commands CommandHandler
	logger   zerolog.Logger

	groupID  string
	deviceID string

	// lastPlaceholder detects placeholder changes, which force a
	// refresh of an otherwise unchanged playlist. placeholderTS is the
	// timestamp minted at the last change; reusing it keeps the cached
	// placeholder's name stable across redeliveries.
	lastPlaceholder string
	placeholderTS   int64

	subs []*nats.Subscription
}

// Connect dials NATS and returns a receiver. Subscriptions are not yet
// active; call Start.
func Connect(url, groupID, deviceID string, sink Sink, commands CommandHandler, logger zerolog.Logger) (*Receiver, error) {
	log := logger.With().Str("component", "push").Logger()

	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("push channel disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("push channel reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect push channel: %w", err)
	}

	return &Receiver{
		conn:     conn,
		sink:     sink,
		commands: commands,
		logger:   log,
		groupID:  groupID,
		deviceID: deviceID,
	}, nil
}

// Start subscribes to the group playlist subject and the device
// command subject.
func (r *Receiver) Start() error {
	groupSubject := "ads." + r.groupID
	sub, err := r.conn.Subscribe(groupSubject, r.handlePlaylist)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", groupSubject, err)
	}
	r.subs = append(r.subs, sub)

	deviceSubject := "device." + r.deviceID
	sub, err = r.conn.Subscribe(deviceSubject, r.handleCommand)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", deviceSubject, err)
	}
	r.subs = append(r.subs, sub)

	r.logger.Info().
		Str("group_subject", groupSubject).
		Str("device_subject", deviceSubject).
		Msg("push channel listening")
	return nil
}

// Close drains subscriptions and closes the connection.
func (r *Receiver) Close() {
	for _, sub := range r.subs {
		_ = sub.Unsubscribe()
	}
	r.conn.Close()
}

func (r *Receiver) handlePlaylist(msg *nats.Msg) {
	var pm playlistMessage
	if err := json.Unmarshal(msg.Data, &pm); err != nil {
		r.logger.Error().Err(err).Msg("malformed playlist message, ignoring")
		return
	}

	messageID := uuid.NewString()
	r.publishAck(messageID)

	entries := make([]playlist.Entry, 0, len(pm.Ads)+1)
	ticker := pm.Ticker
	for _, ad := range pm.Ads {
		entries = append(entries, playlist.Entry{
			SourceURL:       ad.URL,
			ContentID:       ad.AdID,
			DurationSeconds: ad.Duration,
		})
		if ticker == "" && ad.Ticker != "" {
			ticker = ad.Ticker
		}
	}

	forceRefresh := false
	if pm.Placeholder != "" {
		if pm.Placeholder != r.lastPlaceholder {
			forceRefresh = true
			r.lastPlaceholder = pm.Placeholder
			r.placeholderTS = pm.Timestamp
			if r.placeholderTS == 0 {
				r.placeholderTS = time.Now().UnixMilli()
			}
		}
		entries = append(entries, playlist.Entry{
			SourceURL:     pm.Placeholder,
			ContentID:     placeholderDefID,
			IsPlaceholder: true,
			DeliveredAt:   r.placeholderTS,
		})
	}

	r.logger.Info().
		Int("ads", len(pm.Ads)).
		Bool("placeholder", pm.Placeholder != "").
		Bool("force_refresh", forceRefresh).
		Str("message_id", messageID).
		Msg("playlist delivery received")

	r.sink.OnPlaylistReceived(engine.Delivery{
		Entries:      entries,
		Ticker:       ticker,
		ForceRefresh: forceRefresh,
		MessageID:    messageID,
	})
}

func (r *Receiver) handleCommand(msg *nats.Msg) {
	var cmd deviceCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		r.logger.Error().Err(err).Msg("malformed device command, ignoring")
		return
	}

	switch cmd.Action {
	case "exit":
		r.logger.Warn().Msg("exit command received")
		if r.commands != nil {
			r.commands.Exit()
		}
	default:
		r.logger.Warn().Str("action", cmd.Action).Msg("unknown device command")
	}
}

// publishAck is fire and forget: a lost ack must never delay playlist
// processing.
func (r *Receiver) publishAck(messageID string) {
	if r.conn == nil {
		return
	}
	ack := acknowledgment{
		MessageID: messageID,
		DeviceID:  r.deviceID,
		GroupID:   r.groupID,
		Timestamp: time.Now().UnixMilli(),
		Status:    "received",
	}
	data, err := json.Marshal(ack)
	if err != nil {
		r.logger.Error().Err(err).Msg("marshal ack")
		return
	}
	if err := r.conn.Publish(ackSubject, data); err != nil {
		r.logger.Warn().Err(err).Msg("ack publish failed")
	}
}
