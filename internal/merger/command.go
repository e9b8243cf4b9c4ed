// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package merger

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/alleyehq/alleye/internal/store"
)

// TopicCacheCommands is the in-process topic the applier consumes.
const TopicCacheCommands = "cache.commands"

// Command is one cache mutation ready to apply: the change event after
// client-side filtering and enrichment.
type Command struct {
	Table string          `json:"table"`
	Op    store.ChangeOp  `json:"op"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
}

// message converts the command to a Watermill message.
func (c Command) message() (*message.Message, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("table", c.Table)
	msg.Metadata.Set("op", string(c.Op))
	return msg, nil
}

func decodeCommand(msg *message.Message) (Command, error) {
	var cmd Command
	err := json.Unmarshal(msg.Payload, &cmd)
	return cmd, err
}
