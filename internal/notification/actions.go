package notification

import (
	"encoding/json"
)

// ActionType is the discriminator selecting which concrete shape a
// notification's action payload holds.
type ActionType string

const (
	ActionBase ActionType = "Base"
	ActionFile ActionType = "File"
)

// Action is a polymorphic payload attached to a notification. Concrete
// shapes register themselves in actionRegistry; dispatch and query code
// never switch on the concrete type.
type Action interface {
	Kind() ActionType
}

// BaseAction is the default shape. Unknown discriminators and malformed
// payloads decode to it so payload evolution never breaks queries.
type BaseAction struct {
	URL string `json:"url,omitempty"`
}

func (BaseAction) Kind() ActionType { return ActionBase }

// FileAction points the client at a stored file produced by the event.
type FileAction struct {
	BaseAction
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
}

func (FileAction) Kind() ActionType { return ActionFile }

// actionRegistry maps discriminators to constructors of their concrete
// shape. Adding an action kind means adding one entry here; nothing else
// in the package changes.
var actionRegistry = map[ActionType]func() Action{
	ActionBase: func() Action { return &BaseAction{} },
	ActionFile: func() Action { return &FileAction{} },
}

// ActionTypeOf returns the discriminator for an action value, falling back
// to Base for nil or unregistered shapes.
func ActionTypeOf(a Action) ActionType {
	if a == nil {
		return ActionBase
	}
	if _, ok := actionRegistry[a.Kind()]; ok {
		return a.Kind()
	}
	return ActionBase
}

// EncodeAction serializes an action and returns its discriminator alongside
// the bytes. A nil action encodes as an empty BaseAction.
func EncodeAction(a Action) (ActionType, []byte, error) {
	if a == nil {
		a = &BaseAction{}
	}
	data, err := json.Marshal(a)
	if err != nil {
		return ActionBase, nil, err
	}
	return ActionTypeOf(a), data, nil
}

// DecodeAction reconstructs an action from its discriminator and bytes.
// Unknown discriminators and undecodable bytes degrade to an empty
// BaseAction; decoding never fails.
func DecodeAction(t ActionType, data []byte) Action {
	ctor, ok := actionRegistry[t]
	if !ok {
		ctor = actionRegistry[ActionBase]
	}
	a := ctor()
	if len(data) == 0 {
		return a
	}
	if err := json.Unmarshal(data, a); err != nil {
		return &BaseAction{}
	}
	return a
}
