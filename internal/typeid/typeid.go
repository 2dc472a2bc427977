package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixStroke    = "stroke"
	PrefixKeyPoint  = "kp"
	PrefixMark      = "mark"
	PrefixAction    = "act"
	PrefixSensation = "sens"
	PrefixText      = "text"
	PrefixEffect    = "fx"
	PrefixRoom      = "room"
	PrefixPlayer    = "player"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewStrokeID() string    { return New(PrefixStroke) }
func NewKeyPointID() string  { return New(PrefixKeyPoint) }
func NewMarkID() string      { return New(PrefixMark) }
func NewActionID() string    { return New(PrefixAction) }
func NewSensationID() string { return New(PrefixSensation) }
func NewTextID() string      { return New(PrefixText) }
func NewEffectID() string    { return New(PrefixEffect) }
func NewRoomID() string      { return New(PrefixRoom) }
func NewPlayerID() string    { return New(PrefixPlayer) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
