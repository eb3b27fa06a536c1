// Package protocol defines the messages exchanged between the modgraph host
// and the preview page.
//
// Every message kind is a concrete Go type implementing [Message]. The set is
// closed: only types declared in this package satisfy the interface, and
// [Decode] rejects any "type" tag it does not know with an
// UNKNOWN_MESSAGE error.
//
// On the wire a message is a JSON object whose "type" field names its kind:
//
//	{"type":"success","image":"<svg ...>","mods":["all_mods","golang.org/x/mod"],"mod":"all_mods"}
//	{"type":"mod","mod":"golang.org/x/mod"}
//
// # Directions
//
// Host to preview: [Initialize], [Restore], [Success], [Failure], [Serialize].
//
// Preview to host: [SerializeResponse], [Export], [Mod].
//
// Only [Initialize] and [Serialize] expect a correlated response. Everything
// else is fire-and-forget.
package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/matzehuels/modgraph/pkg/errors"
)

// Type is the discriminator carried in a message's "type" field.
type Type string

// Message kinds.
const (
	TypeInitialize        Type = "initialize"
	TypeRestore           Type = "restore"
	TypeSuccess           Type = "success"
	TypeFailure           Type = "failure"
	TypeSerialize         Type = "serialize"
	TypeSerializeResponse Type = "serializeResponse"
	TypeExport            Type = "export"
	TypeMod               Type = "mod"
)

// Message is implemented by every message kind in this package.
type Message interface {
	// Type returns the wire discriminator.
	Type() Type
	// ExpectsResponse reports whether the sender waits for a correlated reply.
	ExpectsResponse() bool

	isMessage()
}

// =============================================================================
// Host to preview
// =============================================================================

// Initialize tells a fresh preview page to start with an empty view state.
// The page answers with a null response once it is ready.
type Initialize struct{}

// Restore replays a view state previously returned by [SerializeResponse].
type Restore struct {
	Archive json.RawMessage `json:"archive"`
}

// Success carries a freshly rendered image. An empty Image means no graph was
// produced for the current selection.
type Success struct {
	Image string   `json:"image"`
	Mods  []string `json:"mods,omitempty"`
	Mod   string   `json:"mod,omitempty"`
}

// Failure carries a user-facing error message.
type Failure struct {
	Message string `json:"message"`
}

// Serialize asks the page for its current view state. The page answers with
// a [SerializeResponse].
type Serialize struct{}

// =============================================================================
// Preview to host
// =============================================================================

// SerializeResponse is the page's answer to [Serialize].
type SerializeResponse struct {
	Result json.RawMessage `json:"result"`
}

// Export asks the host to save the image the page currently displays.
type Export struct {
	Image string `json:"image"`
}

// Mod changes the selected module. The sentinel "all_mods" selects the full
// graph.
type Mod struct {
	Mod string `json:"mod"`
}

func (Initialize) Type() Type        { return TypeInitialize }
func (Restore) Type() Type           { return TypeRestore }
func (Success) Type() Type           { return TypeSuccess }
func (Failure) Type() Type           { return TypeFailure }
func (Serialize) Type() Type         { return TypeSerialize }
func (SerializeResponse) Type() Type { return TypeSerializeResponse }
func (Export) Type() Type            { return TypeExport }
func (Mod) Type() Type               { return TypeMod }

func (Initialize) ExpectsResponse() bool        { return true }
func (Restore) ExpectsResponse() bool           { return false }
func (Success) ExpectsResponse() bool           { return false }
func (Failure) ExpectsResponse() bool           { return false }
func (Serialize) ExpectsResponse() bool         { return true }
func (SerializeResponse) ExpectsResponse() bool { return false }
func (Export) ExpectsResponse() bool            { return false }
func (Mod) ExpectsResponse() bool               { return false }

func (Initialize) isMessage()        {}
func (Restore) isMessage()           {}
func (Success) isMessage()           {}
func (Failure) isMessage()           {}
func (Serialize) isMessage()         {}
func (SerializeResponse) isMessage() {}
func (Export) isMessage()            {}
func (Mod) isMessage()               {}

// =============================================================================
// Codec
// =============================================================================

// Encode marshals m as a JSON object with its "type" field set.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "cannot encode nil message")
	}
	body, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "encode %s", m.Type())
	}
	tag, _ := json.Marshal(string(m.Type()))

	var buf bytes.Buffer
	buf.Grow(len(body) + len(tag) + 9)
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if rest := bytes.TrimPrefix(body, []byte("{")); len(rest) > 1 {
		buf.WriteByte(',')
		buf.Write(rest)
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// Decode parses a JSON object produced by [Encode] into its concrete message
// type. The returned value is a struct, not a pointer, so callers switch on
// it directly:
//
//	switch m := msg.(type) {
//	case protocol.Mod:
//	    ...
//	}
func Decode(data []byte) (Message, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode message")
	}

	switch head.Type {
	case TypeInitialize:
		return Initialize{}, nil
	case TypeSerialize:
		return Serialize{}, nil
	case TypeRestore:
		return decodeAs[Restore](data)
	case TypeSuccess:
		return decodeAs[Success](data)
	case TypeFailure:
		return decodeAs[Failure](data)
	case TypeSerializeResponse:
		return decodeAs[SerializeResponse](data)
	case TypeExport:
		return decodeAs[Export](data)
	case TypeMod:
		return decodeAs[Mod](data)
	case "":
		return nil, errors.New(errors.ErrCodeUnknownMessage, "message has no type")
	default:
		return nil, errors.New(errors.ErrCodeUnknownMessage, "unknown message type %q", head.Type)
	}
}

func decodeAs[T Message](data []byte) (Message, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode %s", m.Type())
	}
	return m, nil
}
