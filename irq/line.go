package irq

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Line numbers an interrupt line.
type Line int

// Request is the payload carried on the bus when a line is raised.
type Request struct {
	Line   Line      `json:"line"`
	Value  uint32    `json:"value"`
	Raised time.Time `json:"raised"`
}

// Codec encodes requests on the bus.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	ContentType() string
}

type jsonCodec struct{}

func (jsonCodec) Encode(v any) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Decode(b []byte, v any) error { return json.Unmarshal(b, v) }
func (jsonCodec) ContentType() string          { return "application/json" }

// JSONCodec is the default request codec.
var JSONCodec Codec = jsonCodec{}

// ValidatePrefix reports whether prefix can head a literal NATS subject: dot
// separated non-empty tokens with no wildcards or whitespace.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return ErrInvalidPrefix
	}
	for token := range strings.SplitSeq(prefix, ".") {
		if token == "" || strings.ContainsAny(token, "*> \t\r\n") {
			return ErrInvalidPrefix
		}
	}
	return nil
}

func subject(prefix string, line Line) string {
	return prefix + "." + strconv.Itoa(int(line))
}
