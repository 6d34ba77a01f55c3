// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package ws

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/canonical/surrealq"
	"github.com/canonical/surrealq/internal/value"
)

// Encoding is the framing of RPC messages. It is negotiated as the
// websocket subprotocol.
type Encoding string

const (
	CBOR Encoding = "cbor"
	JSON Encoding = "json"
)

// codec encodes messages, held as Objects, into websocket frames and back.
type codec interface {
	messageType() int
	encode(msg surrealq.Object) ([]byte, error)
	decode(data []byte) (surrealq.Object, error)
}

func newCodec(enc Encoding) (codec, error) {
	switch enc {
	case CBOR:
		return cborCodec{}, nil
	case JSON:
		return jsonCodec{}, nil
	}
	return nil, fmt.Errorf("unknown encoding %q", enc)
}

type jsonCodec struct{}

func (jsonCodec) messageType() int {
	return websocket.TextMessage
}

// encode renders record ids as their text, JSON has no type for them.
func (jsonCodec) encode(msg surrealq.Object) ([]byte, error) {
	return value.MarshalJSON(msg)
}

func (jsonCodec) decode(data []byte) (surrealq.Object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var msg map[string]any
	if err := dec.Decode(&msg); err != nil {
		return nil, err
	}
	v, err := value.From(msg)
	if err != nil {
		return nil, err
	}
	o, ok := v.(surrealq.Object)
	if !ok {
		return nil, fmt.Errorf("need object, got %s", v.Kind())
	}
	return o, nil
}

// CBOR tags used by SurrealDB.
const (
	tagNone            = 6
	tagTable           = 7
	tagRecordID        = 8
	tagUUIDString      = 9
	tagDecimal         = 10
	tagDateCompact     = 12
	tagDuration        = 13
	tagDurationCompact = 14
	tagUUID            = 37
)

var cborDecMode = mustDecMode(cbor.DecOptions{
	DefaultMapType: reflect.TypeOf(map[string]any(nil)),
})

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	dm, err := opts.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}

type cborCodec struct{}

func (cborCodec) messageType() int {
	return websocket.BinaryMessage
}

func (cborCodec) encode(msg surrealq.Object) ([]byte, error) {
	return cbor.Marshal(toCBOR(msg))
}

func (cborCodec) decode(data []byte) (surrealq.Object, error) {
	var msg any
	if err := cborDecMode.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	v, err := fromCBOR(msg)
	if err != nil {
		return nil, err
	}
	o, ok := v.(surrealq.Object)
	if !ok {
		return nil, fmt.Errorf("need object, got %s", v.Kind())
	}
	return o, nil
}

func toCBOR(v surrealq.Value) any {
	switch v := v.(type) {
	case nil, surrealq.Null:
		return nil
	case surrealq.Bool:
		return bool(v)
	case surrealq.Number:
		if v.IsFloat() {
			return v.Float64()
		}
		return v.Int64()
	case surrealq.Strand:
		return string(v)
	case surrealq.Array:
		a := make([]any, len(v))
		for i, e := range v {
			a[i] = toCBOR(e)
		}
		return a
	case surrealq.Object:
		o := make(map[string]any, len(v))
		for k, e := range v {
			o[k] = toCBOR(e)
		}
		return o
	case surrealq.Thing:
		return cbor.Tag{Number: tagRecordID, Content: []any{v.Table, toCBOR(v.ID)}}
	}
	return nil
}

func fromCBOR(x any) (surrealq.Value, error) {
	switch x := x.(type) {
	case nil:
		return surrealq.Null{}, nil
	case []any:
		a := make(surrealq.Array, len(x))
		for i, e := range x {
			v, err := fromCBOR(e)
			if err != nil {
				return nil, err
			}
			a[i] = v
		}
		return a, nil
	case map[string]any:
		o := make(surrealq.Object, len(x))
		for k, e := range x {
			v, err := fromCBOR(e)
			if err != nil {
				return nil, err
			}
			o[k] = v
		}
		return o, nil
	case cbor.Tag:
		return fromCBORTag(x)
	}
	return value.From(x)
}

func fromCBORTag(tag cbor.Tag) (surrealq.Value, error) {
	switch tag.Number {
	case tagNone:
		return surrealq.Null{}, nil
	case tagRecordID:
		switch c := tag.Content.(type) {
		case string:
			return surrealq.ParseThing(c)
		case []any:
			if len(c) != 2 {
				break
			}
			table, ok := c[0].(string)
			if !ok {
				break
			}
			id, err := fromCBOR(c[1])
			if err != nil {
				return nil, err
			}
			return surrealq.Thing{Table: table, ID: id}, nil
		}
		return nil, fmt.Errorf("invalid record id content %v", tag.Content)
	case tagTable, tagUUIDString, tagDecimal, tagDuration:
		if s, ok := tag.Content.(string); ok {
			return surrealq.Strand(s), nil
		}
	case tagUUID:
		if b, ok := tag.Content.([]byte); ok {
			u, err := uuid.FromBytes(b)
			if err != nil {
				return nil, err
			}
			return surrealq.Strand(u.String()), nil
		}
	case tagDateCompact, tagDurationCompact:
		secs, nanos, ok := compactTime(tag.Content)
		if !ok {
			break
		}
		if tag.Number == tagDurationCompact {
			return surrealq.Strand((time.Duration(secs)*time.Second + time.Duration(nanos)).String()), nil
		}
		return surrealq.Strand(time.Unix(secs, nanos).UTC().Format(time.RFC3339Nano)), nil
	default:
		return fromCBOR(tag.Content)
	}
	return nil, fmt.Errorf("invalid content for tag %d: %v", tag.Number, tag.Content)
}

// compactTime reads the [seconds, nanoseconds] pair of the compact date and
// duration encodings. Both elements are optional.
func compactTime(content any) (secs, nanos int64, ok bool) {
	parts, ok := content.([]any)
	if !ok || len(parts) > 2 {
		return 0, 0, false
	}
	var out [2]int64
	for i, p := range parts {
		switch p := p.(type) {
		case uint64:
			out[i] = int64(p)
		case int64:
			out[i] = p
		default:
			return 0, 0, false
		}
	}
	return out[0], out[1], true
}
