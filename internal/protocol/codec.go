package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrUnknownType is returned when a message carries a type outside the
// closed set for its direction.
var ErrUnknownType = errors.New("unknown message type")

// EncodeHost serialises a host message into its envelope form.
func EncodeHost(m HostMessage) ([]byte, error) {
	return encode(m.Type(), m)
}

// EncodeFrame serialises a frame message into its envelope form.
func EncodeFrame(m FrameMessage) ([]byte, error) {
	return encode(m.Type(), m)
}

func encode(t Type, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", t, err)
	}
	out, err := json.Marshal(Envelope{Type: t, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encoding %s envelope: %w", t, err)
	}
	return out, nil
}

// DecodeFrame parses a message received from a frame.
func DecodeFrame(raw []byte) (FrameMessage, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case TypeReady:
		return asFrame[Ready](env)
	case TypeClick:
		return asFrame[Click](env)
	case TypeDblClick:
		return asFrame[DblClick](env)
	case TypeKeydown:
		return asFrame[Keydown](env)
	case TypeContextMenu:
		return asFrame[ContextMenu](env)
	case TypeOutline:
		return asFrame[Outline](env)
	case TypeCurrentOutlineItem:
		return asFrame[CurrentOutlineItem](env)
	case TypeDestination:
		return asFrame[Destination](env)
	default:
		return nil, fmt.Errorf("%w %q from frame", ErrUnknownType, env.Type)
	}
}

// DecodeHost parses a message received from the host.
func DecodeHost(raw []byte) (HostMessage, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case TypeRefresh:
		return asHost[Refresh](env)
	case TypeReload:
		return asHost[Reload](env)
	case TypeSetPosition:
		return asHost[SetPosition](env)
	case TypeSetDestination:
		return asHost[SetDestination](env)
	case TypeInvert:
		return asHost[Invert](env)
	case TypeCurrentDest:
		return asHost[CurrentDest](env)
	default:
		return nil, fmt.Errorf("%w %q from host", ErrUnknownType, env.Type)
	}
}

func decodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Type == "" {
		return env, errors.New("decoding envelope: missing type")
	}
	return env, nil
}

func asFrame[T FrameMessage](env Envelope) (FrameMessage, error) {
	v, err := decodePayload[T](env)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func asHost[T HostMessage](env Envelope) (HostMessage, error) {
	v, err := decodePayload[T](env)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// decodePayload unmarshals the envelope data into T. An absent payload
// yields the zero value.
func decodePayload[T any](env Envelope) (T, error) {
	var v T
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return v, fmt.Errorf("decoding %s payload: %w", env.Type, err)
	}
	return v, nil
}

// InversePoint converts a double click into the page number and point the
// synchronisation tool expects: one-based page, origin at the top left,
// whole points.
func (c DblClick) InversePoint() (page int, x, y float64) {
	return c.PageIndex + 1, math.Floor(c.PointX), math.Floor(c.Height - c.PointY)
}
