//
//
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// frame is the superset of every tagged push payload.
type frame struct {
	Type     *string         `json:"type"`
	Position json.RawMessage `json:"position"`
	Couleur  json.RawMessage `json:"couleur"`
	Color    json.RawMessage `json:"color"`
}

// healthBody is the payload of GET /health and of health frames.
// Intervals are in milliseconds. "couleur" is what deployed sources send;
// "color" is accepted as well.
type healthBody struct {
	Position *float64 `json:"position"`
	Couleur  *float64 `json:"couleur"`
	Color    *float64 `json:"color"`
}

// DecodeFrame parses one push frame into an Update.
// Frames without a type tag, with an unknown tag, or with a malformed value
// return an error wrapping ErrMalformed.
func DecodeFrame(data []byte) (Update, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Update{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f.Type == nil {
		return Update{}, fmt.Errorf("%w: missing type tag", ErrMalformed)
	}

	switch *f.Type {
	case "position":
		var v Vector3
		if len(f.Position) == 0 {
			return Update{}, fmt.Errorf("%w: position frame without position", ErrMalformed)
		}
		if err := json.Unmarshal(f.Position, &v); err != nil {
			return Update{}, err
		}
		return PositionUpdate(v), nil
	case "couleur", "color":
		raw := f.Couleur
		if len(raw) == 0 {
			raw = f.Color
		}
		if len(raw) == 0 {
			return Update{}, fmt.Errorf("%w: color frame without color", ErrMalformed)
		}
		var c RGB
		if err := json.Unmarshal(raw, &c); err != nil {
			return Update{}, err
		}
		return ColorUpdate(c), nil
	case "health":
		h, err := DecodeHealth(data)
		if err != nil {
			return Update{}, err
		}
		return HealthUpdate(h), nil
	default:
		return Update{}, fmt.Errorf("%w: unknown frame type %q", ErrMalformed, *f.Type)
	}
}

// DecodeHealth parses {"position": <ms>, "couleur"|"color": <ms>}.
// Absent or non-positive intervals decode as zero.
func DecodeHealth(data []byte) (Health, error) {
	var body healthBody
	if err := json.Unmarshal(data, &body); err != nil {
		return Health{}, fmt.Errorf("%w: health: %v", ErrMalformed, err)
	}
	color := body.Couleur
	if color == nil {
		color = body.Color
	}
	return Health{
		Position: millis(body.Position),
		Color:    millis(color),
	}, nil
}

// EncodeHealth renders intervals the way sources report them.
func EncodeHealth(h Health) ([]byte, error) {
	return json.Marshal(map[string]int64{
		"position": h.Position.Milliseconds(),
		"couleur":  h.Color.Milliseconds(),
	})
}

// EncodeFrame renders an update as a tagged push frame.
func EncodeFrame(u Update) ([]byte, error) {
	switch u.Kind {
	case KindPosition:
		return json.Marshal(map[string]interface{}{"type": "position", "position": u.Position})
	case KindColor:
		return json.Marshal(map[string]interface{}{"type": "couleur", "couleur": u.Color})
	case KindHealth:
		return json.Marshal(map[string]interface{}{
			"type":     "health",
			"position": u.Health.Position.Milliseconds(),
			"couleur":  u.Health.Color.Milliseconds(),
		})
	default:
		return nil, fmt.Errorf("unknown update kind %d", u.Kind)
	}
}

func millis(v *float64) time.Duration {
	if v == nil || *v <= 0 {
		return 0
	}
	return time.Duration(*v * float64(time.Millisecond))
}
