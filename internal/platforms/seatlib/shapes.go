package seatlib

import (
	"encoding/json"
	"fmt"
)

// Mode selects which of the two mutually exclusive acquisition mutations is issued.
type Mode int

const (
	// ModeReserve reserves a seat for tomorrow through the `save` mutation.
	ModeReserve Mode = 1
	// ModeGrab takes a seat right now through the `reserveSeat` mutation.
	ModeGrab Mode = 2
)

func (m Mode) Valid() bool {
	return m == ModeReserve || m == ModeGrab
}

func (m Mode) String() string {
	switch m {
	case ModeReserve:
		return "reserve"
	case ModeGrab:
		return "grab"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// present reports whether a json field was sent with a non-null value.
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

type saveShape struct {
	Data *struct {
		UserAuth *struct {
			Prereserve *struct {
				Save json.RawMessage `json:"save"`
			} `json:"prereserve"`
		} `json:"userAuth"`
	} `json:"data"`
}

func (s saveShape) result() (json.RawMessage, bool) {
	if s.Data == nil || s.Data.UserAuth == nil || s.Data.UserAuth.Prereserve == nil {
		return nil, false
	}
	return s.Data.UserAuth.Prereserve.Save, present(s.Data.UserAuth.Prereserve.Save)
}

type reserveSeatShape struct {
	Data *struct {
		UserAuth *struct {
			Reserve *struct {
				ReserveSeat json.RawMessage `json:"reserveSeat"`
			} `json:"reserve"`
		} `json:"userAuth"`
	} `json:"data"`
}

func (s reserveSeatShape) result() (json.RawMessage, bool) {
	if s.Data == nil || s.Data.UserAuth == nil || s.Data.UserAuth.Reserve == nil {
		return nil, false
	}
	return s.Data.UserAuth.Reserve.ReserveSeat, present(s.Data.UserAuth.Reserve.ReserveSeat)
}

// SuccessResult checks a response body for the success shape of `mode` and returns the raw
// success value when it is present and non-null.
func SuccessResult(mode Mode, body string) (string, bool) {
	var (
		raw json.RawMessage
		ok  bool
	)
	switch mode {
	case ModeReserve:
		var shape saveShape
		if json.Unmarshal([]byte(body), &shape) != nil {
			return "", false
		}
		raw, ok = shape.result()
	case ModeGrab:
		var shape reserveSeatShape
		if json.Unmarshal([]byte(body), &shape) != nil {
			return "", false
		}
		raw, ok = shape.result()
	}
	if !ok {
		return "", false
	}
	return string(raw), true
}

// Prereservation is one row of the confirmation query.
type Prereservation struct {
	ID         any    `json:"id"`
	Day        string `json:"day"`
	LibID      any    `json:"lib_id"`
	LibName    string `json:"lib_name"`
	SeatKey    string `json:"seat_key"`
	SeatName   string `json:"seat_name"`
	IsUsed     bool   `json:"is_used"`
	UserMobile string `json:"user_mobile"`
}

func (p Prereservation) String() string {
	return fmt.Sprintf("%s %s seat %s (used: %v)", p.Day, p.LibName, p.SeatName, p.IsUsed)
}

type prereserveShape struct {
	Data *struct {
		UserAuth *struct {
			Prereserve *struct {
				Prereserve json.RawMessage `json:"prereserve"`
			} `json:"prereserve"`
		} `json:"userAuth"`
	} `json:"data"`
}

// DecodePrereservations reads the confirmation query's rows, the server sends either a single
// object or a list.
func DecodePrereservations(body string) ([]Prereservation, error) {
	var shape prereserveShape
	err := json.Unmarshal([]byte(body), &shape)
	if err != nil {
		return nil, err
	}
	if shape.Data == nil || shape.Data.UserAuth == nil || shape.Data.UserAuth.Prereserve == nil {
		return nil, fmt.Errorf("missing data.userAuth.prereserve")
	}
	raw := shape.Data.UserAuth.Prereserve.Prereserve
	if !present(raw) {
		return nil, nil
	}

	var list []Prereservation
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single Prereservation
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return []Prereservation{single}, nil
}
