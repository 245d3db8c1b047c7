// Package directory maps human readable room names and seat numbers to the opaque identifiers the
// reservation service expects. A Directory is loaded once and is read-only afterwards, it is safe
// to share between concurrent operations.
package directory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"seatgrab/internal/components/telemetry"

	"github.com/antzucaro/matchr"
	"github.com/titanous/json5"
)

const (
	report_load_seat_file = "load.seat-file"
)

var ErrNotFound = errors.New("not found")

// Room is one reservable room together with its seat table.
type Room struct {
	ID   string
	Name string
	// Seats maps a seat number to its seat key.
	Seats map[string]string
}

type Directory struct {
	byID   map[string]*Room
	byName map[string]*Room
}

// New builds a Directory out of an id -> name room table, it is meant for callers that already
// have the tables in memory.
func New(rooms map[string]string, seats map[string]map[string]string) Directory {
	d := Directory{
		byID:   make(map[string]*Room, len(rooms)),
		byName: make(map[string]*Room, len(rooms)),
	}
	for id, name := range rooms {
		room := &Room{ID: id, Name: name, Seats: seats[name]}
		if room.Seats == nil {
			room.Seats = map[string]string{}
		}
		d.byID[id] = room
		d.byName[name] = room
	}
	return d
}

// Load reads the room table at `roomFile` ({"<id>": "<name>"}) and every `<room name>.json` seat
// table ({"<seat number>": "<seat key>"}) in `seatDir`. Seat tables of unknown rooms or with an
// unexpected shape are skipped with a warning, a room table without rooms is an error.
func Load(roomFile, seatDir string, tel telemetry.API) (Directory, error) {
	tel = telemetry.NewScopedAPI("directory", tel)

	content, err := os.ReadFile(roomFile)
	if err != nil {
		return Directory{}, fmt.Errorf("read room table: %w", err)
	}
	var raw map[string]any
	err = json5.Unmarshal(content, &raw)
	if err != nil {
		return Directory{}, fmt.Errorf("parse room table %s: %w", roomFile, err)
	}
	if len(raw) == 0 {
		return Directory{}, fmt.Errorf("room table %s has no rooms", roomFile)
	}
	rooms := make(map[string]string, len(raw))
	for id, name := range raw {
		rooms[id] = scalar(name)
	}

	seats := map[string]map[string]string{}
	if seatDir != "" {
		seats, err = loadSeats(seatDir, rooms, tel)
		if err != nil {
			return Directory{}, err
		}
	}

	return New(rooms, seats), nil
}

func loadSeats(seatDir string, rooms map[string]string, tel telemetry.API) (map[string]map[string]string, error) {
	known := make(map[string]bool, len(rooms))
	for _, name := range rooms {
		known[name] = true
	}

	files, err := filepath.Glob(filepath.Join(seatDir, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		tel.ReportWarning(report_load_seat_file, fmt.Errorf("no seat tables in %s", seatDir))
	}

	out := map[string]map[string]string{}
	for _, path := range files {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if !known[name] {
			tel.ReportWarning(report_load_seat_file, fmt.Errorf("%s: unknown room '%s'", path, name))
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			tel.ReportWarning(report_load_seat_file, fmt.Errorf("%s: %w", path, err))
			continue
		}
		var raw any
		err = json5.Unmarshal(content, &raw)
		if err != nil {
			tel.ReportWarning(report_load_seat_file, fmt.Errorf("%s: %w", path, err))
			continue
		}
		table, ok := raw.(map[string]any)
		if !ok {
			tel.ReportWarning(report_load_seat_file, fmt.Errorf("%s: expected an object", path))
			continue
		}

		seats := make(map[string]string, len(table))
		for number, key := range table {
			seats[number] = scalar(key)
		}
		out[name] = seats
	}
	return out, nil
}

func scalar(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// RoomName returns the display name of a room id.
func (d Directory) RoomName(id string) (string, bool) {
	room, ok := d.byID[id]
	if !ok {
		return "", false
	}
	return room.Name, true
}

// RoomID returns the id of a room by its display name.
func (d Directory) RoomID(name string) (string, error) {
	room, ok := d.byName[name]
	if !ok {
		return "", fmt.Errorf("room '%s': %w", name, ErrNotFound)
	}
	return room.ID, nil
}

// SeatKey returns the key of a seat number within a room.
func (d Directory) SeatKey(roomID, number string) (string, error) {
	room, ok := d.byID[roomID]
	if !ok {
		return "", fmt.Errorf("room '%s': %w", roomID, ErrNotFound)
	}
	key, ok := room.Seats[number]
	if !ok {
		return "", fmt.Errorf("seat '%s' in '%s': %w", number, room.Name, ErrNotFound)
	}
	return key, nil
}

// SeatNumber returns the display number of a seat key within a room.
func (d Directory) SeatNumber(roomID, key string) (string, bool) {
	room, ok := d.byID[roomID]
	if !ok {
		return "", false
	}
	for number, k := range room.Seats {
		if k == key {
			return number, true
		}
	}
	return "", false
}

// Rooms returns every room sorted by display name.
func (d Directory) Rooms() []Room {
	out := make([]Room, 0, len(d.byID))
	for _, room := range d.byID {
		out = append(out, *room)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// Seats returns the seat numbers of a room in natural order.
func (d Directory) Seats(roomID string) ([]string, error) {
	room, ok := d.byID[roomID]
	if !ok {
		return nil, fmt.Errorf("room '%s': %w", roomID, ErrNotFound)
	}
	out := make([]string, 0, len(room.Seats))
	for number := range room.Seats {
		out = append(out, number)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) < len(out[j])
		}
		return out[i] < out[j]
	})
	return out, nil
}

// Suggest returns up to `limit` room names that look like `name`, best first.
func (d Directory) Suggest(name string, limit int) []string {
	type scored struct {
		name  string
		score float64
	}
	var candidates []scored
	for roomName := range d.byName {
		score := matchr.JaroWinkler(strings.ToLower(name), strings.ToLower(roomName), false)
		if score < 0.6 {
			continue
		}
		candidates = append(candidates, scored{name: roomName, score: score})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].name < candidates[j].name
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.name
	}
	return out
}

// Describe formats a room id and seat key for narration, unknown ids fall back to the raw value.
func (d Directory) Describe(roomID, seatKey string) (room string, seat string) {
	room = roomID
	if name, ok := d.RoomName(roomID); ok {
		room = name
	}
	seat = seatKey
	if number, ok := d.SeatNumber(roomID, seatKey); ok {
		seat = number
	}
	return room, seat
}
