package commands

import (
	"errors"
	"fmt"
	"os"

	"seatgrab/internal/components/serviceutil"
	"seatgrab/internal/components/telemetry"
	"seatgrab/internal/directory"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(roomsCmd)
	rootCmd.AddCommand(seatsCmd)
}

func mustDirectory() directory.Directory {
	config := mustConfig()
	dir, err := config.loadDirectory(telemetry.NewSlogAPI(nil))
	if err != nil {
		serviceutil.Fatal("failed to load room tables", err)
	}
	if len(dir.Rooms()) == 0 {
		serviceutil.Fatal("failed to load room tables", fmt.Errorf("no rooms in %s", config.Data.RoomMappings))
	}
	return dir
}

var roomsCmd = &cobra.Command{
	Use:   "rooms [name]",
	Short: "Lists the known rooms, or the rooms whose name looks like the one given.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := mustDirectory()

		rooms := dir.Rooms()
		if len(args) == 1 {
			rooms = nil
			for _, name := range dir.Suggest(args[0], 5) {
				id, err := dir.RoomID(name)
				if err != nil {
					continue
				}
				rooms = append(rooms, directory.Room{ID: id, Name: name})
			}
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Name", "Seats"})
		for _, room := range rooms {
			seats, _ := dir.Seats(room.ID)
			t.AppendRow(table.Row{room.ID, room.Name, len(seats)})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

var seatsCmd = &cobra.Command{
	Use:   "seats <room>",
	Short: "Prints the seat numbers of a room together with their seat keys.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := mustDirectory()

		roomID, err := resolveRoom(dir, args[0])
		if err != nil {
			serviceutil.Fatal("failed to resolve room", err)
		}
		seats, err := dir.Seats(roomID)
		if err != nil {
			serviceutil.Fatal("failed to list seats", err)
		}
		if len(seats) == 0 {
			serviceutil.Fatal("failed to list seats", errors.New("no seat table for this room"))
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Seat", "Key"})
		for _, number := range seats {
			key, _ := dir.SeatKey(roomID, number)
			t.AppendRow(table.Row{number, key})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
