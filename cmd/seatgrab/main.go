package main

import (
	"context"

	"seatgrab/cmd/seatgrab/commands"
	"seatgrab/internal/components/serviceutil"
)

func main() {
	ctx := serviceutil.SignalContext(context.Background())
	commands.ExecuteContext(ctx)
}
