package main

import (
	"context"

	"grapplersguide-dl/cmd/grapplersguide/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
