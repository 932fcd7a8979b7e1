package main

import (
	"context"

	"github.com/couchcryptid/desalination-map/cmd/desalsnap/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
