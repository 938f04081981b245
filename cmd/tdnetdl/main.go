package main

import (
	"context"

	"TdnetDownloader/cmd/tdnetdl/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
