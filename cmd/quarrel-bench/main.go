package main

import (
	"os"

	"github.com/23skdu/longbow-bench/internal/commands"
)

func main() {
	os.Exit(commands.Execute())
}
