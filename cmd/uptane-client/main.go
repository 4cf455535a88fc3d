package main

import (
	"github.com/uptane/go-uptane/cmd/uptane-client/cmd"
)

func main() {
	cmd.Execute()
}
