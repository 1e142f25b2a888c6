package main

import (
	_ "time/tzdata"

	"github.com/chitechevents/eventsync/internal/cli"
)

func main() {
	cli.Execute()
}
