package main

import (
	"log"

	"github.com/toy/git-dump/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		log.Fatalf("git-dump: %v", err)
	}
}
