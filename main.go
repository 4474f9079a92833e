package main

import (
	"context"
	"log"

	"promo-task-bot/commands"
)

func main() {
	if err := commands.Execute(context.Background()); err != nil {
		log.Fatalf("❌ %v", err)
	}
}
