package main

import (
	"log"

	"github.com/MrSnakeDoc/madeline/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ madeline failed: %v", err)
	}
}
