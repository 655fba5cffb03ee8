package main

import (
	"log"

	"yashubustudio/bioscan/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("bioscan: %v", err)
	}
}
