package main

import (
	"fmt"
	"os"

	"github.com/mfarias/salon-events/internal/export"
	"github.com/mfarias/salon-events/internal/record"
)

func main() {
	// Create a sample booking record
	rec := &record.Record{
		EventCode:    "33069",
		EventType:    "15 años",
		EventDate:    "12/09/2026",
		Venue:        "53 - DOT",
		ClientName:   "María López",
		HonoreeName:  "Sofía López",
		PhonePrimary: "541155551234",
		PackType:     "Pack Premium",
		SourceURL:    "https://example.com/evento?codigo=33069",
	}

	icsContent := export.GenerateICS(rec)

	// Write to file (owner read/write only for security)
	filename := "preview-salon-event.ics"
	if err := os.WriteFile(filename, []byte(icsContent), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated calendar file: %s\n\n", filename)
	fmt.Println("Test it by:")
	fmt.Println("1. Open the .ics file with your calendar app (double-click)")
	fmt.Println("2. Or import it into Google Calendar, Apple Calendar, or Outlook")
	fmt.Println("\nFile contents preview:")
	fmt.Println("---")
	fmt.Println(icsContent)
}
