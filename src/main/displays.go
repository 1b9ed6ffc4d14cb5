package main

import (
	"log"

	"github.com/kbinani/screenshot"
)

func logDisplays() {
	n := screenshot.NumActiveDisplays()
	log.Printf("MONITOR: Detected %d displays", n)
	for i := 0; i < n; i++ {
		log.Printf("MONITOR: display %d bounds %v", i, screenshot.GetDisplayBounds(i))
	}
}
