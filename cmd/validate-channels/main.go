package main

import (
	"fmt"
	"os"

	"github.com/blockedby/tchan/internal/collector"
	"github.com/blockedby/tchan/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("No files to check.")
		os.Exit(0)
	}

	failed := false
	for _, path := range os.Args[1:] {
		channels, err := config.LoadChannelList(path)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			failed = true
			continue
		}

		bad := 0
		for _, ref := range channels {
			if !collector.ValidChannel(ref) {
				fmt.Printf("❌ %s: %q is not a public channel reference\n", path, ref)
				bad++
			}
		}
		if bad > 0 {
			failed = true
			continue
		}
		fmt.Printf("✅ %s is valid (%d channels)\n", path, len(channels))
	}

	if failed {
		os.Exit(1)
	}
}
