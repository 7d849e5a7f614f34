package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/intellect4all/flashdb/flash"
	"github.com/intellect4all/flashdb/flashdb"
)

func main() {
	image := flag.String("image", "./flash.img", "Flash image file")
	blockSize := flag.Int("block-size", 4096, "Erase block size in bytes")
	blocks := flag.Int("blocks", 16, "Number of erase blocks")
	verbose := flag.Bool("v", false, "Log recovery and reclamation events")
	flag.Parse()

	dev, err := flash.OpenFile(*image, *blockSize, *blocks)
	if err != nil {
		log.Fatal(err)
	}
	defer dev.Close()

	config := flashdb.DefaultConfig()
	if *verbose {
		config.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	db, err := flashdb.Open(dev, config)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// Put some data
	db.Put([]byte("name"), []byte("Alice"))
	db.Put([]byte("age"), []byte("30"))
	db.Put([]byte("city"), []byte("NYC"))
	db.Put([]byte("city"), []byte("Lagos"))

	// Get data
	name, _ := db.Get([]byte("name"))
	fmt.Printf("Name: %s\n", name)

	// Walk every key
	for key, pos, ok := db.Iterate(0); ok; key, pos, ok = db.Iterate(pos) {
		value, err := db.Get([]byte(key))
		if err != nil {
			continue
		}
		fmt.Printf("  %s = %s\n", key, value)
	}

	if err := db.Compress(); err != nil {
		log.Fatal(err)
	}

	// Show stats
	stats := db.Stats()
	fmt.Printf("Stats: %+v\n", stats)
}
