package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"guestms/internal/config"
	"guestms/internal/database"
	"guestms/internal/domain"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		roomsPath = flag.String("rooms", "configs/rooms.yaml", "path to rooms.yaml")
		dbPath    = flag.String("db", "./data/guestms.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*roomsPath)
	if err != nil {
		return fmt.Errorf("read rooms: %w", err)
	}
	var file config.RoomsFile
	if err = yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse rooms: %w", err)
	}
	rooms, err := file.BuildRooms()
	if err != nil {
		return err
	}
	if len(rooms) == 0 {
		return fmt.Errorf("no rooms in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := 0
	updated := 0
	for i := range rooms {
		room := rooms[i]
		existing, err := db.GetRoomByCode(ctx, room.Code)
		if err == nil {
			room.ID = existing.ID
			if err = db.UpdateRoom(ctx, &room); err != nil {
				return fmt.Errorf("update %s: %w", room.Code, err)
			}
			updated++
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("get %s: %w", room.Code, err)
		}
		if err = db.CreateRoom(ctx, &room); err != nil {
			return fmt.Errorf("create %s: %w", room.Code, err)
		}
		created++
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
