// Command example reads a Google Sheet through a gsheets Connection and
// prints the result. It loads settings from a .env file when one exists:
//
//	GSHEETS_SECRETS=.secrets/gsheets.toml   # service-account mode
//	GSHEETS_URL=https://docs.google.com/... # or: public mode by URL
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/gsheets"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}

	ctx := context.Background()

	var conn *gsheets.Connection
	var err error
	switch {
	case os.Getenv("GSHEETS_SECRETS") != "":
		conn, err = gsheets.NewFromFile(ctx, os.Getenv("GSHEETS_SECRETS"))
	case os.Getenv("GSHEETS_URL") != "":
		conn, err = gsheets.New(ctx, gsheets.Config{Spreadsheet: os.Getenv("GSHEETS_URL")})
	default:
		log.Fatal("set GSHEETS_SECRETS or GSHEETS_URL")
	}
	if err != nil {
		log.Fatalf("connect: %v", err)
	}

	t, err := conn.Read(ctx, gsheets.WithTTL(time.Minute))
	if err != nil {
		log.Fatalf("read: %v", err)
	}

	fmt.Printf("%d rows, %d columns\n", t.NumRows(), t.NumCols())
	for i, col := range t.Columns {
		fmt.Printf("  %s (%s)\n", col, t.Types[i])
	}
	for i, row := range t.Rows {
		if i == 10 {
			fmt.Println("  ...")
			break
		}
		fmt.Printf("  %v\n", row)
	}
}
