// Command docdb builds, inspects and queries docdb index blobs.
//
//	docdb build   -in records.jsonl -out index.ddb [-compress zstd]
//	docdb inspect -index index.ddb
//	docdb query   -config docdb.yaml [-k 5] [-min-score 0.2] [-fetch] <text>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (for API keys)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "build":
		err = runBuild(ctx, os.Args[2:])
	case "inspect":
		err = runInspect(ctx, os.Args[2:])
	case "query":
		err = runQuery(ctx, os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: docdb <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  build    encode a JSONL record file into an index blob\n")
	fmt.Fprintf(os.Stderr, "  inspect  print the header and tags of an index blob\n")
	fmt.Fprintf(os.Stderr, "  query    search an index and optionally fetch documents\n")
}
