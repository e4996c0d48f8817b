package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "scrape":
		err = runScrape(args)
	case "download":
		err = runDownload(args)
	case "extract":
		err = runExtract(args)
	case "ingest":
		err = runIngest(args)
	case "search":
		err = runSearch(args)
	case "chat":
		err = runChat(args)
	case "serve":
		err = runServe(args)
	case "help", "-h", "-help", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `cylaw: tools for the cylaw.org case-law corpus

Usage:
  cylaw <command> [flags]

Commands:
  scrape     collect case indexes from cylaw.org
  download   fetch the case documents listed in the indexes
  extract    convert downloaded cases to Markdown
  ingest     chunk, embed and store parsed cases in Postgres
  search     query the vector store from the terminal
  chat       ask questions over the corpus interactively
  serve      run the HTTP search and chat API

Run 'cylaw <command> -h' for the command's flags.
`)
}
