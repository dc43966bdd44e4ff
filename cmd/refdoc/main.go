package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "refdoc: load .env: %v\n", err)
		os.Exit(1)
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("refdoc"),
		kong.Description("Validate, cross-reference and render a corpus of reference documents."),
		kong.UsageOnError(),
		cliVars(version),
	)
	err := ctx.Run(&cli.Globals)
	if errors.Is(err, errRunFailed) {
		os.Exit(1)
	}
	ctx.FatalIfErrorf(err)
}
