package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/eak1mov/go-tmx/index"
	"github.com/eak1mov/go-tmx/store"
	"github.com/eak1mov/go-tmx/tile"
	"github.com/google/subcommands"
)

type convertCmd struct {
	inputFormat  string
	inputPath    string
	outputFormat string
	outputPath   string
}

func (c *convertCmd) Name() string     { return "convert" }
func (c *convertCmd) Synopsis() string { return "convert exported cells between storage formats" }
func (c *convertCmd) Usage() string {
	return "tmxutils convert -i <path> -o <path> [-if <format> | -of <format>]\n"
}
func (c *convertCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input path")
	f.StringVar(&c.inputFormat, "if", "", "Input format (sqlite, index)")
	f.StringVar(&c.outputPath, "o", "", "Output path")
	f.StringVar(&c.outputFormat, "of", "", "Output format (sqlite, index)")
}

func (c *convertCmd) Execute(_ context.Context, _ *flag.FlagSet, args ...any) subcommands.ExitStatus {
	e := envOf(args)

	var err error
	var reader tile.Visitor
	metadata := map[string]string{}
	switch format := deduceFormat(c.inputFormat, c.inputPath); format {
	case "sqlite":
		var r *store.Reader
		r, err = store.NewReader(c.inputPath)
		if err == nil {
			defer r.Close()
			metadata, err = r.ReadMetadata()
		}
		reader = r
	case "index":
		var data []byte
		data, err = os.ReadFile(c.inputPath)
		if err == nil {
			reader, err = index.NewReader(data)
		}
	default:
		log.Printf("invalid input format: %q", format)
		return subcommands.ExitFailure
	}
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	writer, closeWriter, err := openWriter(deduceFormat(c.outputFormat, c.outputPath), c.outputPath, metadata, e.logger)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	if err := writeCells(writer, closeWriter, reader); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
