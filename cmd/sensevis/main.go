// Command sensevis renders sensor detections into occupancy images.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

type command struct {
	name  string
	usage string
	run   func(args []string, stdout io.Writer) error
}

var commands = []command{
	{"render", "render the exchange file as a live frame", runRender},
	{"batch", "render every row of a centroid CSV", runBatch},
	{"fetch", "trigger a sensor and write its detections to the exchange file", runFetch},
	{"serve", "serve the render API", runServe},
	{"migrate", "manage the render history schema", runMigrate},
	{"version", "print version information", runVersion},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: sensevis <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'sensevis <command> -h' for command flags.")
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	name, args := os.Args[1], os.Args[2:]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(args, os.Stdout); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			log.Fatalf("%s: %v", name, err)
		}
		return
	}
	if name == "help" || name == "-h" || name == "--help" {
		usage(os.Stdout)
		return
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
	usage(os.Stderr)
	os.Exit(2)
}
