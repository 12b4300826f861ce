// Command grausdbctl is a small demonstration CLI over a GrausDb store.
// It carries no storage logic; it only exercises the public facade.
package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"grausdb"
)

type options struct {
	Dir string `long:"dir" short:"d" description:"store directory" default:"."`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "grausdbctl:", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS] <get|set|rm|stat> [args...]"

	args, err := parser.ParseArgs(argv)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("expected a subcommand: get, set, rm, stat")
	}

	db, err := grausdb.Open(opts.Dir)
	if err != nil {
		return fmt.Errorf("open %s: %w", opts.Dir, err)
	}
	defer db.Close()

	switch cmd, rest := args[0], args[1:]; cmd {
	case "get":
		return runGet(db, rest)
	case "set":
		return runSet(db, rest)
	case "rm":
		return runRemove(db, rest)
	case "stat":
		return runStat(db)
	default:
		return fmt.Errorf("unknown subcommand %q", cmd)
	}
}

func runGet(db *grausdb.DB, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: get <key>")
	}
	value, found, err := db.Get([]byte(args[0]))
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("key not found")
	}
	fmt.Println(string(value))
	return nil
}

func runSet(db *grausdb.DB, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: set <key> <value>")
	}
	return db.Set([]byte(args[0]), []byte(args[1]))
}

func runRemove(db *grausdb.DB, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: rm <key>")
	}
	return db.Remove([]byte(args[0]))
}

func runStat(db *grausdb.DB) error {
	stats := db.Stats()
	fmt.Printf("keys=%d uncompacted_bytes=%d active_generation=%d segments=%d\n",
		stats.KeyCount, stats.UncompactedBytes, stats.ActiveGeneration, stats.SegmentCount)
	return nil
}
