// inspect dumps raw store keys for debugging. Point it at a database
// directory that no server currently has open.
package main

import (
	"flag"
	"fmt"
	"os"

	"anonchat/pkg/logger"
	"anonchat/pkg/store"
)

func main() {
	var dbPath, prefix string
	var values bool
	flag.StringVar(&dbPath, "db", "", "path to pebble database directory")
	flag.StringVar(&prefix, "prefix", "", "key prefix filter (e.g. conv:, user:, game:)")
	flag.BoolVar(&values, "values", false, "print values as well as keys")
	flag.Parse()
	if dbPath == "" {
		fmt.Fprintln(os.Stderr, "-db required")
		os.Exit(2)
	}

	logger.Init("warn")
	if err := store.Open(dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "open failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	keys, err := store.ListKeys(prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list failed: %v\n", err)
		os.Exit(1)
	}
	for _, k := range keys {
		if values {
			v, err := store.GetKey(k)
			if err != nil {
				fmt.Printf("%s\t<error: %v>\n", k, err)
				continue
			}
			fmt.Printf("%s\t%s\n", k, v)
		} else {
			fmt.Println(k)
		}
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", len(keys))
}
