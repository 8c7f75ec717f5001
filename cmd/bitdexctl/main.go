// The bitdexctl command issues estimate()/evaluate() requests against a
// running bitdexd and prints the JSON result. Grounded on camget's
// flag-parsing, single-purpose main (no cmdmain subcommand machinery,
// since this tool only ever does one thing per invocation).
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
)

var (
	flagServer = flag.String("server", "http://localhost:8081", "bitdexd base URL")
	flagMode   = flag.String("mode", "estimate", "estimate, evaluate, or histogram")
	flagFile   = flag.String("f", "-", "predicate JSON file, or - for stdin")
)

func main() {
	flag.Parse()

	switch *flagMode {
	case "estimate", "evaluate", "histogram":
	default:
		fmt.Fprintf(os.Stderr, "bitdexctl: -mode must be \"estimate\", \"evaluate\", or \"histogram\", got %q\n", *flagMode)
		os.Exit(2)
	}

	body, err := readPredicate(*flagFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bitdexctl: %v\n", err)
		os.Exit(1)
	}

	resp, err := http.Post(*flagServer+"/"+*flagMode, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "bitdexctl: request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bitdexctl: reading response: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "bitdexctl: server returned %s: %s\n", resp.Status, out)
		os.Exit(1)
	}

	var pretty map[string]any
	if err := json.Unmarshal(out, &pretty); err != nil {
		os.Stdout.Write(out)
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(pretty)
}

func readPredicate(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
