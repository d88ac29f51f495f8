package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"github.com/logdht/blockaudit/pkg/blockfile"
	"github.com/logdht/blockaudit/pkg/scan"
	"github.com/logdht/blockaudit/pkg/sizeinfo"
	"github.com/logdht/blockaudit/pkg/stats"
)

// Command completer for readline
var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".stats"),
	readline.PcItem(".exit"),
	readline.PcItem("CHECK"),
	readline.PcItem("REPAIR"),
	readline.PcItem("RANGE"),
	readline.PcItem("SIZE"),
	readline.PcItem("READ"),
	readline.PcItem("FILTER",
		readline.PcItem("OFF"),
	),
)

const helpText = `
blockaudit - integrity inspector for block file stores

Commands:
  .help                   - Show this help message
  .stats                  - Show scan statistics
  .exit                   - Exit the program

  CHECK path              - Check a block file or channel directory
  REPAIR path             - Check and repair a block file or channel directory
  RANGE path              - Show the key range a block file is responsible for
  SIZE path               - Generate size information for a channel directory
  READ path               - Read and print a sizeinfo file
  FILTER op integer       - Restrict processing to matching block files
  FILTER OFF              - Clear the block filter
`

// runInteractive starts the interactive inspector shell
func runInteractive(ctx context.Context, walker *scan.Walker, filter *blockfile.Filter, collector *stats.AtomicCollector) int {
	fmt.Println("blockaudit interactive inspector")
	fmt.Println("Enter .help for usage hints.")

	// Setup readline with history support
	historyFile := filepath.Join(os.TempDir(), ".blockaudit_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "blockaudit> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %s\n", err)
		return exitFailure
	}
	defer rl.Close()

	walker.Filter = filter

	for {
		if filter != nil {
			rl.SetPrompt(fmt.Sprintf("blockaudit[%s]> ", filter))
		} else {
			rl.SetPrompt("blockaudit> ")
		}

		line, readErr := rl.Readline()
		if readErr != nil {
			if readErr == readline.ErrInterrupt {
				if len(line) == 0 {
					break
				}
				continue
			} else if readErr == io.EOF {
				fmt.Println("Goodbye!")
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %s\n", readErr)
			continue
		}

		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToUpper(parts[0])

		if strings.HasPrefix(cmd, ".") {
			switch strings.ToLower(cmd) {
			case ".help":
				fmt.Print(helpText)

			case ".stats":
				printStats(collector)

			case ".exit":
				fmt.Println("Goodbye!")
				return exitOK

			default:
				fmt.Printf("Unknown command: %s\n", parts[0])
			}
			continue
		}

		switch cmd {
		case "CHECK", "REPAIR":
			if len(parts) < 2 {
				fmt.Println("Error: Missing path argument")
				continue
			}
			if cmd == "REPAIR" {
				walker.Mode = scan.ModeRepair
			} else {
				walker.Mode = scan.ModeCheck
			}
			if code := runScan(ctx, walker, parts[1]); code != exitOK {
				fmt.Printf("Scan finished with exit code %d\n", code)
			}

		case "RANGE":
			if len(parts) < 2 {
				fmt.Println("Error: Missing path argument")
				continue
			}
			rng, err := blockfile.ResolveKeyRange(parts[1])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				continue
			}
			fmt.Printf("%s: %s\n", parts[1], rng)

		case "SIZE":
			if len(parts) < 2 {
				fmt.Println("Error: Missing path argument")
				continue
			}
			gen := sizeinfo.Generator{Filter: filter, BufferSize: walker.BufferSize}
			info, err := gen.Generate(parts[1])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				continue
			}
			fmt.Println(info)

		case "READ":
			if len(parts) < 2 {
				fmt.Println("Error: Missing path argument")
				continue
			}
			info, err := sizeinfo.ReadFile(parts[1])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				continue
			}
			fmt.Println(info)

		case "FILTER":
			if len(parts) < 2 {
				fmt.Println("Error: Missing filter expression")
				continue
			}
			if strings.EqualFold(parts[1], "OFF") {
				filter = nil
				walker.Filter = nil
				fmt.Println("Filter cleared")
				continue
			}
			parsed, err := blockfile.ParseFilter(strings.Join(parts[1:], " "))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				continue
			}
			filter = parsed
			walker.Filter = parsed
			fmt.Printf("Filter set to %s\n", parsed)

		default:
			fmt.Printf("Unknown command: %s\n", parts[0])
			fmt.Println("Enter .help for usage hints.")
		}
	}

	return exitOK
}

// printStats dumps the collector's view in a stable order.
func printStats(collector *stats.AtomicCollector) {
	all := collector.GetStats()

	keys := make([]string, 0, len(all))
	for key := range all {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch value := all[key].(type) {
		case map[string]interface{}:
			fmt.Printf("%s:\n", key)
			subKeys := make([]string, 0, len(value))
			for subKey := range value {
				subKeys = append(subKeys, subKey)
			}
			sort.Strings(subKeys)
			for _, subKey := range subKeys {
				fmt.Printf("  %s: %v\n", subKey, value[subKey])
			}
		case map[string]uint64:
			fmt.Printf("%s:\n", key)
			subKeys := make([]string, 0, len(value))
			for subKey := range value {
				subKeys = append(subKeys, subKey)
			}
			sort.Strings(subKeys)
			for _, subKey := range subKeys {
				fmt.Printf("  %s: %v\n", subKey, value[subKey])
			}
		default:
			fmt.Printf("%s: %v\n", key, value)
		}
	}
}
