// Command scriptcheck loads every module pack found under an asset root
// through a server-side sandbox and reports which ones fail to init. CI for
// module authors: a broken pack is caught before it ships.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/bytedance/sonic"

	"github.com/Thinkofname/UniverCity/internal/assets"
	"github.com/Thinkofname/UniverCity/internal/infrastructure/config"
	"github.com/Thinkofname/UniverCity/internal/logging"
	"github.com/Thinkofname/UniverCity/internal/script"
)

type report struct {
	Root    string         `json:"root"`
	Modules []moduleReport `json:"modules"`
	Failed  int            `json:"failed"`
}

type moduleReport struct {
	Name     string   `json:"name"`
	Loaded   bool     `json:"loaded"`
	Missions []string `json:"missions,omitempty"`
}

func main() {
	cfg := config.LoadOrDefault()

	root := flag.String("root", cfg.Assets.Root, "Asset root containing module packs")
	asJSON := flag.Bool("json", false, "Emit a JSON report")
	flag.Parse()

	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	store, err := assets.NewDirStore(*root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "asset root: %v\n", err)
		os.Exit(1)
	}

	engine, err := script.New(script.SideServer, store, script.WithLogger(log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
	if err := engine.Setup(); err != nil {
		fmt.Fprintf(os.Stderr, "setup: %v\n", err)
		os.Exit(1)
	}

	modules := store.Modules()
	sort.Strings(modules)

	out := report{Root: *root}
	for _, name := range modules {
		entry := moduleReport{Name: name, Loaded: engine.LoadModule(name)}
		if !entry.Loaded {
			out.Failed++
		}
		for _, m := range engine.Missions().All() {
			if m.Module == name {
				entry.Missions = append(entry.Missions, m.Key())
			}
		}
		out.Modules = append(out.Modules, entry)
	}

	if *asJSON {
		data, err := sonic.MarshalIndent(out, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
	} else {
		for _, m := range out.Modules {
			status := "ok"
			if !m.Loaded {
				status = "FAILED"
			}
			fmt.Printf("%-24s %s\n", m.Name, status)
		}
	}

	if out.Failed > 0 {
		os.Exit(1)
	}
}
