// Command plctagctl is a terminal tag browser and trigger console: it
// loads a set of PLC identities from a YAML file, opens every listed
// tag against the core registry, and drives a tview table showing live
// status/value alongside a few read/write/abort keybindings. Grounded
// on teacher's cmd/warlink main (config.Load + tui.NewApp wiring),
// narrowed to this module's single-process, no-web-UI scope.
package main

import (
	"flag"
	"fmt"
	"os"

	"plctag"
	"plctag/config"
)

func main() {
	path := flag.String("config", DefaultPath(), "path to the PLC/tag config YAML file")
	flag.Parse()

	fileCfg, err := LoadFileConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plctagctl: %v\n", err)
		os.Exit(1)
	}

	reg := plctag.NewRegistry()
	for _, plc := range fileCfg.PLCs {
		for _, spec := range plc.Tags {
			cfg, err := config.FromAttributes(spec.attributes(plc))
			if err != nil {
				fmt.Fprintf(os.Stderr, "plctagctl: %s/%s: %v\n", plc.Name, spec.Name, err)
				continue
			}
			if _, err := reg.Create(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "plctagctl: %s/%s: %v\n", plc.Name, spec.Name, err)
			}
		}
	}

	tickler := plctag.NewTickler(reg)
	tickler.Start()
	defer tickler.Stop()

	app := NewApp(reg)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "plctagctl: %v\n", err)
		os.Exit(1)
	}
}
