// Command recycle-lint loads reset rules the way the API does and checks
// them against the types the built-in modules provide
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"recycle/internal/modkit"
	"recycle/internal/platform/config"
	"recycle/internal/reset"
	"recycle/internal/reset/rules"
	rewrite "recycle/internal/services/rewrite/module"
	"recycle/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type classOut struct {
	Class   string   `json:"class"`
	Origin  string   `json:"origin"`
	Fields  []string `json:"fields"`
	Matches []string `json:"matches,omitempty"`
}

type reportOut struct {
	Sources   []string   `json:"sources"`
	Classes   []classOut `json:"classes"`
	Unmatched []string   `json:"unmatched,omitempty"`
	Errors    []string   `json:"errors,omitempty"`
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("recycle-lint", flag.ContinueOnError)
	fs.SetOutput(stderr)
	root := fs.String("root", ".", "module root")
	configDir := fs.String("config", "etc", "base config dir, relative to -root")
	modules := fs.String("modules", "", "comma separated module dirs relative to -root (default: built-in modules)")
	asJSON := fs.Bool("json", false, "print a JSON report")
	showVersion := fs.Bool("version", false, "print build info and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		bi := version.Info("recycle-lint")
		fmt.Fprintf(stdout, "%s %s (%s, %s)\n", bi.Service, bi.Version, bi.Commit, bi.Date)
		return 0
	}

	cfgDir := *configDir
	if !filepath.IsAbs(cfgDir) {
		cfgDir = filepath.Join(*root, cfgDir)
	}
	dirs := []string{filepath.Join(*root, rewrite.Dir)}
	if *modules != "" {
		dirs = dirs[:0]
		for _, d := range strings.Split(*modules, ",") {
			if d = strings.TrimSpace(d); d != "" {
				dirs = append(dirs, filepath.Join(*root, d))
			}
		}
	}
	paths := rules.Paths(cfgDir, dirs)

	set, err := rules.Load(paths)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	rw, err := rewrite.New(modkit.Deps{Cfg: config.New().Prefix("RECYCLE_"), Root: *root})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	cat := reset.NewCatalog()
	if err := modkit.ClassesAll(cat, rw); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	rep := reset.Verify(set, cat, nil, rewrite.Types()...)
	out := reportOut{Sources: paths, Unmatched: rep.Unmatched}
	for _, class := range set.Classes() {
		fields, _ := set.Fields(class)
		c := classOut{Class: class, Origin: set.Origin(class), Fields: fields.Names()}
		for _, t := range rep.Matched[class] {
			c.Matches = append(c.Matches, t.String())
		}
		out.Classes = append(out.Classes, c)
	}
	for _, e := range rep.Errors {
		out.Errors = append(out.Errors, e.Error())
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	} else {
		printText(stdout, out, rewrite.Types())
	}
	if !rep.OK() {
		return 1
	}
	return 0
}

func printText(w io.Writer, out reportOut, types []reflect.Type) {
	for _, c := range out.Classes {
		fmt.Fprintf(w, "%s  (%s)\n", c.Class, c.Origin)
		fmt.Fprintf(w, "  fields:  %s\n", strings.Join(c.Fields, ", "))
		if len(c.Matches) > 0 {
			fmt.Fprintf(w, "  applies: %s\n", strings.Join(c.Matches, ", "))
		}
	}
	for _, u := range out.Unmatched {
		fmt.Fprintf(w, "warning: %s matches none of %d known types\n", u, len(types))
	}
	for _, e := range slices.Sorted(slices.Values(out.Errors)) {
		fmt.Fprintf(w, "error: %s\n", e)
	}
	fmt.Fprintf(w, "%d classes, %d errors\n", len(out.Classes), len(out.Errors))
}
