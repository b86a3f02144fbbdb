package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"maps"
	"os"
	"runtime/debug"
	"slices"
	"sort"
	"strings"

	"github.com/amterp/color"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/arnedal/modwire"
	"github.com/arnedal/modwire/internal/logging"
	"github.com/arnedal/modwire/internal/manifest"
)

var (
	hicyanf  = color.New(color.FgHiCyan).SprintfFunc()
	hiblackf = color.New(color.FgHiBlack).SprintfFunc()
)

type outputFn = func(wires modwire.WireMap, roots []modwire.Resource) error

var allOutputFuncs = [...]outputFn{
	outputTree,
	outputRaw,
	outputDot,
}

var allOutput = map[string]*outputFn{
	"tree": &allOutputFuncs[0],
	"raw":  &allOutputFuncs[1],
	"dot":  &allOutputFuncs[2],
}

type config struct {
	files  []string
	output *outputFn
}

func ver() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "(devel)" {
		return ""
	}
	return bi.Main.Version
}

func resourceLabel(r modwire.Resource) string {
	if s, ok := r.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%p", r)
}

func sortedRoots(wires modwire.WireMap) []modwire.Resource {
	out := make([]modwire.Resource, 0, len(wires))
	for r := range wires {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return resourceLabel(out[i]) < resourceLabel(out[j]) })
	return out
}

func outputTree(wires modwire.WireMap, roots []modwire.Resource) error {
	optionalMsg := hicyanf(" (optional)")
	seenMsg := hiblackf(" (repeat)")
	seen := mapset.NewSet[modwire.Resource]()
	var visit func(r modwire.Resource, indent int)
	visit = func(r modwire.Resource, indent int) {
		wasSeen := !seen.Add(r)
		fmt.Print(strings.Repeat("  ", indent))
		fmt.Print(resourceLabel(r))
		if wasSeen {
			fmt.Print(seenMsg)
		}
		fmt.Print("\n")
		if wasSeen {
			return
		}
		for _, w := range wires[r] {
			fmt.Print(strings.Repeat("  ", indent+1))
			fmt.Printf("[%s] -> ", w.Requirement.Namespace())
			if modwire.IsOptional(w.Requirement) {
				fmt.Printf("%s%s\n", resourceLabel(w.Provider), optionalMsg)
			} else {
				fmt.Printf("%s\n", resourceLabel(w.Provider))
			}
			visit(w.Provider, indent+2)
		}
	}
	for _, r := range roots {
		visit(r, 0)
	}
	return nil
}

func outputRaw(wires modwire.WireMap, roots []modwire.Resource) error {
	for _, r := range sortedRoots(wires) {
		for _, w := range wires[r] {
			fmt.Printf("%s -[%s]-> %s\n", resourceLabel(w.Requirer), w.Requirement.Namespace(), resourceLabel(w.Provider))
		}
	}
	return nil
}

func outputDot(wires modwire.WireMap, roots []modwire.Resource) error {
	visited := mapset.NewSet[modwire.Resource]()
	node := func(r modwire.Resource) {
		if !visited.Add(r) {
			return
		}
		fmt.Printf("  %q [];\n", resourceLabel(r))
	}
	fmt.Print("digraph {\n")
	fmt.Print("  outputorder=\"edgesfirst\";\n")
	fmt.Print("  node [style=filled,fillcolor=\"white\",shape=box];\n")
	for _, r := range sortedRoots(wires) {
		node(r)
		for _, w := range wires[r] {
			node(w.Provider)
			style := ""
			if modwire.IsOptional(w.Requirement) {
				style = " style=\"dashed\""
			}
			fmt.Printf("  %q -> %q [label=%q%s];\n", resourceLabel(r), resourceLabel(w.Provider), w.Requirement.Namespace(), style)
		}
	}
	fmt.Print("}\n")
	return nil
}

func run(ctx context.Context, cfg *config, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	rc, _, err := manifest.Load(data)
	if err != nil {
		return err
	}
	wires, err := modwire.Resolve(ctx, rc)
	if err != nil {
		return err
	}
	return (*cfg.output)(wires, rc.MandatoryResources())
}

var slogLevel = func() *slog.LevelVar {
	lvl := &slog.LevelVar{}
	lvl.Set(logging.LevelInfo)
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
	return lvl
}()

func choiceFlag[T any](p *T, name string, choices map[string]T, dflt string, usage string) {
	cstr := strings.Join(slices.Sorted(maps.Keys(choices)), ", ")
	var ok bool
	if *p, ok = choices[dflt]; !ok {
		panic(fmt.Errorf("invalid default for %v option: %v", dflt, name))
	}
	usage += fmt.Sprintf(" (one of: %v; default: %v)", cstr, dflt)
	flag.Func(name, usage, func(arg string) error {
		if arg == "" {
			arg = dflt
		}
		v, ok := choices[arg]
		if !ok {
			return fmt.Errorf("expected one of: %v", cstr)
		}
		*p = v
		return nil
	})
}

func parseFlags() *config {
	cfg := &config{}

	bumpLogLevel := func(lower bool) {
		slogLevel.Set(logging.BumpLevel(slogLevel.Level(), lower))
	}
	setLogLevel := func(arg string) error {
		lvl, err := logging.StringToLevel(arg)
		if err != nil {
			return err
		}
		slogLevel.Set(lvl)
		return nil
	}
	flag.BoolFunc("v", "Increase log verbosity.", func(arg string) error {
		switch arg {
		case "", "true":
			bumpLogLevel(true)
		default:
			return setLogLevel(arg)
		}
		return nil
	})
	flag.BoolFunc("q", "Decrease log verbosity.", func(arg string) error {
		switch arg {
		case "", "true":
			bumpLogLevel(false)
		default:
			return setLogLevel(arg)
		}
		return nil
	})

	colorChoices := map[string]bool{
		"auto":   color.NoColor,
		"never":  true,
		"always": false,
	}
	choiceFlag(&color.NoColor, "color", colorChoices, "auto", "Output colors according to `mode`.")
	choiceFlag(&cfg.output, "format", allOutput, "tree", "Print resolved wires according to `mode`.")

	help := func(string) error {
		flag.CommandLine.SetOutput(os.Stdout)
		flag.Usage()
		os.Exit(0)
		return nil
	}
	helpUsage := "Print usage information and exit."
	flag.BoolFunc("h", helpUsage, help)
	flag.BoolFunc("help", helpUsage, help)
	flag.BoolFunc("version", "Print the version and exit.", func(string) error {
		v := ver()
		if v == "" {
			log.Fatal("the Go build information is unavailable; try passing the \"-buildvcs=true\" build option to go")
		}
		fmt.Printf("%s\n", v)
		os.Exit(0)
		return nil
	})

	flag.Parse()
	cfg.files = flag.Args()
	if len(cfg.files) == 0 {
		log.Fatal("at least one manifest file is required")
	}
	return cfg
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := parseFlags()
	for _, file := range cfg.files {
		if err := run(ctx, cfg, file); err != nil {
			slog.ErrorContext(ctx, "failed", "error", err, "file", file)
			os.Exit(1)
		}
	}
}
