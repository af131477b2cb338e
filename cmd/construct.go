// ===========================================================================
//
// File Name:  construct.go
//
// ===========================================================================

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"stringex/interactome"

	"go.uber.org/zap"
)

const constructHelp = `
Organism Selection

  -organism      Short name, common name, or taxonomy id
  -organisms     Several organisms up to the next flag
  -all           Every built-in organism

Layouts

  -layout        Algorithms up to the next flag, "name=algorithm" renames the output
  -recolor       Recluster existing functional layouts instead of building

Settings

  -config        YAML, TOML, or JSON settings file
  -source        STRING source directory
  -output        Output directory
  -overwrite     Replace existing outputs
  -name-clusters Query the STRING enrichment service for cluster labels
  -processes     Organisms built at the same time
  -workers       Goroutines per layout
  -log-level     debug, info, warn, or error
  -no-color      Plain log output

Layout Algorithms

  spring  kamada_kawai  random
  cg_local_tsne  cg_global_tsne  cg_importance_tsne  cg_functional_tsne
  cg_local_umap  cg_global_umap  cg_importance_umap  cg_functional_umap

Examples

  construct -organism human -layout spring cg_functional_umap
  construct -config stringex.yaml -all -layout cg_local_umap -processes 4
  construct -organisms yeast fly -recolor

`

// valuesUntilFlag collects arguments up to the next one starting with a hyphen
func valuesUntilFlag(args []string) ([]string, []string) {

	var vals []string
	for len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		vals = append(vals, args[0])
		args = args[1:]
	}
	return vals, args
}

// requireValue exits when a flag is not followed by its value
func requireValue(flag string, args []string) string {

	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		interactome.DisplayError("%s argument is missing", flag)
		os.Exit(1)
	}
	return args[0]
}

func requireNumber(flag string, args []string) int {

	val := requireValue(flag, args)
	num, err := strconv.Atoi(val)
	if err != nil || num < 0 {
		interactome.DisplayError("%s value '%s' is not a non-negative integer", flag, val)
		os.Exit(1)
	}
	return num
}

func main() {

	// skip past executable name
	args := os.Args[1:]

	if len(args) < 1 {
		interactome.DisplayError("No command-line arguments supplied to construct")
		os.Exit(1)
	}

	// config file is applied first so explicit flags override it
	cfg := interactome.DefaultConfig()
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-config" {
			loaded, err := interactome.LoadConfig(args[i+1])
			if err != nil {
				interactome.DisplayError("%s", err.Error())
				os.Exit(1)
			}
			cfg = loaded
		}
	}

	var orgKeys []string
	var layoutKeys []string
	doRecolor := false
	doAll := false

	for len(args) > 0 {

		switch args[0] {
		case "-help", "--help":
			fmt.Fprint(os.Stdout, constructHelp)
			return
		case "-config":
			// already loaded
			requireValue(args[0], args[1:])
			args = args[2:]
		case "-organism", "-org":
			orgKeys = append(orgKeys, requireValue(args[0], args[1:]))
			args = args[2:]
		case "-organisms", "-orgs":
			var vals []string
			vals, args = valuesUntilFlag(args[1:])
			if len(vals) == 0 {
				interactome.DisplayError("-organisms argument is missing")
				os.Exit(1)
			}
			orgKeys = append(orgKeys, vals...)
		case "-all":
			doAll = true
			args = args[1:]
		case "-layout", "-layouts":
			var vals []string
			vals, args = valuesUntilFlag(args[1:])
			if len(vals) == 0 {
				interactome.DisplayError("-layout argument is missing")
				os.Exit(1)
			}
			layoutKeys = append(layoutKeys, vals...)
		case "-recolor":
			doRecolor = true
			args = args[1:]
		case "-source":
			cfg.SourceDir = requireValue(args[0], args[1:])
			args = args[2:]
		case "-output":
			cfg.OutputDir = requireValue(args[0], args[1:])
			args = args[2:]
		case "-overwrite":
			cfg.Overwrite = true
			args = args[1:]
		case "-overwrite-links":
			cfg.OverwriteLinks = true
			args = args[1:]
		case "-rebuild-annotations":
			cfg.RebuildAnnotations = true
			args = args[1:]
		case "-name-clusters":
			cfg.NameClusters = true
			args = args[1:]
		case "-processes", "-proc":
			cfg.Processes = requireNumber(args[0], args[1:])
			args = args[2:]
		case "-workers":
			cfg.Workers = requireNumber(args[0], args[1:])
			args = args[2:]
		case "-max-links":
			cfg.MaxLinks = requireNumber(args[0], args[1:])
			args = args[2:]
		case "-log-level":
			cfg.LogLevel = requireValue(args[0], args[1:])
			args = args[2:]
		case "-no-color":
			cfg.NoColor = true
			args = args[1:]
		default:
			interactome.DisplayError("Unrecognized option '%s'", args[0])
			os.Exit(1)
		}
	}

	var orgs []interactome.Organism
	if doAll {
		orgs = interactome.Organisms()
	}
	for _, key := range orgKeys {
		org, err := interactome.LookupOrganism(key)
		if err != nil {
			interactome.DisplayError("%s", err.Error())
			os.Exit(1)
		}
		orgs = append(orgs, org)
	}
	if len(orgs) == 0 {
		interactome.DisplayError("No organism selected, use -organism or -all")
		os.Exit(1)
	}

	var reqs []interactome.LayoutRequest
	for _, key := range layoutKeys {
		req, err := interactome.ParseLayoutRequest(key)
		if err != nil {
			interactome.DisplayError("%s", err.Error())
			os.Exit(1)
		}
		reqs = append(reqs, req)
	}
	if len(reqs) == 0 && !doRecolor {
		interactome.DisplayWarning("No -layout given, building networks only")
	}

	log, err := interactome.NewLogger(cfg.LogLevel, cfg.NoColor)
	if err != nil {
		interactome.DisplayError("%s", err.Error())
		os.Exit(1)
	}
	defer log.Sync()

	var namer interactome.ClusterNamer = interactome.KeywordNamer{}
	if cfg.NameClusters {
		namer = interactome.ChainNamer{interactome.NewStringEnrichmentNamer(cfg), interactome.KeywordNamer{}}
	}

	pipe, err := interactome.NewPipeline(cfg, log, interactome.NewUniProtMapper(cfg), namer)
	if err != nil {
		interactome.DisplayError("%s", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()

	if doRecolor {
		failed := false
		for _, org := range orgs {
			if err := pipe.Recolor(ctx, org); err != nil {
				log.Error("recolor failed", zap.String("organism", org.Name), zap.Error(err))
				failed = true
			}
		}
		if failed {
			os.Exit(1)
		}
	} else if err := pipe.Run(ctx, orgs, reqs); err != nil {
		interactome.DisplayError("%s", err.Error())
		log.Sync()
		os.Exit(1)
	}

	log.Info("finished",
		zap.Int("organisms", len(orgs)),
		zap.Duration("elapsed", time.Since(startTime)))
}
