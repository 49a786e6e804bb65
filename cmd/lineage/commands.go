package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"lineage/internal/domain"
	"lineage/internal/infra/hashing"
	"lineage/internal/infra/interchange"
	"lineage/internal/infra/logging"
	"lineage/internal/infra/memstore"
	"lineage/internal/infra/policyopa"
	"lineage/internal/usecase"
)

func runHash(args []string) int {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var outPath string
	fs.StringVar(&inPath, "in", "", "input file")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "hash requires --in")
		return 1
	}

	sum, err := hashing.SHA256File(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash input: %v\n", err)
		return 1
	}
	return writeOutput(outPath, []byte(fmt.Sprintf("sha256=%s\n", sum)))
}

func runDocInspect(args []string) int {
	fs := flag.NewFlagSet("doc inspect", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var outPath string
	var verbose bool
	fs.StringVar(&inPath, "in", "", "interchange document")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")
	fs.BoolVar(&verbose, "v", false, "log skipped items")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "doc inspect requires --in")
		return 1
	}

	col, seeds, err := decodeFile(inPath, verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode document: %v\n", err)
		return 1
	}
	var b strings.Builder
	fmt.Fprintf(&b, "nodes=%d edges=%d npes=%d actors=%d seeds=%d\n",
		col.NodeCount(), col.EdgeCount(), col.NPECount(), col.ActorCount(), len(seeds))
	counts := map[domain.NodeKind]int{}
	for _, n := range col.NodesByCreated() {
		counts[n.Kind()]++
	}
	for _, kind := range []domain.NodeKind{domain.KindData, domain.KindInvocation, domain.KindWorkflow, domain.KindActivity, domain.KindTaint, domain.KindGeneric} {
		if counts[kind] > 0 {
			fmt.Fprintf(&b, "kind.%s=%d\n", kind, counts[kind])
		}
	}
	if dangling := len(col.DanglingEdges()); dangling > 0 {
		fmt.Fprintf(&b, "dangling_edges=%d\n", dangling)
	}
	return writeOutput(outPath, []byte(b.String()))
}

func runView(args []string) int {
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var outPath string
	var seedList string
	var privilegeList string
	var actorID string
	var direction string
	var depth int
	var placeholderName string
	var policyPath string
	var verbose bool
	fs.StringVar(&inPath, "in", "", "interchange document")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")
	fs.StringVar(&seedList, "seed", "", "comma separated seed ids (default: the document's seeds)")
	fs.StringVar(&privilegeList, "privileges", "", "comma separated viewer privilege classes")
	fs.StringVar(&actorID, "actor", "", "viewer actor id")
	fs.StringVar(&direction, "direction", string(domain.DirectionBoth), "ancestors, descendants or both")
	fs.IntVar(&depth, "depth", domain.Unlimited, "maximum traversal depth, -1 for unlimited")
	fs.StringVar(&placeholderName, "placeholder", "infer", "placeholder edge policy, infer or hide")
	fs.StringVar(&policyPath, "policy", "", "rego edge policy registered as the policy surrogate function")
	fs.BoolVar(&verbose, "v", false, "log engine decisions")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "view requires --in")
		return 1
	}
	dir, ok := domain.ParseDirection(direction)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown direction %q\n", direction)
		return 1
	}
	if depth < domain.Unlimited {
		fmt.Fprintln(os.Stderr, "depth must be -1 or greater")
		return 1
	}
	placeholder := domain.InferAll
	switch placeholderName {
	case "infer":
	case "hide":
		placeholder = domain.HideAll
	default:
		fmt.Fprintf(os.Stderr, "unknown placeholder policy %q\n", placeholderName)
		return 1
	}

	col, docSeeds, err := decodeFile(inPath, verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode document: %v\n", err)
		return 1
	}
	seeds := splitList(seedList)
	if len(seeds) == 0 {
		seeds = docSeeds
	}
	if len(seeds) == 0 {
		fmt.Fprintln(os.Stderr, "view requires --seed or a document with seeds")
		return 1
	}

	ctx := context.Background()
	registry := usecase.DefaultSurrogateRegistry()
	if policyPath != "" {
		voter, err := policyopa.NewVoterFromPath(ctx, policyPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load edge policy: %v\n", err)
			return 1
		}
		registry.Register(policyopa.SurrogateFunc(voter))
	}

	store := memstore.New()
	svc := usecase.NewLineageService(store, store, usecase.ServiceOptions{
		Registry:    registry,
		Placeholder: placeholder,
		Logger:      cliLogger(verbose),
	})
	if err := svc.Lattice.Seed(ctx, domain.WellKnownLattice()); err != nil {
		fmt.Fprintf(os.Stderr, "seed lattice: %v\n", err)
		return 1
	}
	if _, err := svc.Report(ctx, col); err != nil {
		fmt.Fprintf(os.Stderr, "load document: %v\n", err)
		return 1
	}

	settings := domain.DefaultTraversal()
	settings.Direction = dir
	settings.MaxDepth = depth
	viewer := domain.Viewer{ActorID: actorID, Privileges: domain.NewPrivilegeSet(splitList(privilegeList)...)}
	dag, err := svc.GetGraph(ctx, seeds, viewer, settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build view: %v\n", err)
		return 1
	}
	out, err := interchange.NewCodec(nil).EncodeView(dag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode view: %v\n", err)
		return 1
	}
	return writeOutput(outPath, append(out, '\n'))
}

func decodeFile(path string, verbose bool) (*domain.Collection, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return interchange.NewCodec(cliLogger(verbose)).DecodeReader(f)
}

func cliLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := logging.New("debug")
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func splitList(raw string) []string {
	return lo.FilterMap(strings.Split(raw, ","), func(item string, _ int) (string, bool) {
		item = strings.TrimSpace(item)
		return item, item != ""
	})
}

func writeOutput(path string, data []byte) int {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create output: %v\n", err)
			return 1
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}
