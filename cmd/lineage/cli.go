package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "hash":
		return runHash(args[2:])
	case "doc":
		if len(args) >= 3 && args[2] == "inspect" {
			return runDocInspect(args[3:])
		}
	case "view":
		return runView(args[2:])
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "lineage"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s hash --in <file> [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s doc inspect --in <document.json> [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s view --in <document.json> --seed <oid>[,<oid>] [--privileges <class>[,<class>]] [--actor <id>] [--direction ancestors|descendants|both] [--depth <n>] [--placeholder infer|hide] [--policy <rego file or dir>] [--out <file>]\n", name)
}
