// btfbench measures construction and query latencies of the btf
// library on the target machine, per backend. Inspect the BTF data
// first to pick an id and a name to query, e.g. with
// `bpftool btf dump file /sys/kernel/btf/vmlinux`.
package main

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/sirupsen/logrus"

	"github.com/btf-go/btf"
)

type args struct {
	iterations int
	backend    string
	base       string
	split      string
	id         uint
	name       string
	regex      string
}

func parseArgs() (*args, error) {
	fs := flag.NewFlagSet("btfbench", flag.ExitOnError)

	var a args
	fs.IntVar(&a.iterations, "iterations", 50, "number of iterations to run each test case")
	fs.StringVar(&a.backend, "backend", "cache", "backend to use for storing parsed BTF data (cache or mmap)")
	fs.StringVar(&a.base, "base", "/sys/kernel/btf/vmlinux", "path to the base BTF file")
	fs.StringVar(&a.split, "split", "", "path to a split BTF file extending -base")
	fs.UintVar(&a.id, "id", 0, "id to use for resolving a base type")
	fs.StringVar(&a.name, "name", "", "name to use for resolving base types")
	fs.StringVar(&a.regex, "regex", "", "regex to use for resolving base types")

	err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("BTFBENCH"))
	return &a, err
}

// measure runs fn a.iterations times and logs the mean duration.
func measure(log *logrus.Logger, iterations int, name string, fn func() error) {
	start := time.Now()
	for i := 0; i < iterations; i++ {
		if err := fn(); err != nil {
			log.WithError(err).Fatalf("%s failed", name)
		}
	}
	log.Infof("%s %d ns", name, time.Since(start).Nanoseconds()/int64(iterations))
}

func main() {
	log := logrus.StandardLogger()

	a, err := parseArgs()
	if err != nil {
		log.WithError(err).Fatal("could not parse flags")
	}
	if a.iterations < 1 {
		log.Fatal("-iterations must be at least 1")
	}
	if a.id == 0 || a.name == "" {
		log.Fatal("-id and -name are required")
	}

	var backend btf.Backend
	switch a.backend {
	case "cache":
		backend = btf.Cache
	case "mmap":
		backend = btf.Mmap
	default:
		log.Fatalf("unknown backend %q", a.backend)
	}

	measure(log, a.iterations, "FromFile", func() error {
		b, err := btf.FromFileWithBackend(a.base, backend)
		if err != nil {
			return err
		}
		return b.Close()
	})

	base, err := btf.FromFileWithBackend(a.base, backend)
	if err != nil {
		log.WithError(err).Fatal("could not parse base BTF")
	}
	defer base.Close()

	b := base
	if a.split != "" {
		measure(log, a.iterations, "FromSplitFile", func() error {
			_, err := btf.FromSplitFile(a.split, base)
			return err
		})

		if b, err = btf.FromSplitFile(a.split, base); err != nil {
			log.WithError(err).Fatal("could not parse split BTF")
		}
	}

	measure(log, a.iterations, "TypeByID", func() error {
		_, err := b.TypeByID(btf.TypeID(a.id))
		return err
	})

	typ, err := b.TypeByID(btf.TypeID(a.id))
	if err != nil {
		log.WithError(err).Fatal("could not resolve type by id")
	}
	measure(log, a.iterations, "TypeName", func() error {
		_, err := b.TypeName(typ)
		return err
	})

	measure(log, a.iterations, "IDsByName", func() error {
		_, err := b.IDsByName(a.name)
		return err
	})

	measure(log, a.iterations, "TypesByName", func() error {
		_, err := b.TypesByName(a.name)
		return err
	})

	if a.regex != "" {
		re, err := regexp.Compile(a.regex)
		if err != nil {
			log.WithError(err).Fatal("could not compile regex")
		}

		measure(log, a.iterations, "IDsByRegex", func() error {
			ids, err := b.IDsByRegex(re)
			if err == nil && len(ids) == 0 {
				return fmt.Errorf("no ids match %q", a.regex)
			}
			return err
		})

		measure(log, a.iterations, "TypesByRegex", func() error {
			_, err := b.TypesByRegex(re)
			return err
		})
	}
}
