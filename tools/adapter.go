package tools

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/carbocation/colotools/gate"
	"github.com/valyala/fasttemplate"
)

// Input is a file an adapter needs in its pair directory.
type Input string

const (
	// InputGWAS and InputQTL are the two sides' rows at the shared
	// positions, with their original headers.
	InputGWAS Input = "gwas.tsv"
	InputQTL  Input = "qtl.tsv"

	// InputMerged joins both sides on position, one row per shared variant.
	InputMerged Input = "merged.tsv"

	// InputGWASZ and InputQTLZ list variant id and z-score per side.
	InputGWASZ Input = "gwas.z"
	InputQTLZ  Input = "qtl.z"

	// InputSNPs lists the shared variant ids, one per line, for restricting
	// LD computations.
	InputSNPs Input = "snps.txt"

	// InputLD is the square r matrix of the shared variants, in the order
	// of the other inputs, computed by plink from the LD reference.
	InputLD Input = "pair.ld"
)

// Adapter describes how one external tool is run over a GWAS/QTL pair.
type Adapter struct {
	Name   string
	Binary string

	// Args are fasttemplate strings. Available tags are the pair inputs
	// ({{gwas}}, {{qtl}}, {{merged}}, {{gwas_z}}, {{qtl_z}}, {{snps}},
	// {{ld_matrix}}), the
	// pair's {{dir}}, {{output}}, {{prefix}}, {{chrom}}, {{lead}},
	// {{phenotype}}, {{gene}}, {{ld}} (the reference panel for the
	// chromosome), and every key of Extra.
	Args []string

	// Output is the report file name, relative to the pair directory.
	Output string

	Inputs []Input
	Policy gate.Policy

	ScoreColumn string

	// LowerIsBetter is set for p-value scores. Otherwise the largest score
	// (a posterior probability) is reported.
	LowerIsBetter bool

	// Workers bounds concurrent invocations. Throttle, when positive, caps
	// concurrent invocations instead and is used by tools that are heavy
	// on shared resources.
	Workers  int
	Throttle int

	Extra map[string]string
}

// Builtins returns the adapters colotools knows how to run.
func Builtins() map[string]Adapter {
	return map[string]Adapter{
		"coloc": {
			Name:        "coloc",
			Binary:      "coloc.R",
			Args:        []string{"--input", "{{merged}}", "--out", "{{output}}"},
			Output:      "coloc.tsv",
			Inputs:      []Input{InputMerged},
			Policy:      gate.Policy{MinMatching: 0},
			ScoreColumn: "PP.H4.abf",
		},
		"ecaviar": {
			Name:   "ecaviar",
			Binary: "eCAVIAR",
			Args: []string{"-o", "{{prefix}}",
				"-l", "{{ld_matrix}}", "-l", "{{ld_matrix}}",
				"-z", "{{gwas_z}}", "-z", "{{qtl_z}}", "-f", "1"},
			Output:      "ecaviar_col",
			Inputs:      []Input{InputGWASZ, InputQTLZ, InputSNPs, InputLD},
			Policy:      gate.Policy{MinMatching: 2, RequireDirectOverlap: true},
			ScoreColumn: "CLPP",
		},
		"fastenloc": {
			Name:        "fastenloc",
			Binary:      "fastenloc",
			Args:        []string{"-eqtl", "{{qtl}}", "-gwas", "{{gwas}}", "-prefix", "{{prefix}}"},
			Output:      "enloc.snp.out",
			Inputs:      []Input{InputGWAS, InputQTL},
			Policy:      gate.Policy{MinMatching: 2, RequireDirectOverlap: true},
			ScoreColumn: "RCP",
		},
		"smr": {
			Name:          "smr",
			Binary:        "smr",
			Args:          []string{"--bfile", "{{ld}}", "--gwas-summary", "{{gwas}}", "--beqtl-summary", "{{qtl}}", "--extract-snp", "{{snps}}", "--out", "{{prefix}}"},
			Output:        "smr.smr",
			Inputs:        []Input{InputGWAS, InputQTL, InputSNPs},
			Policy:        gate.Policy{MinMatching: 1},
			ScoreColumn:   "p_SMR",
			LowerIsBetter: true,
		},
		"predixcan": {
			Name:          "predixcan",
			Binary:        "SPrediXcan.py",
			Args:          []string{"--gwas_file", "{{gwas}}", "--snp_column", "variant_id", "--output_file", "{{output}}"},
			Output:        "predixcan.csv",
			Inputs:        []Input{InputGWAS, InputSNPs},
			Policy:        gate.Policy{MinMatching: 1},
			ScoreColumn:   "pvalue",
			LowerIsBetter: true,
		},
		"twas": {
			Name:          "twas",
			Binary:        "FUSION.assoc_test.R",
			Args:          []string{"--sumstats", "{{gwas}}", "--ref_ld_chr", "{{ld}}", "--chr", "{{chrom}}", "--out", "{{output}}"},
			Output:        "twas.dat",
			Inputs:        []Input{InputGWAS, InputSNPs},
			Policy:        gate.Policy{MinMatching: 1},
			ScoreColumn:   "TWAS.P",
			LowerIsBetter: true,
			Throttle:      50,
		},
	}
}

// Override holds the configurable parts of an adapter. Zero values keep the
// built-in setting.
type Override struct {
	Name        string            `yaml:"name"`
	Binary      string            `yaml:"binary"`
	Args        []string          `yaml:"args"`
	MinMatching *int              `yaml:"min_matching"`
	Workers     int               `yaml:"workers"`
	Throttle    *int              `yaml:"throttle"`
	Extra       map[string]string `yaml:"extra"`
}

// Lookup returns the built-in adapter named by o with o's overrides applied.
func Lookup(o Override) (Adapter, error) {
	a, exists := Builtins()[o.Name]
	if !exists {
		return Adapter{}, fmt.Errorf("unknown tool %q (expected one of %s)", o.Name, strings.Join(Names(), ", "))
	}

	if o.Binary != "" {
		a.Binary = o.Binary
	}
	if len(o.Args) > 0 {
		a.Args = o.Args
	}
	if o.MinMatching != nil {
		a.Policy.MinMatching = *o.MinMatching
	}
	if o.Workers > 0 {
		a.Workers = o.Workers
	}
	if o.Throttle != nil {
		a.Throttle = *o.Throttle
	}
	if len(o.Extra) > 0 {
		a.Extra = o.Extra
	}

	return a, nil
}

// Names lists the built-in adapters alphabetically.
func Names() []string {
	out := make([]string, 0)
	for name := range Builtins() {
		out = append(out, name)
	}
	sort.Strings(out)

	return out
}

// RenderArgs substitutes tags into every argument template. A tag with no
// value is an error so that a misspelled template never reaches the tool.
func (a Adapter) RenderArgs(tags map[string]string) ([]string, error) {
	out := make([]string, 0, len(a.Args))
	for _, arg := range a.Args {
		tpl, err := fasttemplate.NewTemplate(arg, "{{", "}}")
		if err != nil {
			return nil, fmt.Errorf("%s argument %q: %w", a.Name, arg, err)
		}

		rendered, err := tpl.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
			tag = strings.TrimSpace(tag)
			if value, exists := a.Extra[tag]; exists {
				return w.Write([]byte(value))
			}
			if value, exists := tags[tag]; exists {
				return w.Write([]byte(value))
			}
			return 0, fmt.Errorf("%s argument %q: unknown tag {{%s}}", a.Name, arg, tag)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, rendered)
	}

	return out, nil
}
