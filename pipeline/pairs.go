package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/carbocation/colotools/gate"
	"github.com/carbocation/colotools/locus"
	"github.com/carbocation/colotools/refpanel"
	"github.com/carbocation/colotools/tools"
	"github.com/sirupsen/logrus"
)

// Adapters resolves the tools to run. names, when given, selects among the
// configured tools; tools that are not configured run with built-in
// settings. With neither, every built-in tool runs.
func Adapters(cfg Config, names []string) ([]tools.Adapter, error) {
	overrides := make(map[string]tools.Override)
	var order []string
	for _, o := range cfg.Tools {
		if _, exists := overrides[o.Name]; !exists {
			order = append(order, o.Name)
		}
		overrides[o.Name] = o
	}

	if len(names) > 0 {
		order = names
	} else if len(order) == 0 {
		order = tools.Names()
	}

	out := make([]tools.Adapter, 0, len(order))
	for _, name := range order {
		o, exists := overrides[name]
		if !exists {
			o = tools.Override{Name: name}
		}

		a, err := tools.Lookup(o)
		if err != nil {
			return nil, err
		}
		if a.Workers == 0 {
			a.Workers = cfg.Workers
		}
		out = append(out, a)
	}

	return out, nil
}

// Pairs runs every selected tool over the cluster/phenotype pairs its gate
// admits and writes results/{tool}.tsv. An empty cluster summary or QTL
// report means there is nothing to do. A tool whose binary is missing is
// skipped and reported in the returned error after the other tools ran.
func Pairs(ctx context.Context, log *logrus.Entry, cfg Config, client *storage.Client, names []string) ([]tools.Result, error) {
	adapters, err := Adapters(cfg, names)
	if err != nil {
		return nil, err
	}

	clusters, err := locus.ReadSummary(cfg.ClusterSummaryPath())
	if err != nil {
		return nil, err
	}
	signals, err := locus.ReadSignals(cfg.QTLSignalsPath())
	if err != nil {
		return nil, err
	}
	log.Infof("Read %d clusters and %d QTL signals", len(clusters), len(signals))

	var panel refpanel.Panel
	if cfg.Reference.Kind != "" {
		panel, err = refpanel.Open(cfg.Reference.Kind, cfg.Reference.Template, client)
		if err != nil {
			return nil, err
		}
		defer panel.Close()
	}
	lookup := newPanelLookup(panel)

	src := tools.Sources{
		GWAS:   cfg.GWAS.Columns,
		QTL:    cfg.QTL.Columns,
		Client: client,
		LD:     cfg.Clump.BFile,
		Plink:  cfg.Clump.Binary,
	}

	var all []tools.Result
	var missing []string
	for _, a := range adapters {
		tlog := log.WithField("tool", a.Name)

		candidates := gate.Pairs(clusters, signals, a.Policy)
		admitted := recheckPairs(ctx, tlog, lookup, candidates, a.Policy)
		tlog.Infof("%d pairs pass the position gate, %d remain after the reference recheck", len(candidates), len(admitted))

		results, err := tools.RunPairs(ctx, tlog, cfg.OutputDir, a, src, admitted)
		if tools.IsNotFound(err) {
			tlog.WithError(err).Errorln("Skipping tool")
			missing = append(missing, a.Name)
			continue
		} else if err != nil {
			return nil, err
		}

		if err := tools.WriteResults(cfg.ResultsPath(a.Name), results); err != nil {
			return nil, err
		}
		all = append(all, results...)
	}

	if cfg.BigQuery.Project != "" && len(all) > 0 {
		if err := tools.ExportBigQuery(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset, cfg.BigQuery.Table, all); err != nil {
			return all, err
		}
		log.Infof("Exported %d results to BigQuery", len(all))
	}

	if len(missing) > 0 {
		return all, fmt.Errorf("tool binaries not found: %s", strings.Join(missing, ", "))
	}

	return all, nil
}

// recheckPairs applies the gate a second time with each overlap restricted
// to reference panel positions. Without a panel the pairs pass unchanged.
func recheckPairs(ctx context.Context, log *logrus.Entry, lookup *panelLookup, pairs []gate.Pair, policy gate.Policy) []gate.Pair {
	if lookup == nil {
		return pairs
	}

	out := make([]gate.Pair, 0, len(pairs))
	for _, pair := range pairs {
		positions, err := lookup.positions(ctx, pair.Cluster)
		if err != nil {
			plog := log.WithFields(logrus.Fields{"lead": pair.Cluster.Lead, "phenotype": pair.Signal.Phenotype})
			if errors.Is(err, refpanel.ErrNoReference) {
				plog.Warnln("No reference panel for chromosome", pair.Cluster.Chrom)
			} else {
				plog.WithError(err).Warnln("Reference lookup failed")
			}
			continue
		}

		rechecked, ok := gate.Recheck(pair, positions, policy)
		if !ok {
			continue
		}
		out = append(out, rechecked)
	}

	return out
}

// panelLookup caches reference positions per cluster, since every tool
// rechecks the same clusters.
type panelLookup struct {
	panel refpanel.Panel

	mu    sync.Mutex
	cache map[string]panelEntry
}

type panelEntry struct {
	positions []int
	err       error
}

func newPanelLookup(panel refpanel.Panel) *panelLookup {
	if panel == nil {
		return nil
	}

	return &panelLookup{panel: panel, cache: make(map[string]panelEntry)}
}

func (p *panelLookup) positions(ctx context.Context, c locus.ClusterSummary) ([]int, error) {
	key := fmt.Sprintf("%s:%d-%d", c.Chrom, c.MinPos, c.MaxPos)

	p.mu.Lock()
	defer p.mu.Unlock()

	if e, exists := p.cache[key]; exists {
		return e.positions, e.err
	}

	positions, err := p.panel.Positions(ctx, c.Chrom, c.MinPos, c.MaxPos)
	p.cache[key] = panelEntry{positions: positions, err: err}

	return positions, err
}
