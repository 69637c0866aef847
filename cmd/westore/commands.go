package main

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rmera/westore"
	"github.com/rmera/westore/records"
)

var (
	createConfig   string
	createMode     string
	recordRuns     string
	linkRun        int
	linkContinue   int
	lineageWalker  int
	lineageCycle   int
	observeField   string
	observeSave    string
	observeWorkers int
)

var createCmd = &cobra.Command{
	Use:   "create <file>",
	Short: "Create an empty archive from a YAML config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if createConfig == "" {
			return fmt.Errorf("--config is required")
		}
		cfg, err := westore.LoadConfig(createConfig)
		if err != nil {
			return err
		}
		mode, err := westore.ParseMode(createMode)
		if err != nil {
			return err
		}
		a, err := westore.Open(args[0], mode, westore.WithConfig(cfg))
		if err != nil {
			return err
		}
		id, err := a.ArchiveID()
		if err != nil {
			a.Close()
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", args[0], id)
		return a.Close()
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Print the settings and runs of an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := westore.Open(args[0], westore.ReadOnly)
		if err != nil {
			return err
		}
		defer a.Close()
		return printInfo(cmd, a)
	},
}

func printInfo(cmd *cobra.Command, a *westore.Archive) error {
	out := cmd.OutOrStdout()
	id, err := a.ArchiveID()
	if err != nil {
		return err
	}
	natoms, err := a.NAtoms()
	if err != nil {
		return err
	}
	ndims, err := a.NDims()
	if err != nil {
		return err
	}
	sparse, err := a.SparseFields()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "archive   %s\natoms     %d\ndims      %d\nsparse    %s\n", id, natoms, ndims, strings.Join(sparse, ", "))
	manifests, err := a.RecordManifests()
	if err != nil {
		return err
	}
	for _, g := range records.Groups {
		if m, ok := manifests[g]; ok {
			fmt.Fprintf(out, "records   %s: %s\n", g, strings.Join(m, ", "))
		}
	}
	runs, err := a.RunIdxs()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "run\ttrajectories\tcycles\tcontinues")
	g, err := a.Graph()
	if err != nil {
		return err
	}
	for _, r := range runs {
		nt, err := a.NumRunTrajs(r)
		if err != nil {
			return err
		}
		nc := 0
		if nt > 0 {
			if nc, err = a.NumRunCycles(r); err != nil {
				return err
			}
		}
		base := "-"
		if b, ok := g.Base(r); ok {
			base = strconv.Itoa(b)
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\n", r, nt, nc, base)
	}
	return tw.Flush()
}

func parseRuns(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, f := range strings.Split(s, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("bad run index %q", f)
		}
		out = append(out, i)
	}
	return out, nil
}

var recordsCmd = &cobra.Command{
	Use:   "records <file> <group>",
	Short: "Print the records of a group over a contig",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !records.IsGroup(args[1]) {
			return fmt.Errorf("%s is not one of %s", args[1], strings.Join(records.Groups, ", "))
		}
		a, err := westore.Open(args[0], westore.ReadOnly)
		if err != nil {
			return err
		}
		defer a.Close()
		runs, err := parseRuns(recordRuns)
		if err != nil {
			return err
		}
		if runs == nil {
			if runs, err = a.RunIdxs(); err != nil {
				return err
			}
			runs = runs[:min(len(runs), 1)]
		}
		if len(runs) > 1 {
			if _, err := a.Contig(runs); err != nil {
				return err
			}
		}
		recs, err := a.ContigRecords(runs, args[1])
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for i, r := range recs {
			if i == 0 {
				fmt.Fprintf(tw, "%s\t%s\n", records.CycleIdx, strings.Join(r.Fields, "\t"))
			}
			vals := make([]string, len(r.Values))
			for j, v := range r.Values {
				vals[j] = fmt.Sprint(v)
			}
			fmt.Fprintf(tw, "%d\t%s\n", r.CycleIdx, strings.Join(vals, "\t"))
		}
		return tw.Flush()
	},
}

var contigCmd = &cobra.Command{
	Use:   "contig <file> [runs...]",
	Short: "Check a contig, or list the spanning contigs when no run is given",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := westore.Open(args[0], westore.ReadOnly)
		if err != nil {
			return err
		}
		defer a.Close()
		out := cmd.OutOrStdout()
		if len(args) == 1 {
			sc, err := a.SpanningContigs()
			if err != nil {
				return err
			}
			for _, c := range sc {
				fmt.Fprintln(out, c)
			}
			return nil
		}
		runs, err := parseRuns(strings.Join(args[1:], ","))
		if err != nil {
			return err
		}
		c, err := a.Contig(runs)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "contig %v: %d cycles, offsets %v\n", c.Runs, c.NumCycles(), c.Offsets())
		return nil
	},
}

var lineageCmd = &cobra.Command{
	Use:   "lineage <file> <run>",
	Short: "Print the runs a run continues, or the lineage of a walker over them",
	Long: `Print the runs a run continues, or the lineage of a walker over them.

  westore lineage a.wst 3                          runs from the first one down to 3
  westore lineage a.wst 3 --walker 1 --cycle 20    (slot, cycle) pairs walker slot 1
                                                   at contig cycle 20 descends from`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad run index %q", args[1])
		}
		a, err := westore.Open(args[0], westore.ReadOnly)
		if err != nil {
			return err
		}
		defer a.Close()
		out := cmd.OutOrStdout()
		runs, err := a.RunLineage(run)
		if err != nil {
			return err
		}
		if lineageWalker < 0 {
			fmt.Fprintln(out, runs)
			return nil
		}
		l, err := a.WalkerLineage(runs, lineageWalker, lineageCycle)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "slot\tcycle")
		for _, p := range l {
			fmt.Fprintf(tw, "%d\t%d\n", p[0], p[1])
		}
		return tw.Flush()
	},
}

var observeCmd = &cobra.Command{
	Use:   "observe <file>",
	Short: "Store the radius of gyration of a coordinate field as an observable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := westore.Open(args[0], westore.ReadWrite)
		if err != nil {
			return err
		}
		defer a.Close()
		res, err := a.ComputeObservable(context.Background(), []string{observeField}, observeWorkers, westore.RadiusOfGyration(observeField), observeSave)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored observables/%s in %d trajectories\n", observeSave, len(res))
		return nil
	},
}

var cloneCmd = &cobra.Command{
	Use:   "clone <src> <dst>",
	Short: "Create an empty archive with the settings of another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := westore.Open(args[0], westore.ReadOnly)
		if err != nil {
			return err
		}
		defer a.Close()
		c, err := a.Clone(args[1], westore.CreateExclusive)
		if err != nil {
			return err
		}
		return c.Close()
	},
}

var linkCmd = &cobra.Command{
	Use:   "link <dst> <src>",
	Short: "Mount runs of src in dst without copying them",
	Long: `Mount runs of src in dst without copying them.

  westore link dst.wst src.wst                 mount every run of src
  westore link dst.wst src.wst --run 2         mount run 2 of src
  westore link dst.wst src.wst --run 2 --continue 0
                                               and make it continue run 0 of dst`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := westore.Open(args[0], westore.ReadWrite)
		if err != nil {
			return err
		}
		defer a.Close()
		out := cmd.OutOrStdout()
		if linkRun < 0 {
			runs, err := a.LinkFileRuns(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "linked runs %v\n", runs)
			return nil
		}
		var opts []westore.RunOption
		if linkContinue >= 0 {
			opts = append(opts, westore.ContinueRun(linkContinue))
		}
		r, err := a.LinkRun(args[1], linkRun, opts...)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "linked run %d\n", r)
		return nil
	},
}

var joinCmd = &cobra.Command{
	Use:   "join <dst> <src>",
	Short: "Copy every run of src into dst",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := westore.Open(args[0], westore.ReadWrite)
		if err != nil {
			return err
		}
		defer a.Close()
		o, err := westore.Open(args[1], westore.ReadOnly)
		if err != nil {
			return err
		}
		defer o.Close()
		runs, err := a.Join(o)
		if err != nil {
			return err
		}
		slices.Sort(runs)
		fmt.Fprintf(cmd.OutOrStdout(), "joined runs %v\n", runs)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVarP(&createConfig, "config", "c", "", "YAML config of the new archive")
	createCmd.Flags().StringVar(&createMode, "mode", "x", "creation mode, x or w")
	recordsCmd.Flags().StringVar(&recordRuns, "runs", "", "comma separated contig runs, the first run if empty")
	linkCmd.Flags().IntVar(&linkRun, "run", -1, "run of src to mount, every run if negative")
	linkCmd.Flags().IntVar(&linkContinue, "continue", -1, "run of dst the mounted run continues")
	lineageCmd.Flags().IntVar(&lineageWalker, "walker", -1, "walker slot to follow, none if negative")
	lineageCmd.Flags().IntVar(&lineageCycle, "cycle", 0, "contig cycle of the walker slot")
	observeCmd.Flags().StringVar(&observeField, "field", "positions", "coordinate field, (n_atoms, n_dims) per frame")
	observeCmd.Flags().StringVar(&observeSave, "save", "rg", "name of the observable")
	observeCmd.Flags().IntVar(&observeWorkers, "workers", 0, "trajectories read at once, no limit if 0")
	rootCmd.AddCommand(createCmd, infoCmd, recordsCmd, contigCmd, lineageCmd, observeCmd, cloneCmd, linkCmd, joinCmd)
}
