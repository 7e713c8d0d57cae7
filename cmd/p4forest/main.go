// Command p4forest loads a connectivity file, builds a uniformly
// refined forest over it, balances and partitions it across a
// simulated rank group, and reports the resulting checksum and
// per-rank quadrant counts. It exists mainly to exercise the library
// end to end from the command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"

	"github.com/rubendibattista/p4forest"
	"github.com/rubendibattista/p4forest/comm"
	"github.com/rubendibattista/p4forest/forestlog"
	"github.com/rubendibattista/p4forest/meshfile"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "p4forest:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		meshPath string
		level    int
		ranks    int
		corner   bool
		verbose  bool
	)
	flag.StringVarP(&meshPath, "mesh", "m", "", "path to an ASCII connectivity file (required)")
	flag.IntVarP(&level, "level", "l", 3, "uniform refinement level to build")
	flag.IntVarP(&ranks, "ranks", "n", 1, "number of simulated ranks to partition across")
	flag.BoolVar(&corner, "corner-balance", true, "enforce corner adjacency during 2:1 balance, not just faces")
	flag.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flag.Parse()

	if meshPath == "" {
		return errors.New("--mesh is required")
	}

	log := forestlog.Nop()
	if verbose {
		log = forestlog.Default()
	}

	f, err := os.Open(meshPath)
	if err != nil {
		return errors.Wrap(err, "opening mesh file")
	}
	defer f.Close()

	conn, err := meshfile.Read(f)
	if err != nil {
		return errors.Wrap(err, "reading connectivity")
	}
	if !conn.IsValid() {
		return errors.New("connectivity file failed structural validation")
	}

	forest := p4forest.NewForest(conn, 0)
	forest.SetLogger(log)
	buildUniform(forest, p4forest.Level(level))

	mode := p4forest.BalanceFace
	if corner {
		mode = p4forest.BalanceFaceCorner
	}
	forest.BalanceForest(mode)

	if err := forest.IsValid(); err != nil {
		return errors.Wrap(err, "forest failed validation after balance")
	}

	fmt.Printf("local quadrants: %d\n", forest.LocalNumQuadrants())
	fmt.Printf("checksum: %08x\n", forest.Checksum())

	if ranks > 1 {
		return runPartitioned(forest, ranks)
	}
	return nil
}

// buildUniform populates every tree of forest with the complete set of
// quadrants at the given level, the simplest possible mesh to exercise
// balance and partition on.
func buildUniform(forest *p4forest.Forest, level p4forest.Level) {
	for i := range forest.Trees {
		t := &forest.Trees[i]
		t.Quadrants = nil
		var walk func(q p4forest.Quadrant)
		walk = func(q p4forest.Quadrant) {
			if q.Level == level {
				t.Quadrants = append(t.Quadrants, q)
				return
			}
			for _, c := range q.Children() {
				walk(c)
			}
		}
		walk(p4forest.Quadrant{Level: 0})
	}
}

// runPartitioned starts from everything owned by rank 0 and
// redistributes evenly across a simulated rank group using
// comm.LocalFabric, every rank calling PartitionGiven on its own
// *Forest view concurrently, then reports each rank's resulting local
// count.
func runPartitioned(forest *p4forest.Forest, ranks int) error {
	total := p4forest.GlobalQuadIndex(forest.LocalNumQuadrants())

	oldFirst := make([]p4forest.GlobalQuadIndex, ranks+1)
	for r := 1; r <= ranks; r++ {
		oldFirst[r] = total
	}
	newFirst := make([]p4forest.GlobalQuadIndex, ranks+1)
	for r := 0; r <= ranks; r++ {
		newFirst[r] = total * p4forest.GlobalQuadIndex(r) / p4forest.GlobalQuadIndex(ranks)
	}

	ctx := context.Background()
	return comm.Run(ctx, ranks, func(ctx context.Context, fabric comm.Fabric) error {
		rank := fabric.Rank()
		local := p4forest.NewForest(forest.Connectivity, forest.DataSize)
		local.GlobalFirstPosition = oldFirst
		if rank == 0 {
			local.FirstLocalTree = forest.FirstLocalTree
			local.LastLocalTree = forest.LastLocalTree
			copy(local.Trees, forest.Trees)
		} else {
			local.FirstLocalTree = 0
			local.LastLocalTree = -1
		}

		if err := p4forest.PartitionGiven(ctx, local, newFirst, fabric); err != nil {
			return errors.Wrapf(err, "rank %d", rank)
		}
		fmt.Printf("rank %d: %d local quadrants\n", rank, local.LocalNumQuadrants())
		return nil
	})
}
