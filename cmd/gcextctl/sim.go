package main

import (
	"math"
	"math/rand/v2"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"

	"github.com/joshuapare/gcext/gc"
	"github.com/joshuapare/gcext/pkg/gcstack"
)

type simOptions struct {
	Stacks         int
	Ops            int
	Workers        int
	Seed           uint64
	FullEvery      int
	LargeThreshold int
	Interval       uintptr
}

var simOpts = simOptions{
	Stacks:         16,
	Ops:            100_000,
	FullEvery:      4,
	LargeThreshold: 300,
	Interval:       256 << 10,
}

func init() {
	cmd := newSimCmd()
	f := cmd.Flags()
	f.IntVar(&simOpts.Stacks, "stacks", simOpts.Stacks, "Number of rooted stacks")
	f.IntVar(&simOpts.Ops, "ops", simOpts.Ops, "Number of push/pop operations")
	f.IntVar(&simOpts.Workers, "workers", 0, "Mark workers (0 = GOMAXPROCS)")
	f.Uint64Var(&simOpts.Seed, "seed", 1, "Workload seed")
	f.IntVar(&simOpts.FullEvery, "full-every", simOpts.FullEvery, "Every Nth automatic collection is full")
	f.IntVar(&simOpts.LargeThreshold, "large-threshold", simOpts.LargeThreshold,
		"Stack size at which a stack is replaced (sizes above 254 use external data)")
	rootCmd.AddCommand(cmd)
}

func newSimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sim",
		Short: "Run the foreign stack workload",
		Long: `The sim command keeps a set of foreign stacks in the auxiliary root
table and pushes and pops boxed values on them while the collector runs
automatic incremental and full collections. Afterwards every stack is drained
and checked: no reachable value may have been reclaimed and each stack must
pop its values in reverse push order.

Example:
  gcextctl sim
  gcextctl sim --stacks 64 --ops 1000000 --workers 8
  gcextctl sim --large-threshold 1000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := runSim(simOpts)
			if err != nil {
				return err
			}
			return printSim(res)
		},
	}
}

type simResult struct {
	Pushes      int
	Pops        int
	Replaced    int
	Remaining   int
	Full        uint64
	Incremental uint64
	Stats       gc.Stats
	StatsJSON   []byte // collector statistics, captured before Close
}

func runSim(o simOptions) (res simResult, err error) {
	if o.Stacks < 1 || o.Stacks > gcstack.NumRoots {
		return res, errors.Newf("--stacks must be between 1 and %d", gcstack.NumRoots)
	}
	if o.LargeThreshold < 1 {
		return res, errors.New("--large-threshold must be positive")
	}

	opts := gc.DefaultOptions()
	if o.Workers > 0 {
		opts.Workers = o.Workers
	}
	opts.FullEvery = o.FullEvery
	opts.CollectInterval = o.Interval
	opts.Seed = o.Seed
	opts.Logger = newLogger()

	c, err := gc.New(nil, opts)
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ts, err := gcstack.Register(c)
	if err != nil {
		return res, err
	}
	roots, err := gcstack.NewRoots(c.Hooks())
	if err != nil {
		return res, err
	}
	defer roots.Close()
	counters, err := gcstack.NewCounters(c.Hooks())
	if err != nil {
		return res, err
	}
	defer counters.Close()
	box, err := c.Types().RegisterNative("Sim", "Box", nil, 0)
	if err != nil {
		return res, err
	}

	th := c.NewThread()
	defer th.Release()

	newStack := func(i int) (*gc.Object, error) {
		s, err := ts.New(th)
		if err != nil {
			return nil, err
		}
		return s, roots.Set(i, s)
	}
	for i := range o.Stacks {
		if _, err := newStack(i); err != nil {
			return res, err
		}
	}

	rng := rand.New(rand.NewPCG(o.Seed, o.Seed^0x9e3779b97f4a7c15))
	for op := range o.Ops {
		i := rng.IntN(o.Stacks)
		s, _ := roots.Get(i)
		size, err := ts.Size(s)
		if err != nil {
			return res, err
		}

		switch {
		case size >= o.LargeThreshold:
			printVerbose("replacing stack %d at %d elements\n", i, size)
			if _, err := newStack(i); err != nil {
				return res, err
			}
			res.Replaced++
		case size > 0 && rng.IntN(4) == 0:
			v, err := ts.Pop(th, s)
			if err != nil {
				return res, err
			}
			if v.Freed() {
				return res, errors.AssertionFailedf("stack %d: popped value %d was reclaimed", i, v.Word(0))
			}
			res.Pops++
		default:
			v, err := th.Alloc(8, box)
			if err != nil {
				return res, err
			}
			v.SetWord(0, uint64(op))
			if err := ts.Push(th, s, v); err != nil {
				return res, err
			}
			res.Pushes++
		}
	}

	c.Collect(true)
	for i := range o.Stacks {
		s, _ := roots.Get(i)
		n, err := drainStack(ts, th, s)
		if err != nil {
			return res, errors.Wrapf(err, "stack %d", i)
		}
		res.Remaining += n
	}

	res.Full = counters.Get(true)
	res.Incremental = counters.Get(false)
	res.Stats = c.Stats()
	if res.StatsJSON, err = c.StatsJSON(); err != nil {
		return res, err
	}
	printVerbose("%d collections\n", res.Full+res.Incremental)
	return res, nil
}

// drainStack pops every value and checks that they come out in reverse push
// order without any having been reclaimed.
func drainStack(ts *gcstack.Types, th *gc.Thread, s *gc.Object) (int, error) {
	n := 0
	prev := uint64(math.MaxUint64)
	for {
		v, err := ts.Pop(th, s)
		if errors.Is(err, gcstack.ErrEmpty) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if v.Freed() {
			return n, errors.AssertionFailedf("value %d reclaimed while on the stack", v.Word(0))
		}
		w := v.Word(0)
		if w >= prev {
			return n, errors.AssertionFailedf("value %d popped after %d", w, prev)
		}
		prev = w
		n++
	}
}

func printSim(res simResult) error {
	if jsonOut {
		return printJSON(func(w *jwriter.Writer) {
			obj := w.Object()
			obj.Name("Pushes").Int(res.Pushes)
			obj.Name("Pops").Int(res.Pops)
			obj.Name("Replaced").Int(res.Replaced)
			obj.Name("Remaining").Int(res.Remaining)
			counts := obj.Name("Counters").Object()
			counts.Name("Full").Int(int(res.Full))
			counts.Name("Incremental").Int(int(res.Incremental))
			counts.End()
			obj.Name("Collector").Raw(res.StatsJSON)
			obj.End()
		})
	}

	stats := res.Stats
	printInfo("Pushes:       %d\n", res.Pushes)
	printInfo("Pops:         %d\n", res.Pops)
	printInfo("Replaced:     %d\n", res.Replaced)
	printInfo("Remaining:    %d\n", res.Remaining)
	printInfo("Collections:  %d full, %d incremental\n", res.Full, res.Incremental)
	printInfo("Freed:        %d objects\n", stats.Freed)
	printInfo("Finalized:    %d objects\n", stats.Finalized)
	printInfo("Total pause:  %v\n", stats.TotalPause)
	return nil
}
