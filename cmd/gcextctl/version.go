package main

import (
	"runtime"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"

	"github.com/joshuapare/gcext/gc"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and collector build defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := collectVersionInfo()
		if err != nil {
			return err
		}
		return printVersion(info)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// versionInfo is the build stamp plus the limits a default collector uses.
type versionInfo struct {
	Version    string
	Commit     string
	Built      string
	Go         string
	MaxPoolObj uintptr
	PageSize   uintptr
	PromoteAge int
	FullEvery  int
}

func collectVersionInfo() (versionInfo, error) {
	opts := gc.DefaultOptions()
	opts.Logger = newLogger()
	c, err := gc.New(nil, opts)
	if err != nil {
		return versionInfo{}, err
	}
	eff := c.Options()
	info := versionInfo{
		Version:    version,
		Commit:     commit,
		Built:      date,
		Go:         runtime.Version(),
		MaxPoolObj: c.MaxInternalObjSize(),
		PageSize:   eff.PageSize,
		PromoteAge: eff.PromoteAge,
		FullEvery:  eff.FullEvery,
	}
	return info, c.Close()
}

func printVersion(info versionInfo) error {
	if jsonOut {
		return printJSON(func(w *jwriter.Writer) {
			obj := w.Object()
			obj.Name("Version").String(info.Version)
			obj.Name("Commit").String(info.Commit)
			obj.Name("Built").String(info.Built)
			obj.Name("Go").String(info.Go)
			obj.Name("MaxPoolObject").Int(int(info.MaxPoolObj))
			obj.Name("PageSize").Int(int(info.PageSize))
			obj.Name("PromoteAge").Int(info.PromoteAge)
			obj.Name("FullEvery").Int(info.FullEvery)
			obj.End()
		})
	}

	printInfo("gcextctl %s (%s)\n", info.Version, info.Go)
	printInfo("  commit: %s\n", info.Commit)
	printInfo("  built: %s\n", info.Built)
	printInfo("  max pool object: %d bytes, page size: %d bytes\n", info.MaxPoolObj, info.PageSize)
	printInfo("  promote age: %d, full every: %d\n", info.PromoteAge, info.FullEvery)
	return nil
}
