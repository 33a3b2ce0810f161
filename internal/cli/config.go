package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/matzehuels/vpsc/pkg/cache"
	"github.com/matzehuels/vpsc/pkg/solver"
)

// Config is the on-disk CLI configuration:
//
//	[parameters]
//	gap_tolerance = 0.0001
//	outer_project_iterations_limit = -1
//
//	[cache]
//	backend = "redis"
//	redis_url = "redis://localhost:6379/0"
//
// Parameters set here replace the built-in defaults for problem files that
// leave them out. Command-line flags override both.
type Config struct {
	Parameters *solver.Parameters `toml:"parameters"`
	Cache      cache.Config       `toml:"cache"`
}

func defaultConfig() Config {
	return Config{Cache: cache.Config{Backend: cache.BackendFile}}
}

// baseParameters returns the parameters problem files are read on top of.
func (c Config) baseParameters() solver.Parameters {
	if c.Parameters != nil {
		return *c.Parameters
	}
	return solver.DefaultParameters()
}

// loadConfig reads path over the defaults. A missing file yields the
// defaults unless mustExist is set.
func loadConfig(path string, mustExist bool) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !mustExist {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	// Decode parameters over the defaults so a partial section works.
	defaults := solver.DefaultParameters()
	cfg.Parameters = &defaults
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return cfg, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if !md.IsDefined("parameters") {
		cfg.Parameters = nil
	} else if err := cfg.Parameters.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// =============================================================================
// Parameter Flags
// =============================================================================

// paramFlags binds solver parameter overrides to a command's flags. Only
// flags the user set are applied.
type paramFlags struct {
	cmd *cobra.Command

	gapTolerance     float64
	outerLimit       int
	innerLimit       int
	timeLimit        time.Duration
	forceQpsc        bool
	noScale          bool
	noViolationCache bool
	verify           bool
}

var paramFlagNames = []string{
	"gap-tolerance", "outer-limit", "inner-limit", "time-limit",
	"force-qpsc", "no-scale", "no-violation-cache", "verify",
}

func addParamFlags(cmd *cobra.Command) *paramFlags {
	pf := &paramFlags{cmd: cmd}
	f := cmd.Flags()
	f.Float64Var(&pf.gapTolerance, "gap-tolerance", solver.DefaultGapTolerance, "violation below which a constraint is satisfied")
	f.IntVar(&pf.outerLimit, "outer-limit", -1, "outer iteration limit (-1 auto, 0 unbounded)")
	f.IntVar(&pf.innerLimit, "inner-limit", -1, "inner iteration limit (-1 auto, 0 unbounded)")
	f.DurationVar(&pf.timeLimit, "time-limit", 0, "wall-clock limit per solve (0 disables)")
	f.BoolVar(&pf.forceQpsc, "force-qpsc", false, "use gradient projection even without goals")
	f.BoolVar(&pf.noScale, "no-scale", false, "disable diagonal scaling in gradient projection")
	f.BoolVar(&pf.noViolationCache, "no-violation-cache", false, "disable the violated-constraint cache")
	f.BoolVar(&pf.verify, "verify", false, "run internal consistency checks")
	return pf
}

func (pf *paramFlags) changed() bool {
	for _, name := range paramFlagNames {
		if pf.cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

func (pf *paramFlags) apply(p *solver.Parameters) {
	f := pf.cmd.Flags()
	if f.Changed("gap-tolerance") {
		p.GapTolerance = pf.gapTolerance
	}
	if f.Changed("outer-limit") {
		p.OuterProjectIterationsLimit = pf.outerLimit
	}
	if f.Changed("inner-limit") {
		p.InnerProjectIterationsLimit = pf.innerLimit
	}
	if f.Changed("time-limit") {
		p.TimeLimit = pf.timeLimit.Milliseconds()
	}
	if f.Changed("force-qpsc") {
		p.Advanced.ForceQpsc = pf.forceQpsc
	}
	if f.Changed("no-scale") {
		p.Advanced.ScaleInQpsc = !pf.noScale
	}
	if f.Changed("no-violation-cache") {
		p.Advanced.UseViolationCache = !pf.noViolationCache
	}
	if f.Changed("verify") {
		p.Advanced.Verify = pf.verify
	}
}
