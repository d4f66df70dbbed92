// Command pytype is the batch CLI surface (spec.md §6): check a working set,
// optionally emit a stub, watch for changes, or report cache
// stats/dependencies. Flag parsing follows the teacher's cmd/morfx/main.go
// shape — a single flat pflag.FlagSet rather than cobra subcommands — with
// fatih/color used for severity-keyed terminal output the same way the
// teacher colors its demo runner's output.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/oxhq/pytype/db"
	"github.com/oxhq/pytype/internal/cache"
	"github.com/oxhq/pytype/internal/config"
	"github.com/oxhq/pytype/internal/diagnostic"
	"github.com/oxhq/pytype/internal/fsutil"
	"github.com/oxhq/pytype/internal/program"
	"github.com/oxhq/pytype/internal/resolver"
	"github.com/oxhq/pytype/internal/service"
	"github.com/oxhq/pytype/internal/stubwriter"
	"github.com/oxhq/pytype/internal/syntax"
	"github.com/oxhq/pytype/internal/types"
)

const toolVersion = "0.1.0"

// Exit codes (spec.md §7): 0 no issues at or above --level, 1 issues
// reported, 2 configuration/IO error, 3 command misuse.
const (
	exitOK         = 0
	exitIssues     = 1
	exitConfigErr  = 2
	exitUsageError = 3
)

var (
	errColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
	infoColor = color.New(color.FgCyan)
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := pflag.NewFlagSet("pytype", pflag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }

	projectPath := fs.StringP("project", "p", "", "config file (pytypeconfig.json or pyproject.toml)")
	pythonVersion := fs.String("pythonversion", "", "override the configured Python version, e.g. 3.11")
	pythonPlatform := fs.String("pythonplatform", "", "override the configured platform: Linux, Darwin, Windows, All")
	venvPath := fs.String("venvpath", "", "virtual environment root to resolve third-party imports against")
	typeshedPath := fs.String("typeshedpath", "", "typeshed root to resolve stdlib stubs against")
	level := fs.String("level", "warning", "minimum severity to display and to fail on: error, warning, information")
	warnings := fs.Bool("warnings", false, "alias for --level warning")
	createStub := fs.String("createstub", "", "emit a .pyi stub for the named module instead of checking")
	verifyTypes := fs.String("verifytypes", "", "report type-completeness for the named module's public surface")
	watch := fs.Bool("watch", false, "keep running, re-checking tracked files on change")
	outputJSON := fs.Bool("outputjson", false, "emit diagnostics as JSON instead of formatted text")
	stats := fs.Bool("stats", false, "print cache statistics and exit")
	dependencies := fs.Bool("dependencies", false, "print each checked file's import graph")

	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, err)
		return exitUsageError
	}
	if *warnings {
		*level = "warning"
	}
	minSeverity, ok := parseLevel(*level)
	if !ok {
		fmt.Fprintf(os.Stderr, "pytype: unrecognized --level %q\n", *level)
		return exitUsageError
	}

	cfg, cfgErr := loadConfig(*projectPath)
	if cfgErr != nil {
		fmt.Fprintln(os.Stderr, cfgErr)
		return exitConfigErr
	}
	applyOverrides(cfg, *pythonVersion, *pythonPlatform, *venvPath, *typeshedPath)

	root, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigErr
	}

	osfs := fsutil.OS{}
	res := resolver.New(osfs, resolver.Roots{
		SourceRoots:     []string{root},
		TypeshedRoot:    cfg.TypeshedPath,
		ThirdPartyRoots: []string{cfg.VenvPath},
		UseThirdParty:   cfg.VenvPath != "",
	})
	dialect := dialectFor(cfg)
	prog := program.New(osfs, res, dialect)
	svc := service.New(cfg, prog)

	targets, err := resolveTargets(fs.Args(), osfs, svc, root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigErr
	}
	if err := prog.SetTrackedFiles(targets); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigErr
	}

	if *createStub != "" {
		return runCreateStub(prog, res, *createStub, targets)
	}
	if *verifyTypes != "" {
		return runVerifyTypes(prog, *verifyTypes, targets)
	}

	prog.AnalyzeAll()

	if *stats {
		printStats(openCache(cfg))
		return exitOK
	}
	if *dependencies {
		printDependencies(prog, targets)
		return exitOK
	}

	diags := collectDiagnostics(prog, cfg, targets)
	worst := reportDiagnostics(diags, minSeverity, *outputJSON)

	if *watch {
		runWatch(svc, prog, targets, root, cfg, minSeverity, *outputJSON)
		return exitOK
	}

	if severityAtLeast(worst, minSeverity) {
		return exitIssues
	}
	return exitOK
}

func loadConfig(explicit string) (*config.Config, error) {
	path := explicit
	if path == "" {
		for _, candidate := range []string{"pytypeconfig.json", "pyproject.toml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("pytype: %w", err)
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, pythonVersion, pythonPlatform, venvPath, typeshedPath string) {
	if pythonVersion != "" {
		cfg.PythonVersion = pythonVersion
	}
	if pythonPlatform != "" {
		cfg.PythonPlatform = pythonPlatform
	}
	if venvPath != "" {
		cfg.VenvPath = venvPath
	}
	if typeshedPath != "" {
		cfg.TypeshedPath = typeshedPath
	}
}

func dialectFor(cfg *config.Config) syntax.Dialect {
	d := syntax.DefaultDialect()
	if cfg.PythonVersion == "" {
		return d
	}
	var major, minor int
	if n, _ := fmt.Sscanf(cfg.PythonVersion, "%d.%d", &major, &minor); n == 2 {
		d.PythonVersion = [2]int{major, minor}
	}
	if cfg.PythonPlatform != "" {
		d.PythonPlatform = cfg.PythonPlatform
	}
	return d
}

// resolveTargets honors spec.md §6's `-` convention: a single bare "-"
// positional argument reads newline-separated file paths from stdin instead
// of walking cfg's include/exclude globs, the same shortcut the teacher's
// --stdin flag offers for piped input.
func resolveTargets(args []string, fs fsutil.FS, svc *service.Service, root string) ([]string, error) {
	if len(args) == 1 && args[0] == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		var files []string
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				files = append(files, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("pytype: reading stdin: %w", err)
		}
		return files, nil
	}
	if len(args) > 0 {
		return args, nil
	}
	return svc.LoadTrackedFiles(fs, root)
}

func openCache(cfg *config.Config) *cache.Cache {
	if !cfg.Cache.Enable {
		return nil
	}
	dsn := cfg.Cache.DSN
	if dsn == "" {
		dsn = filepath.Join(cfg.Cache.Dir, "pytype-cache.db")
	}
	gdb, err := db.Connect(dsn, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pytype: cache unavailable, continuing without it: %v\n", err)
		return nil
	}
	return cache.New(gdb, fsutil.OS{}, cfg.Cache.Dir, toolVersion, configHash(cfg))
}

func configHash(cfg *config.Config) string {
	data, _ := json.Marshal(cfg)
	return fmt.Sprintf("%x", len(data))
}

func runCreateStub(prog *program.Program, res *resolver.Resolver, modulePath string, targets []string) int {
	path := modulePath
	if !strings.HasSuffix(path, ".py") {
		resolution := res.Resolve("", resolver.Reference{Parts: strings.Split(modulePath, ".")})
		if resolution.Unresolved {
			fmt.Fprintf(os.Stderr, "pytype: cannot resolve module %q for --createstub\n", modulePath)
			return exitConfigErr
		}
		path = resolution.ResolvedPath
	}
	if err := prog.SetTrackedFiles(append(append([]string(nil), targets...), path)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigErr
	}
	prog.EnsureChecked(path)
	sf, ok := prog.File(path)
	if !ok || sf.Bound == nil || sf.Eval == nil {
		fmt.Fprintf(os.Stderr, "pytype: %s never reached a checkable state\n", path)
		return exitConfigErr
	}
	stub := stubwriter.Generate(sf.Bound, sf.Eval)
	fmt.Print(stub)
	return exitOK
}

// runVerifyTypes reports the fraction of modulePath's public module-level
// symbols whose declared type is fully known, spec.md §6 `--verifytypes`'s
// "type completeness" report.
func runVerifyTypes(prog *program.Program, modulePath string, targets []string) int {
	path := modulePath
	if err := prog.SetTrackedFiles(append(append([]string(nil), targets...), path)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigErr
	}
	prog.EnsureChecked(path)
	sf, ok := prog.File(path)
	if !ok || sf.Bound == nil || sf.Eval == nil {
		fmt.Fprintf(os.Stderr, "pytype: %s never reached a checkable state\n", path)
		return exitConfigErr
	}
	total, known := 0, 0
	var unknownNames []string
	for name, sym := range sf.Bound.ModuleScope.Symbols {
		if name == "" || strings.HasPrefix(name, "_") {
			continue
		}
		total++
		t := sf.Eval.DeclaredType(sym)
		if t != nil && t.Kind != types.KUnknown {
			known++
		} else {
			unknownNames = append(unknownNames, name)
		}
	}
	pct := 100.0
	if total > 0 {
		pct = 100.0 * float64(known) / float64(total)
	}
	fmt.Printf("%s: %d/%d symbols fully typed (%.1f%%)\n", path, known, total, pct)
	sort.Strings(unknownNames)
	for _, name := range unknownNames {
		fmt.Printf("  unknown: %s\n", name)
	}
	return exitOK
}

func collectDiagnostics(prog *program.Program, cfg *config.Config, targets []string) []diagnostic.Diagnostic {
	var all []diagnostic.Diagnostic
	for _, path := range targets {
		all = append(all, prog.Diagnostics(path)...)
	}
	return cfg.Resolve(all)
}

func severityRank(s diagnostic.Severity) int {
	switch s {
	case diagnostic.SeverityError:
		return 3
	case diagnostic.SeverityWarning:
		return 2
	case diagnostic.SeverityInformation:
		return 1
	default:
		return 0
	}
}

func parseLevel(level string) (diagnostic.Severity, bool) {
	switch strings.ToLower(level) {
	case "error":
		return diagnostic.SeverityError, true
	case "warning":
		return diagnostic.SeverityWarning, true
	case "information", "info":
		return diagnostic.SeverityInformation, true
	default:
		return "", false
	}
}

func severityAtLeast(s, min diagnostic.Severity) bool {
	return severityRank(s) >= severityRank(min)
}

// reportDiagnostics prints diags at or above minSeverity and returns the
// worst severity seen (for the exit-code decision), regardless of the
// printed filter, so --level doesn't silently mask why the process exited
// nonzero from some other, noisier, config.
func reportDiagnostics(diags []diagnostic.Diagnostic, minSeverity diagnostic.Severity, asJSON bool) diagnostic.Severity {
	sort.Slice(diags, func(i, j int) bool {
		if diags[i].File != diags[j].File {
			return diags[i].File < diags[j].File
		}
		return diags[i].Range.Start.Line < diags[j].Range.Start.Line
	})

	worst := diagnostic.Severity("")
	var visible []diagnostic.Diagnostic
	for _, d := range diags {
		if severityRank(d.Severity) > severityRank(worst) {
			worst = d.Severity
		}
		if severityAtLeast(d.Severity, minSeverity) {
			visible = append(visible, d)
		}
	}

	if asJSON {
		data, _ := json.MarshalIndent(visible, "", "  ")
		fmt.Println(string(data))
		return worst
	}
	for _, d := range visible {
		printDiagnostic(d)
	}
	if len(visible) == 0 {
		fmt.Println("No issues found")
	}
	return worst
}

func printDiagnostic(d diagnostic.Diagnostic) {
	var c *color.Color
	switch d.Severity {
	case diagnostic.SeverityError:
		c = errColor
	case diagnostic.SeverityWarning:
		c = warnColor
	default:
		c = infoColor
	}
	loc := fmt.Sprintf("%s:%d:%d", d.File, d.Range.Start.Line+1, d.Range.Start.Character+1)
	c.Fprintf(os.Stderr, "%s - %s: %s (%s)\n", loc, d.Severity, d.Message, d.Rule)
}

func printStats(c *cache.Cache) {
	if c == nil {
		fmt.Println("cache disabled")
		return
	}
	stats, err := c.ComputeStats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pytype: stats: %v\n", err)
		return
	}
	fmt.Printf("cache entries: %d\ntool version: %s\nconfig hash: %s\n", stats.Entries, stats.ToolVersion, stats.ConfigHash)
	if err := c.WriteStats(); err != nil {
		fmt.Fprintf(os.Stderr, "pytype: writing stats.json: %v\n", err)
	}
}

func printDependencies(prog *program.Program, targets []string) {
	for _, path := range targets {
		sf, ok := prog.File(path)
		if !ok {
			continue
		}
		fmt.Printf("%s:\n", path)
		imports := append([]string(nil), sf.Imports...)
		sort.Strings(imports)
		for _, imp := range imports {
			fmt.Printf("  %s\n", imp)
		}
	}
}

func runWatch(svc *service.Service, prog *program.Program, targets []string, root string, cfg *config.Config, minSeverity diagnostic.Severity, asJSON bool) {
	svc.OnDirty = func(changed []string) {
		fmt.Fprintf(os.Stderr, "\n--- re-checked %d file(s) ---\n", len(changed))
		diags := collectDiagnostics(prog, cfg, targets)
		reportDiagnostics(diags, minSeverity, asJSON)
	}
	if err := svc.Watch([]string{root}); err != nil {
		fmt.Fprintf(os.Stderr, "pytype: watch: %v\n", err)
		return
	}
	fmt.Fprintln(os.Stderr, "watching for changes, press Ctrl-C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	if err := svc.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "pytype: stopping watcher: %v\n", err)
	}
}

func printUsage(fs *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "\nUsage: pytype [flags] <file1> <file2> ...\n")
	fmt.Fprintf(os.Stderr, "Read a newline-separated file list from stdin: pytype -\n\n")
	fmt.Fprintln(os.Stderr, "Flags:")
	fs.PrintDefaults()
}
