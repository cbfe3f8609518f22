package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"fragsplit/common"
	"fragsplit/depgraph"
	"fragsplit/extract"
	"fragsplit/gen"
	"fragsplit/ir"
	"fragsplit/js"
	"fragsplit/profile"
	"fragsplit/progfile"
	"fragsplit/report"
	"fragsplit/split"
	"fragsplit/util"
)

// Driver is the data structure responsible for maintaining all high-level
// state of a run of the splitter: it loads a program description, splits it
// according to the split profile and writes the resulting fragments.
type Driver struct {
	// programPath is the path to the program description
	programPath string

	// prof is the split profile being used to split the program
	prof *profile.SplitProfile

	// fragmentMap receives the declarations kept in each fragment.  It is
	// only used when the profile asks for the fragment map.
	fragmentMap io.Writer

	prog   *ir.Program
	jsprog *js.Program

	// fragments is nil if the program has no split points
	fragments []*split.Fragment
}

// NewDriver creates a new driver for a given program description and split
// profile.
func NewDriver(programPath string, prof *profile.SplitProfile) *Driver {
	return &Driver{
		programPath: programPath,
		prof:        prof,
		fragmentMap: os.Stdout,
	}
}

// SetFragmentMapOutput sets the writer receiving the fragment map.
func (d *Driver) SetFragmentMapOutput(w io.Writer) {
	d.fragmentMap = w
}

// Split runs the full splitting algorithm and writes the fragments to the
// output directory of the profile.  It handles all errors appropriately and
// returns a boolean indicating whether or not splitting was successful.
func (d *Driver) Split(ctx context.Context) bool {
	// close the current phase before the panic reaches CatchErrors
	defer func() {
		if x := recover(); x != nil {
			report.EndPhase(false)
			panic(x)
		}
	}()

	if !d.load() {
		return false
	}

	if !d.split(ctx) {
		return false
	}

	sizes, ok := d.write()
	if !ok {
		return false
	}

	d.displaySummary(sizes)
	return !report.AnyErrors()
}

// load loads the program description and installs the initial load sequence.
func (d *Driver) load() bool {
	report.BeginPhase("Loading")

	prog, errs := progfile.Load(d.programPath)
	if len(errs) > 0 {
		report.EndPhase(false)
		for _, cerr := range errs {
			report.ReportConfigError(cerr)
		}

		return false
	}

	sequence, errs := split.PickInitialLoadSequence(prog, d.prof.InitialSequence)
	if len(errs) > 0 {
		report.EndPhase(false)
		for _, cerr := range errs {
			report.ReportConfigError(cerr)
		}

		return false
	}

	prog.InitialSequence = sequence
	d.prog = prog
	d.jsprog = gen.Generate(prog)

	report.EndPhase(true)
	report.ReportInfo("Program", "%d types, %d split points", len(prog.Types), len(prog.SplitPoints))
	return true
}

// split runs the splitter over the generated program.
func (d *Driver) split(ctx context.Context) bool {
	opts := split.Options{
		ExpectedFragmentCount: d.prof.ExpectedFragmentCount,
		MinFragmentSize:       d.prof.MinFragmentSize,
		Log:                   report.Debug(),
	}

	if d.prof.DependencyGraphPath != "" {
		if err := os.MkdirAll(filepath.Dir(d.prof.DependencyGraphPath), os.ModePerm); err != nil {
			report.ReportStdError("Dependency Graph Error", err)
			return false
		}

		f, err := os.Create(d.prof.DependencyGraphPath)
		if err != nil {
			report.ReportStdError("Dependency Graph Error", err)
			return false
		}
		defer f.Close()

		opts.Recorder = depgraph.NewYAMLRecorder(f)
	}

	if d.prof.LogFragmentMap && d.fragmentMap != nil {
		opts.StatementLogger = extract.NewEchoLogger(d.fragmentMap)
	}

	report.BeginPhase("Splitting")

	fragments, err := split.Exec(ctx, d.prog, d.jsprog, opts)
	if err != nil {
		report.EndPhase(false)
		report.ReportStdError("Split Error", err)
		return false
	}

	d.fragments = fragments

	report.EndPhase(true)
	return true
}

// write writes every fragment of the program to the output directory: the
// initial download to `initial.js` and every other fragment N to
// `deferredjs/N.cache.js`.  It returns the size of each fragment in bytes.
func (d *Driver) write() ([]int, bool) {
	report.BeginPhase("Writing")

	deferredDir := filepath.Join(d.prof.OutputPath, common.DeferredJSDir)
	if err := os.MkdirAll(deferredDir, os.ModePerm); err != nil {
		report.EndPhase(false)
		report.ReportStdError("Output Error", err)
		return nil, false
	}

	sizes := make([]int, d.jsprog.FragmentCount())
	for i := range sizes {
		path := filepath.Join(deferredDir, strconv.Itoa(i)+common.DeferredJSSuffix)
		if i == 0 {
			path = filepath.Join(d.prof.OutputPath, common.InitialFragmentOut)
		}

		src := js.Source(d.jsprog.Fragment(i))
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			report.EndPhase(false)
			report.ReportStdError("Output Error", err)
			return nil, false
		}

		sizes[i] = len(src)
	}

	report.EndPhase(true)
	return sizes, true
}

// displaySummary displays a table of the written fragments.
func (d *Driver) displaySummary(sizes []int) {
	rows := [][]string{{"Fragment", "Type", "Split Points", "Size"}}

	if d.fragments == nil {
		rows = append(rows, []string{"0", split.Initial.String(), "", strconv.Itoa(sizes[0])})
	} else {
		for i, frag := range d.fragments {
			names := strings.Join(util.Map(frag.SplitPoints(), func(sp *ir.SplitPoint) string {
				return sp.Name
			}), ", ")

			rows = append(rows, []string{strconv.Itoa(i), frag.Type().String(), names, strconv.Itoa(sizes[i])})
		}
	}

	rows = append(rows, []string{"Total", "", "", strconv.Itoa(split.TotalScriptSize(sizes))})

	if err := report.DisplayTable(rows); err != nil {
		report.ReportStdError("Display Error", fmt.Errorf("failed to display summary: %w", err))
	}
}

// Fragments returns the fragments of the last split.  It is nil if the
// program has no split points.
func (d *Driver) Fragments() []*split.Fragment {
	return d.fragments
}
