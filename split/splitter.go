package split

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fragsplit/cfa"
	"fragsplit/common"
	"fragsplit/depgraph"
	"fragsplit/extract"
	"fragsplit/ir"
	"fragsplit/js"
	"fragsplit/liveness"
	"fragsplit/report"
	"fragsplit/util"
)

const tracerName = "fragsplit/split"

// Options configures a run of the splitter.
type Options struct {
	// The total number of fragments to aim for.  Zero means that every split
	// point gets its own fragment.
	ExpectedFragmentCount int

	// The estimated size in bytes below which exclusive fragments are merged
	// together.  Zero disables merging small fragments.
	MinFragmentSize int

	// Receives the dependency graphs of the analyses.  It defaults to
	// depgraph.Null.
	Recorder depgraph.Recorder

	// Receives every extraction decision.  It may be nil.
	StatementLogger extract.StatementLogger

	// Debug diagnostics.  The zero logger discards everything.
	Log zerolog.Logger
}

// ExclusiveFragmentCount returns the number of exclusive fragments to aim for
// given the length of the initial load sequence and the expected total number
// of fragments: the initial download, the fragments of the initial load
// sequence and the leftover fragment are not exclusive.
func ExclusiveFragmentCount(initialSeqLen, expectedFragmentCount int) int {
	return max(0, expectedFragmentCount-1-initialSeqLen-1)
}

// TotalScriptSize returns the total size of a split program given the byte
// length of each fragment.
func TotalScriptSize(fragmentLengths []int) int {
	total := 0
	for _, length := range fragmentLengths {
		total += length
	}

	return total
}

// Exec splits jsprog into fragments.  The split points of the initial load
// sequence must already be installed into prog.  The fragments are written
// back into prog and jsprog, and returned ordered by ID.  A program without
// split points is left untouched and Exec returns no fragments.
func Exec(ctx context.Context, prog *ir.Program, jsprog *js.Program, opts Options) (fragments []*Fragment, err error) {
	if len(prog.SplitPoints) == 0 {
		return nil, nil
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "split.Exec", trace.WithAttributes(
		attribute.Int("split_points", len(prog.SplitPoints)),
		attribute.Int("initial_sequence", len(prog.InitialSequence)),
		attribute.Int("expected_fragments", opts.ExpectedFragmentCount),
	))
	defer span.End()

	s := newSplitter(prog, jsprog, opts)

	if err := s.recorder.Open(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("opening dependency recorder: %w", err)
	}

	defer func() {
		if cerr := s.recorder.Close(); cerr != nil && err == nil {
			span.RecordError(cerr)
			span.SetStatus(codes.Error, cerr.Error())
			fragments, err = nil, fmt.Errorf("closing dependency recorder: %w", cerr)
		}
	}()

	s.execImpl(ctx)

	span.SetAttributes(attribute.Int("fragments", len(s.fragments)))
	return s.fragments, nil
}

// -----------------------------------------------------------------------------

// splitter holds the state of a single run of the splitter.
type splitter struct {
	prog      *ir.Program
	jsprog    *js.Program
	extractor *extract.Extractor
	recorder  depgraph.Recorder
	strategy  PartitionStrategy
	log       zerolog.Logger
	headings  headingLogger

	// The fragments ordered by ID.
	fragments []*Fragment

	initialFragmentIDs []int

	// The analysis at the end of the initial load sequence and the name of
	// its dependency graph.
	initialSeqCfa   *cfa.Analyzer
	initialSeqGraph string
}

func newSplitter(prog *ir.Program, jsprog *js.Program, opts Options) *splitter {
	s := &splitter{
		prog:      prog,
		jsprog:    jsprog,
		extractor: extract.New(jsprog),
		recorder:  opts.Recorder,
		log:       opts.Log,
	}

	if s.recorder == nil {
		s.recorder = depgraph.Null{}
	}

	s.extractor.SetStatementLogger(opts.StatementLogger)
	s.headings, _ = opts.StatementLogger.(headingLogger)

	if opts.ExpectedFragmentCount > 0 {
		s.strategy = &MergeBySimilarity{
			Target:  ExclusiveFragmentCount(len(prog.InitialSequence), opts.ExpectedFragmentCount),
			MinSize: opts.MinFragmentSize,
			Log:     opts.Log,
		}
	} else {
		s.strategy = OneToOne{}
	}

	return s
}

func (s *splitter) execImpl(ctx context.Context) {
	s.computeInitialFragments(ctx)

	exclusive, leftover := s.partition(ctx)

	em := s.computeExclusivity(ctx, exclusive)

	s.extractExclusiveFragments(ctx, em, exclusive, leftover)

	s.checkFragments()
	s.writeBack()
}

// newAnalyzer creates an analyzer recording its dependencies into a new graph.
// The analyzer is seeded from parent unless it is nil.  The caller ends the
// graph once the analyzer is extended.
func (s *splitter) newAnalyzer(parent *cfa.Analyzer, graph, extends string) *cfa.Analyzer {
	var a *cfa.Analyzer
	if parent == nil {
		a = cfa.New(s.prog)
	} else {
		a = cfa.NewFrom(parent)
	}

	if err := a.SetDependencyRecorder(s.recorder); err != nil {
		report.ICE("%s", err)
	}

	s.recorder.StartGraph(graph, extends)
	return a
}

// headingLogger is implemented by statement loggers which introduce the
// statements of each fragment, eg. extract.EchoLogger.
type headingLogger interface {
	Heading(format string, args ...interface{})
}

// logHeading introduces the extraction of frag to the statement logger.
func (s *splitter) logHeading(frag *Fragment) {
	if s.headings != nil {
		s.headings.Heading("fragment %d (%s): split points %v", frag.ID(), frag.Type(), splitPointIDs(frag))
	}
}

// addFragment numbers frag and appends it to the fragments.
func (s *splitter) addFragment(frag *Fragment) {
	frag.SetID(len(s.fragments))
	s.fragments = append(s.fragments, frag)
}

// computeInitialFragments builds the initial download and the fragments of the
// initial load sequence.
func (s *splitter) computeInitialFragments(ctx context.Context) {
	_, span := otel.Tracer(tracerName).Start(ctx, "split.InitialFragments")
	defer span.End()

	initialCfa := s.newAnalyzer(nil, "initial", "")
	initialCfa.TraverseEntryMethods()
	s.recorder.EndGraph()

	initialFrag := NewFragment(Initial)
	s.addFragment(initialFrag)
	s.logHeading(initialFrag)
	initialFrag.SetStatements(s.extractor.Extract(liveness.FromAnalyzer(initialCfa), liveness.Nothing{}))

	prevCfa, prevGraph := initialCfa, "initial"
	for _, sp := range s.prog.InitialSequence {
		graph := fmt.Sprintf("sp%d", sp.ID)

		cur := s.newAnalyzer(prevCfa, graph, prevGraph)
		cur.TraverseFromSplitPoint(sp)
		s.recorder.EndGraph()

		frag := NewFragment(Initial, sp)
		s.addFragment(frag)
		s.logHeading(frag)
		frag.SetStatements(s.extractor.Extract(liveness.FromAnalyzer(cur), liveness.FromAnalyzer(prevCfa)))
		frag.AddStatements(extract.CreateOnLoadedCall(frag.ID()))

		s.initialFragmentIDs = append(s.initialFragmentIDs, frag.ID())
		prevCfa, prevGraph = cur, graph
	}

	s.initialSeqCfa, s.initialSeqGraph = prevCfa, prevGraph

	s.log.Debug().
		Int("initial_fragments", len(s.fragments)).
		Int("initial_statements", len(initialFrag.Statements())).
		Msg("computed initial fragments")
}

// partition decides the exclusive fragments and numbers them.  It returns the
// exclusive fragments and the leftover fragment.
func (s *splitter) partition(ctx context.Context) ([]*Fragment, *Fragment) {
	_, span := otel.Tracer(tracerName).Start(ctx, "split.Partition")
	defer span.End()

	groups := groupSplitPoints(s.nonInitialSplitPoints())

	var exclusive []*Fragment
	leftover := NewFragment(NotExclusive)

	for _, frag := range s.strategy.PartitionIntoFragments(s.initialSeqCfa, groups) {
		if frag.Type() == Deleted {
			for _, sp := range frag.SplitPoints() {
				leftover.AddSplitPoint(sp)
			}

			continue
		}

		s.addFragment(frag)
		exclusive = append(exclusive, frag)
	}

	s.addFragment(leftover)

	span.SetAttributes(attribute.Int("exclusive_fragments", len(exclusive)))

	for _, frag := range exclusive {
		s.log.Debug().Int("fragment", frag.ID()).Ints("split_points", splitPointIDs(frag)).Msg("exclusive fragment")
	}

	return exclusive, leftover
}

// nonInitialSplitPoints returns the split points outside the initial load
// sequence ordered by ID.
func (s *splitter) nonInitialSplitPoints() []*ir.SplitPoint {
	return util.Filter(s.prog.SplitPoints, func(sp *ir.SplitPoint) bool {
		return !util.Contains(s.prog.InitialSequence, sp)
	})
}

// groupSplitPoints groups split points sharing an explicit tag.  Other split
// points form their own group.  Groups are ordered by their first split point.
func groupSplitPoints(splitPoints []*ir.SplitPoint) [][]*ir.SplitPoint {
	var groups [][]*ir.SplitPoint
	groupsByTag := make(map[string]int)

	for _, sp := range splitPoints {
		if !sp.HasExplicitTag {
			groups = append(groups, []*ir.SplitPoint{sp})
			continue
		}

		if i, ok := groupsByTag[sp.Name]; ok {
			groups[i] = append(groups[i], sp)
		} else {
			groupsByTag[sp.Name] = len(groups)
			groups = append(groups, []*ir.SplitPoint{sp})
		}
	}

	return groups
}

// computeExclusivity computes the exclusivity map of the exclusive fragments
// and fixes it up.
func (s *splitter) computeExclusivity(ctx context.Context, exclusive []*Fragment) *ExclusivityMap {
	_, span := otel.Tracer(tracerName).Start(ctx, "split.Exclusivity")
	defer span.End()

	completeCfa := s.newAnalyzer(nil, "total", "")
	completeCfa.TraverseEverything()
	s.recorder.EndGraph()

	nonInitial := s.nonInitialSplitPoints()

	// The complement of a fragment is everything reachable through any split
	// point the fragment does not own, including those of the leftover
	// fragment.
	complements := make([]*cfa.Analyzer, len(exclusive))
	for i, frag := range exclusive {
		comp := s.newAnalyzer(s.initialSeqCfa, fmt.Sprintf("sp%d", frag.minSplitPointID()), s.initialSeqGraph)
		for _, sp := range nonInitial {
			if !util.Contains(frag.SplitPoints(), sp) {
				comp.TraverseFromSplitPoint(sp)
			}
		}
		s.recorder.EndGraph()

		complements[i] = comp
	}

	em := ComputeExclusivityMap(exclusive, completeCfa, complements)
	em.FixUpLoadOrderDependencies(s.prog, s.extractor.FindAllMethodsInJavaScript(), s.log)

	exclusiveAtoms := 0
	completeCfa.EachNewlyLive(func(atom ir.Atom) {
		if em.Owner(atom).IsExclusive() {
			exclusiveAtoms++
		}
	})

	span.SetAttributes(attribute.Int("exclusive_atoms", exclusiveAtoms))
	s.log.Debug().Int("exclusive_atoms", exclusiveAtoms).Msg("computed exclusivity map")

	return em
}

// extractExclusiveFragments extracts the statements of the exclusive fragments
// and the leftover fragment.
func (s *splitter) extractExclusiveFragments(ctx context.Context, em *ExclusivityMap, exclusive []*Fragment, leftover *Fragment) {
	_, span := otel.Tracer(tracerName).Start(ctx, "split.Extract")
	defer span.End()

	for _, frag := range exclusive {
		s.logHeading(frag)
		frag.SetStatements(s.extractor.Extract(em.Predicate(ExclusiveTo(frag)), em.AlreadyLoadedFor(frag)))
		frag.AddStatements(extract.CreateOnLoadedCall(frag.ID()))
	}

	s.logHeading(leftover)
	leftover.SetStatements(s.extractor.Extract(em.Predicate(NotExclusiveOwner), liveness.FromAnalyzer(s.initialSeqCfa)))
	leftover.AddStatements(extract.CreateOnLoadedCall(leftover.ID()))
}

// checkFragments checks that fragments are numbered densely in the order
// initial, exclusive, leftover and that every split point belongs to exactly
// one fragment.
func (s *splitter) checkFragments() {
	owners := make(map[int]int)

	for i, frag := range s.fragments {
		if frag.ID() != i {
			report.ICE("fragment at position %d has ID %d", i, frag.ID())
		}

		switch frag.Type() {
		case Initial:
			if i > 0 && s.fragments[i-1].Type() != Initial {
				report.ICE("initial fragment %d follows a %s fragment", i, s.fragments[i-1].Type())
			}
		case Exclusive:
			if i == 0 {
				report.ICE("exclusive fragment numbered 0")
			}
		case NotExclusive:
			if i != len(s.fragments)-1 {
				report.ICE("leftover fragment %d is not the last fragment", i)
			}
		default:
			report.ICE("%s fragment %d was numbered", frag.Type(), i)
		}

		if i > 0 && frag.Type() == Exclusive && s.fragments[i-1].Type() == NotExclusive {
			report.ICE("exclusive fragment %d follows the leftover fragment", i)
		}

		for _, sp := range frag.SplitPoints() {
			if owner, ok := owners[sp.ID]; ok {
				report.ICE("split point %s belongs to fragments %d and %d", sp, owner, i)
			}

			owners[sp.ID] = i
		}
	}

	if last := s.fragments[len(s.fragments)-1]; last.Type() != NotExclusive {
		report.ICE("the last fragment is %s rather than leftover", last.Type())
	}

	for _, sp := range s.prog.SplitPoints {
		if _, ok := owners[sp.ID]; !ok {
			report.ICE("split point %s belongs to no fragment", sp)
		}
	}
}

// writeBack installs the fragments into the program and patches the numeric
// entries which depend on the fragment numbering.
func (s *splitter) writeBack() {
	fp := ir.NewFragmentPartitioning(len(s.prog.SplitPoints), len(s.fragments))

	stmts := make([][]js.Statement, len(s.fragments))
	for i, frag := range s.fragments {
		stmts[i] = frag.Statements()

		for _, sp := range frag.SplitPoints() {
			fp.SetFragmentFor(sp.ID, frag.ID())
		}
	}

	s.prog.SetFragmentPartitioning(fp)
	s.prog.SetInitialFragmentIDSequence(s.initialFragmentIDs)
	s.jsprog.SetFragments(stmts)

	for _, entry := range js.NumericEntries(s.jsprog.Global) {
		var value int

		switch entry.Key {
		case common.RunAsyncFragmentIndex:
			if _, ok := s.prog.SplitPointByID(entry.Value); !ok {
				report.ICE("deferred-load call refers to unknown split point %d", entry.Value)
			}

			value = fp.FragmentFor(entry.Value)
		case common.RunAsyncFragmentCount:
			value = fp.LeftoverFragment()
		default:
			continue
		}

		if !entry.Patch(value) {
			report.ICE("numeric entry `%s` was patched twice", entry.Key)
		}
	}
}

func splitPointIDs(frag *Fragment) []int {
	var ids []int
	for _, sp := range frag.SplitPoints() {
		ids = append(ids, sp.ID)
	}

	return ids
}
