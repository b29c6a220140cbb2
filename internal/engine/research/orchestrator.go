package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/engine/embedding"
)

// ErrNoTranscript is returned by a Transcripts provider when a video
// has no usable captions. The orchestrator treats it as a normal skip,
// not a failure.
var ErrNoTranscript = errors.New("no transcript available")

// Catalog duration classes.
const (
	DurationShort  = "short"  // under 60 seconds
	DurationMedium = "medium" // 1-35 minutes
)

// Providers consumed by the orchestrator. Implementations live in
// internal/engine/sources; tests supply in-package fakes.
type (
	// Catalog searches the video platform and resolves metadata.
	Catalog interface {
		Search(ctx context.Context, query, durationClass string, maxResults int) ([]string, error)
		Details(ctx context.Context, ids []string) (map[string]VideoMetadata, error)
	}

	// Transcripts fetches timed caption segments for one video, or
	// ErrNoTranscript when captions are unavailable.
	Transcripts interface {
		Fetch(ctx context.Context, videoID string) ([]TranscriptSegment, error)
	}

	// Comments fetches top viewer comments; best-effort.
	Comments interface {
		Fetch(ctx context.Context, videoID string, max int) ([]Comment, error)
	}

	// ModelSession is the single source of intelligence: an opaque
	// prompt/response oracle.
	ModelSession interface {
		Send(ctx context.Context, prompt string, maxTokens int) (string, error)
	}
)

// ProgressFunc receives human-readable stage names with a
// monotonically increasing completion fraction in [0,1].
type ProgressFunc func(stage string, fraction float64)

// Options are the research-loop tunables. Zero values take defaults.
type Options struct {
	MaxIterations    int     // research rounds, default 3
	ShortPerTerm     int     // short-class candidates per term, default 5
	MediumPerTerm    int     // medium-class candidates per term, default 3
	MediumMaxSeconds int     // medium-class duration cap, default 2100 (35 min)
	ChunkSize        int     // chunk word target, default 300
	Overlap          int     // chunk overlap word target, default 50
	SectionTopK      int     // chunks retrieved per report section, default 5
	SectionThreshold float64 // per-section similarity cutoff, default 0.6
	MaxComments      int     // comments per video in summary prompts, default 10
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = 3
	}
	if o.ShortPerTerm <= 0 {
		o.ShortPerTerm = 5
	}
	if o.MediumPerTerm <= 0 {
		o.MediumPerTerm = 3
	}
	if o.MediumMaxSeconds <= 0 {
		o.MediumMaxSeconds = 2100
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Overlap <= 0 {
		o.Overlap = DefaultOverlap
	}
	if o.SectionTopK <= 0 {
		o.SectionTopK = 5
	}
	if o.SectionThreshold <= 0 {
		o.SectionThreshold = 0.6
	}
	if o.MaxComments <= 0 {
		o.MaxComments = 10
	}
	return o
}

// Orchestrator drives the iterative research loop: generate terms,
// discover and index videos, assess, repeat, then assemble the cited
// report. One Orchestrator serves any number of concurrent sessions;
// per-session state lives in the Store.
type Orchestrator struct {
	Catalog     Catalog
	Transcripts Transcripts
	Comments    Comments
	Model       ModelSession
	Embedder    embedding.Engine
	Store       *Store
	Opts        Options
	Progress    ProgressFunc
}

// maxTranscriptChars caps the transcript text included in a summary
// prompt.
const maxTranscriptChars = 8000

// videoContent is the joined result of one video's concurrent
// transcript and comment fetches.
type videoContent struct {
	meta     VideoMetadata
	segments []TranscriptSegment
	comments []Comment
}

// Run executes a full research session under key and returns the
// assembled report. The session is registered before any model call
// and torn down on every exit path; a duplicate key fails immediately
// with no side effects. Per-video provider failures are absorbed as
// skips; malformed model responses abort the session.
func (o *Orchestrator) Run(ctx context.Context, key, topic string) (*Result, error) {
	opts := o.Opts.withDefaults()
	sess, err := o.Store.Create(key, topic, opts.MaxIterations, NewVectorIndex(o.Embedder))
	if err != nil {
		return nil, err
	}
	defer o.Store.Delete(key)

	res, err := o.run(ctx, sess, opts)
	if err != nil {
		return nil, fmt.Errorf("research %q: %w", topic, err)
	}
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, sess *Session, opts Options) (*Result, error) {
	// Monotonic progress over MaxIterations+1 phases, the last being
	// report assembly.
	var lastFrac float64
	emit := func(stage string, frac float64) {
		if frac < lastFrac {
			frac = lastFrac
		}
		lastFrac = frac
		if o.Progress != nil {
			o.Progress(stage, frac)
		}
	}
	phases := float64(opts.MaxIterations + 1)

	terms, err := o.generateInitialTerms(ctx, sess.Query)
	if err != nil {
		return nil, err
	}
	sess.SearchTerms = append(sess.SearchTerms, terms.Term1, terms.Term2)
	slog.Info("research: initial terms",
		slog.String("topic", sess.Query),
		slog.String("term1", terms.Term1),
		slog.String("term2", terms.Term2))

	for i := 1; i <= opts.MaxIterations; i++ {
		sess.Iteration = i
		base := float64(i-1) / phases
		step := func(stage string, sub float64) {
			emit(stage, base+sub/phases)
		}
		if err := o.iterate(ctx, sess, opts, step); err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i, err)
		}
		emit(fmt.Sprintf("iteration %d/%d complete", i, opts.MaxIterations), float64(i)/phases)
	}

	emit("assembling report", float64(opts.MaxIterations)/phases)
	report, err := o.finalize(ctx, sess, opts)
	if err != nil {
		return nil, err
	}
	emit("complete", 1)

	return &Result{
		Topic:         sess.Query,
		Report:        report,
		Iterations:    sess.Iteration,
		VideosIndexed: len(sess.Processed),
		ChunksIndexed: sess.Index.Len(),
		SearchTerms:   sess.SearchTerms,
	}, nil
}

func (o *Orchestrator) generateInitialTerms(ctx context.Context, topic string) (*SearchTerms, error) {
	raw, err := o.Model.Send(ctx, buildInitialTermsPrompt(topic), promptMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("initial terms: %w", err)
	}
	terms, err := decodeResponse[SearchTerms]("initial terms", raw)
	if err != nil {
		return nil, err
	}
	if err := terms.Validate(); err != nil {
		return nil, fmt.Errorf("initial terms: %w", err)
	}
	return &terms, nil
}

// iterate runs one research round: discover candidates for the two
// most recent terms, fetch and index the unseen ones, summarize them,
// then assess progress.
func (o *Orchestrator) iterate(ctx context.Context, sess *Session, opts Options, step func(string, float64)) error {
	terms := sess.SearchTerms
	if len(terms) > 2 {
		terms = terms[len(terms)-2:]
	}

	candidates := make(map[string]VideoMetadata)
	for _, term := range terms {
		found := o.discover(ctx, term, opts, step)
		for id, meta := range found {
			candidates[id] = meta
		}
	}
	step("candidates resolved", 0.5)

	var unseen []VideoMetadata
	for id, meta := range candidates {
		if !sess.Seen(id) {
			unseen = append(unseen, meta)
		}
	}
	fetched := o.fetchContent(ctx, unseen, opts)
	step("captions fetched", 0.7)

	var newSummaries []VideoSummary
	for _, vc := range fetched {
		if sess.Seen(vc.meta.ID) {
			continue
		}
		chunks := ChunkSegments(vc.segments, opts.ChunkSize, opts.Overlap)
		if len(chunks) == 0 {
			continue
		}
		for ci := range chunks {
			chunks[ci].Video = vc.meta
		}
		if err := sess.Index.Add(ctx, chunks); err != nil {
			return fmt.Errorf("index video %s: %w", vc.meta.ID, err)
		}
		sess.Record(vc.meta)

		summary, err := o.summarize(ctx, vc)
		if err != nil {
			return err
		}
		sess.Summaries = append(sess.Summaries, *summary)
		newSummaries = append(newSummaries, *summary)
		slog.Info("research: video indexed",
			slog.String("video", vc.meta.ID),
			slog.Int("chunks", len(chunks)))
	}

	return o.assess(ctx, sess, opts, newSummaries)
}

// discover searches one term in both duration classes concurrently,
// resolves details, and drops medium candidates over the duration cap.
// Catalog failures are absorbed: the term simply contributes nothing.
func (o *Orchestrator) discover(ctx context.Context, term string, opts Options, step func(string, float64)) map[string]VideoMetadata {
	type classResult struct {
		class string
		ids   []string
		err   error
	}
	ch := make(chan classResult, 2)
	search := func(class string, max int) {
		ids, err := o.Catalog.Search(ctx, term, class, max)
		ch <- classResult{class: class, ids: ids, err: err}
	}
	go search(DurationShort, opts.ShortPerTerm)
	go search(DurationMedium, opts.MediumPerTerm)

	var ids []string
	medium := make(map[string]bool)
	for range [2]struct{}{} {
		res := <-ch
		if res.err != nil {
			slog.Warn("research: catalog search failed",
				slog.String("term", term),
				slog.String("class", res.class),
				slog.Any("error", res.err))
			continue
		}
		for _, id := range res.ids {
			ids = append(ids, id)
			if res.class == DurationMedium {
				medium[id] = true
			}
		}
	}
	step("search: "+term, 0.3)
	if len(ids) == 0 {
		return nil
	}

	details, err := o.Catalog.Details(ctx, ids)
	if err != nil {
		slog.Warn("research: details fetch failed",
			slog.String("term", term), slog.Any("error", err))
		return nil
	}
	for id, meta := range details {
		if medium[id] && meta.Duration > opts.MediumMaxSeconds {
			delete(details, id)
		}
	}
	return details
}

// fetchContent fetches transcripts and comments for the given videos
// concurrently and joins before returning. Videos without usable
// captions are skipped; comment failures degrade to no comments.
func (o *Orchestrator) fetchContent(ctx context.Context, videos []VideoMetadata, opts Options) []videoContent {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		collected []videoContent
	)
	for _, meta := range videos {
		wg.Add(1)
		go func(meta VideoMetadata) {
			defer wg.Done()
			segs, err := o.Transcripts.Fetch(ctx, meta.ID)
			if err != nil {
				if errors.Is(err, ErrNoTranscript) {
					slog.Debug("research: no transcript, skipping", slog.String("video", meta.ID))
				} else {
					slog.Warn("research: transcript fetch failed, skipping",
						slog.String("video", meta.ID), slog.Any("error", err))
				}
				return
			}
			segs = CleanSegments(segs)
			if len(segs) == 0 {
				slog.Debug("research: empty transcript, skipping", slog.String("video", meta.ID))
				return
			}
			comments, err := o.Comments.Fetch(ctx, meta.ID, opts.MaxComments)
			if err != nil {
				slog.Debug("research: comments unavailable",
					slog.String("video", meta.ID), slog.Any("error", err))
				comments = nil
			}
			mu.Lock()
			collected = append(collected, videoContent{meta: meta, segments: segs, comments: comments})
			mu.Unlock()
		}(meta)
	}
	wg.Wait()
	return collected
}

func (o *Orchestrator) summarize(ctx context.Context, vc videoContent) (*VideoSummary, error) {
	texts := make([]string, len(vc.segments))
	for i, s := range vc.segments {
		texts[i] = s.Text
	}
	transcript := engine.TruncateRunes(strings.Join(texts, " "), maxTranscriptChars, "...")

	raw, err := o.Model.Send(ctx, buildSummaryPrompt(vc.meta, transcript, vc.comments), promptMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("summarize video %s: %w", vc.meta.ID, err)
	}
	summary, err := decodeResponse[VideoSummary]("video summary", raw)
	if err != nil {
		return nil, err
	}
	if err := summary.Validate(); err != nil {
		return nil, fmt.Errorf("video summary %s: %w", vc.meta.ID, err)
	}
	summary.VideoID = vc.meta.ID
	summary.Title = vc.meta.Title
	return &summary, nil
}

// assess submits the per-iteration assessment and applies its outcome:
// the outline is replaced wholesale, and unless this was the final
// iteration, two fresh terms extend the term list.
func (o *Orchestrator) assess(ctx context.Context, sess *Session, opts Options, summaries []VideoSummary) error {
	final := sess.Iteration == opts.MaxIterations
	prompt := buildAssessmentPrompt(sess.Query, sess.Outline,
		sess.Iteration, opts.MaxIterations, sess.SearchTerms, summaries)
	raw, err := o.Model.Send(ctx, prompt, promptMaxTokens)
	if err != nil {
		return fmt.Errorf("assessment: %w", err)
	}
	assessment, err := decodeResponse[Assessment]("assessment", raw)
	if err != nil {
		return err
	}
	if err := assessment.Validate(final); err != nil {
		return fmt.Errorf("assessment: %w", err)
	}

	sess.Outline = assessment.OutlineUpdates
	slog.Info("research: assessment",
		slog.Int("iteration", sess.Iteration),
		slog.String("assessment", engine.TruncateRunes(assessment.Assessment, 160, "...")))

	if !final {
		sess.SearchTerms = append(sess.SearchTerms, assessment.Term1, assessment.Term2)
	}
	return nil
}

// finalize splits the outline into sections, retrieves the top chunks
// per section from the session index, asks the model for the report
// synthesis, and renders the final markdown.
func (o *Orchestrator) finalize(ctx context.Context, sess *Session, opts Options) (string, error) {
	sections := SplitOutline(sess.Outline)
	for si := range sections {
		query := sections[si].Title
		if sections[si].Body != "" {
			query += "\n" + sections[si].Body
		}
		hits, err := sess.Index.Search(ctx, query, opts.SectionTopK, opts.SectionThreshold)
		if err != nil {
			return "", fmt.Errorf("retrieve section %q: %w", sections[si].Title, err)
		}
		sections[si].Chunks = hits
	}

	synthesis, err := o.Model.Send(ctx,
		buildFinalReportPrompt(sess.Query, sess.Outline, sections, sess.Processed),
		reportMaxTokens)
	if err != nil {
		return "", fmt.Errorf("final report: %w", err)
	}

	return RenderReport(sess.Query, synthesis, sections, sess.Processed), nil
}
