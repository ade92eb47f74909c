package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rand/cascade/internal/oracle"
)

// Config controls resolution behavior.
type Config struct {
	// MaxDepth bounds recursion. Nodes at this depth are answered
	// directly without classification.
	MaxDepth int

	// ReasonerTemperature is used for direct answers and composition.
	ReasonerTemperature float64

	// DecomposeTemperature is used for sub-question generation.
	DecomposeTemperature float64

	// MaxTokens caps each oracle completion.
	MaxTokens int

	// Parallel resolves sibling sub-questions concurrently. Answers
	// are still composed in decomposition order.
	Parallel bool

	// MaxParallel bounds concurrent sibling resolution when Parallel
	// is set. Zero means no bound beyond the depth fan-out.
	MaxParallel int
}

// DefaultConfig returns the standard resolution parameters.
func DefaultConfig() Config {
	return Config{
		MaxDepth:             3,
		ReasonerTemperature:  0.7,
		DecomposeTemperature: 0.4,
		MaxTokens:            2048,
	}
}

// Resolver answers questions by recursive decomposition. Complex
// questions are split into sub-questions, each resolved at depth+1,
// and the sub-answers composed into a final answer. Simple questions
// and questions at the depth bound are answered directly.
type Resolver struct {
	classifier *Classifier
	decomposer *Decomposer
	answerer   *Answerer
	composer   *Composer
	config     Config
	trace      TraceRecorder
	logger     *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTrace sets the trace recorder.
func WithTrace(rec TraceRecorder) Option {
	return func(r *Resolver) {
		if rec != nil {
			r.trace = rec
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver builds a Resolver over the given oracle.
func NewResolver(completer oracle.Completer, config Config, opts ...Option) *Resolver {
	// Zero is a valid bound and forces direct answers at the root.
	if config.MaxDepth < 0 {
		config.MaxDepth = 3
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 2048
	}
	r := &Resolver{
		classifier: NewClassifier(completer),
		decomposer: NewDecomposer(completer, config.DecomposeTemperature, config.MaxTokens),
		answerer:   NewAnswerer(completer, config.ReasonerTemperature, config.MaxTokens),
		composer:   NewComposer(completer, config.ReasonerTemperature, config.MaxTokens),
		config:     config,
		trace:      nopTrace{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve answers question, recording the full recursion tree rooted at
// the returned node. depth is the current recursion depth; callers
// start at 0. Background strings are threaded into every prompt.
//
// Oracle failures abort the whole resolution. The partial tree is not
// returned on error.
func (r *Resolver) Resolve(ctx context.Context, question string, background []string, depth int) (string, *Node, error) {
	return r.resolve(ctx, question, background, depth, "")
}

// resolve carries the parent node's first event ID so that persisted
// events can be re-linked into a tree.
func (r *Resolver) resolve(ctx context.Context, question string, background []string, depth int, parentID string) (string, *Node, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	node := NewNode(question, depth)

	// Depth bound is checked before classification. A node at the
	// bound is never classified, only answered.
	if depth >= r.config.MaxDepth {
		node.Complexity = ComplexityMaxDepth
		r.logger.Debug("depth bound reached, answering directly",
			"depth", depth, "question", preview(question, 80))

		answer, err := r.timedAnswer(ctx, node, background, parentID)
		if err != nil {
			return "", nil, err
		}
		node.Answer = answer
		return answer, node, nil
	}

	verdict, classifyID, err := r.timedClassify(ctx, node, parentID)
	if err != nil {
		return "", nil, err
	}
	node.Complexity = verdict

	if verdict == ComplexitySimple {
		answer, err := r.timedAnswer(ctx, node, background, parentID)
		if err != nil {
			return "", nil, err
		}
		node.Answer = answer
		return answer, node, nil
	}

	subQuestions, err := r.timedDecompose(ctx, node, background, parentID)
	if err != nil {
		return "", nil, err
	}
	node.SubQuestions = subQuestions

	r.logger.Debug("decomposed question",
		"depth", depth, "sub_questions", len(subQuestions))

	pairs, children, err := r.resolveChildren(ctx, subQuestions, background, depth+1, classifyID)
	if err != nil {
		return "", nil, err
	}
	node.Children = children

	answer, err := r.timedCompose(ctx, node, pairs, parentID)
	if err != nil {
		return "", nil, err
	}
	node.Answer = answer
	return answer, node, nil
}

// resolveChildren resolves each sub-question at the child depth. The
// returned pairs and children match the sub-question order regardless
// of execution order.
func (r *Resolver) resolveChildren(ctx context.Context, subQuestions []string, background []string, depth int, parentID string) ([]AnswerPair, []*Node, error) {
	pairs := make([]AnswerPair, len(subQuestions))
	children := make([]*Node, len(subQuestions))

	if !r.config.Parallel || len(subQuestions) < 2 {
		for i, sq := range subQuestions {
			answer, child, err := r.resolve(ctx, sq, background, depth, parentID)
			if err != nil {
				return nil, nil, err
			}
			pairs[i] = AnswerPair{Question: sq, Answer: answer}
			children[i] = child
		}
		return pairs, children, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if r.config.MaxParallel > 0 {
		group.SetLimit(r.config.MaxParallel)
	}
	for i, sq := range subQuestions {
		group.Go(func() error {
			answer, child, err := r.resolve(groupCtx, sq, background, depth, parentID)
			if err != nil {
				return err
			}
			pairs[i] = AnswerPair{Question: sq, Answer: answer}
			children[i] = child
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	return pairs, children, nil
}

func (r *Resolver) timedClassify(ctx context.Context, node *Node, parentID string) (Complexity, string, error) {
	start := time.Now()
	verdict, err := r.classifier.Classify(ctx, node.Question)
	id := nextEventID()
	r.record(TraceEvent{
		ID:        id,
		Type:      EventClassify,
		Question:  preview(node.Question, 120),
		Verdict:   verdict,
		Depth:     node.Depth,
		ParentID:  parentID,
		Tokens:    estimateTokens(node.Question) + estimateTokens(string(verdict)),
		Duration:  time.Since(start),
		Timestamp: start,
		Status:    statusOf(err),
	})
	return verdict, id, err
}

func (r *Resolver) timedDecompose(ctx context.Context, node *Node, background []string, parentID string) ([]string, error) {
	start := time.Now()
	subs, err := r.decomposer.Decompose(ctx, node.Question, background)
	event := TraceEvent{
		ID:        nextEventID(),
		Type:      EventDecompose,
		Question:  preview(node.Question, 120),
		Depth:     node.Depth,
		ParentID:  parentID,
		Tokens:    estimateTokens(node.Question),
		Duration:  time.Since(start),
		Timestamp: start,
		Status:    statusOf(err),
	}
	if err == nil {
		event.Preview = fmt.Sprintf("%d sub-questions", len(subs))
		for _, sub := range subs {
			event.Tokens += estimateTokens(sub)
		}
	}
	r.record(event)
	return subs, err
}

func (r *Resolver) timedAnswer(ctx context.Context, node *Node, background []string, parentID string) (string, error) {
	start := time.Now()
	answer, err := r.answerer.Answer(ctx, node.Question, background)
	eventType := EventAnswer
	if node.Complexity == ComplexityMaxDepth {
		eventType = EventMaxDepth
	}
	r.record(TraceEvent{
		ID:        nextEventID(),
		Type:      eventType,
		Question:  preview(node.Question, 120),
		Verdict:   node.Complexity,
		Preview:   preview(answer, 120),
		Depth:     node.Depth,
		ParentID:  parentID,
		Tokens:    estimateTokens(node.Question) + estimateTokens(answer),
		Duration:  time.Since(start),
		Timestamp: start,
		Status:    statusOf(err),
	})
	return answer, err
}

func (r *Resolver) timedCompose(ctx context.Context, node *Node, pairs []AnswerPair, parentID string) (string, error) {
	start := time.Now()
	answer, err := r.composer.Compose(ctx, node.Question, pairs)
	tokens := estimateTokens(node.Question) + estimateTokens(answer)
	for _, pair := range pairs {
		tokens += estimateTokens(pair.Answer)
	}
	r.record(TraceEvent{
		ID:        nextEventID(),
		Type:      EventCompose,
		Question:  preview(node.Question, 120),
		Preview:   preview(answer, 120),
		Depth:     node.Depth,
		ParentID:  parentID,
		Tokens:    tokens,
		Duration:  time.Since(start),
		Timestamp: start,
		Status:    statusOf(err),
	})
	return answer, err
}

func (r *Resolver) record(event TraceEvent) {
	if err := r.trace.RecordEvent(event); err != nil {
		r.logger.Warn("trace record failed", "error", err)
	}
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
