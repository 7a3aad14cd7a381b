package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"guardian/internal/content"
	"guardian/internal/scanning/classifier"
	"guardian/internal/scanning/models"
	"guardian/pkg/platform/sentinel"
	strutil "guardian/pkg/platform/strings"
)

// fanoutResult holds each analysis' output. Each goroutine writes only its
// own fields.
type fanoutResult struct {
	classifier    []models.Violation
	classifierErr error
	metadata      []models.Violation
	metadataErr   error
	hash          []models.Violation
	hashErr       error
}

func (f *fanoutResult) violations() []models.Violation {
	out := make([]models.Violation, 0, len(f.classifier)+len(f.metadata)+len(f.hash))
	out = append(out, f.classifier...)
	out = append(out, f.metadata...)
	return append(out, f.hash...)
}

func (f *fanoutResult) failures() []string {
	var out []string
	if f.classifierErr != nil {
		out = append(out, analysisFailure("classifier", f.classifierErr))
	}
	if f.metadataErr != nil {
		out = append(out, analysisFailure("metadata analysis", f.metadataErr))
	}
	if f.hashErr != nil {
		out = append(out, analysisFailure("hash lookup", f.hashErr))
	}
	return out
}

// analyze runs the three analyses concurrently under the scan timeout.
// Failures are kept per analysis so one failing leg does not discard what
// the others found.
func (s *Service) analyze(ctx context.Context, in classifier.Input) *fanoutResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	var result fanoutResult

	s.launch(ctx, g, "classifier", &result.classifier, &result.classifierErr, func(ctx context.Context) ([]models.Violation, error) {
		return s.classify(ctx, in)
	})
	s.launch(ctx, g, "metadata", &result.metadata, &result.metadataErr, func(ctx context.Context) ([]models.Violation, error) {
		return s.inspectMetadata(ctx, in.Metadata)
	})
	s.launch(ctx, g, "hash", &result.hash, &result.hashErr, func(ctx context.Context) ([]models.Violation, error) {
		return s.matchHash(ctx, in.Payload)
	})

	_ = g.Wait()
	return &result
}

type analysisOutcome struct {
	violations []models.Violation
	err        error
}

// launch runs fn in g. A panic becomes an error, and an analysis still
// running when ctx ends is abandoned with ctx's error.
func (s *Service) launch(
	ctx context.Context,
	g *errgroup.Group,
	analysis string,
	out *[]models.Violation,
	outErr *error,
	fn func(ctx context.Context) ([]models.Violation, error),
) {
	g.Go(func() error {
		done := make(chan analysisOutcome, 1)
		go func() {
			defer func() {
				if rec := recover(); rec != nil {
					s.logger.ErrorContext(ctx, "scan analysis panicked",
						"analysis", analysis,
						"panic", rec,
					)
					done <- analysisOutcome{err: fmt.Errorf("panic: %v", rec)}
				}
			}()
			violations, err := fn(ctx)
			done <- analysisOutcome{violations: violations, err: err}
		}()

		var o analysisOutcome
		select {
		case o = <-done:
		case <-ctx.Done():
			o = analysisOutcome{err: ctx.Err()}
		}
		if o.err != nil {
			*outErr = o.err
			if s.metrics != nil {
				s.metrics.IncrementFailure(analysis)
			}
			return nil
		}
		*out = o.violations
		return nil
	})
}

func (s *Service) classify(ctx context.Context, in classifier.Input) ([]models.Violation, error) {
	if s.classifier == nil {
		return nil, nil
	}
	ctx, span := s.tracer.Start(ctx, "scanning.classifier")
	scores, err := s.classifier.Classify(ctx, in)
	span.End(err)
	if err != nil {
		return nil, err
	}
	var out []models.Violation
	for _, score := range scores {
		if v, ok := s.violationFromScore(score); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Service) inspectMetadata(ctx context.Context, meta content.Metadata) ([]models.Violation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []models.Violation
	if meta.DeclaredAge != nil && *meta.DeclaredAge < minorAge {
		out = append(out, models.Violation{
			Type:       models.ViolationChildExploitation,
			Severity:   models.SeverityCritical,
			Confidence: declaredMinorConfidence,
			Evidence:   []string{fmt.Sprintf("declared_age:%d", *meta.DeclaredAge)},
			Source:     models.SourceMetadata,
		})
	}

	var evidence []string
	for _, tag := range strutil.NormalizeTerms(meta.Tags) {
		for _, hit := range strutil.MatchTerms(tag, s.minorKeywords) {
			evidence = append(evidence, "tag:"+hit)
		}
	}
	if len(evidence) > 0 {
		out = append(out, models.Violation{
			Type:       models.ViolationChildExploitation,
			Severity:   models.SeverityHigh,
			Confidence: minorTagConfidence,
			Evidence:   strutil.DedupeAndTrim(evidence),
			Source:     models.SourceMetadata,
		})
	}
	return out, nil
}

func (s *Service) matchHash(ctx context.Context, payload []byte) ([]models.Violation, error) {
	if s.illegal == nil || len(payload) == 0 {
		return nil, nil
	}
	entry, err := s.illegal.Lookup(ctx, content.Fingerprint(payload))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	category := entry.Category
	if !category.IsValid() {
		category = models.ViolationChildExploitation
	}
	evidence := []string{"hash:" + entry.Hash}
	if entry.Reference != "" {
		evidence = append(evidence, "reference:"+entry.Reference)
	}
	return []models.Violation{{
		Type:       category,
		Severity:   models.SeverityCritical,
		Confidence: hashMatchConfidence,
		Evidence:   evidence,
		Source:     models.SourceHashMatch,
	}}, nil
}
