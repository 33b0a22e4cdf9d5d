package rag

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Generator produces free-form text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const answerPrompt = `You are a very enthusiastic fitness assistant who helps users understand their workout data.
Based on the context provided below, please answer the user's question.
The current date is %s.
If the context is empty or does not contain the answer, say %q.
Do not make up information that is not in the context.

Context:
---
%s
---

Question: "%s"

Answer:`

// AnswerGenerator grounds the final answer in the synthesized context.
type AnswerGenerator struct {
	gen     Generator
	timeout time.Duration
}

func NewAnswerGenerator(gen Generator, timeout time.Duration) *AnswerGenerator {
	return &AnswerGenerator{gen: gen, timeout: timeout}
}

// Answer returns FallbackAnswer without calling the provider when contextBlock is empty, and
// substitutes it when the provider answers with blank text.
func (a *AnswerGenerator) Answer(ctx context.Context, query, contextBlock string, today time.Time) (string, error) {
	if strings.TrimSpace(contextBlock) == "" {
		return FallbackAnswer, nil
	}
	gctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()
	out, err := a.gen.Generate(gctx, buildAnswerPrompt(query, contextBlock, today))
	if err != nil {
		return "", newError(KindGeneration, "generate", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return FallbackAnswer, nil
	}
	return out, nil
}

func buildAnswerPrompt(query, contextBlock string, today time.Time) string {
	return fmt.Sprintf(answerPrompt, today.Format(dateLayout), FallbackAnswer, contextBlock, query)
}
