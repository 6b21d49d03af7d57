// Package quality scores synthesized answers after they are delivered.
//
// A Battery runs a fixed set of Scorers against one answer: LLM-judged
// hallucination, answer relevance, moderation and usefulness, plus an
// entity-coverage check when entities were extracted. Scores are clamped to
// [0,1] and sent to a ScoreSink keyed by the request's trace id. The
// Scheduler decides per request whether to score, runs the battery in the
// background with its own timeout, and waits for in-flight work on shutdown.
//
// Scoring never affects the answer. Every failure is logged and dropped.
package quality
