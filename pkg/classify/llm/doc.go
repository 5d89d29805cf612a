// Package llm implements the optional LLM classification path. It sends the
// request text and a candidate list to an OpenAI-compatible Chat Completions
// backend and parses a single chosen capability id plus a rationale.
//
// The classifier is treated as an external, possibly-slow, possibly-failing
// collaborator: every failure shape (transport error, timeout, malformed
// response, no-confident-choice) is a typed, non-fatal outcome that the
// router recovers from by falling back to the rule-based ranking. Calls are
// never retried.
package llm
