package analyzer

const classifyFocus = "Classify the memory into exactly one type and extract 1-4 concepts from it."

const classifySystemPrompt = `You are a memory classification assistant. Given a piece of text, respond with
a single JSON object and nothing else:

{
  "memory_type": one of "factual" | "procedural" | "experience" | "self_reflection" | "humor" | "collaboration",
  "concepts": [
    {"title": "...", "description": "...", "confidence": 0.0-1.0, "mood": "...", "keywords": ["..."], "extracted_concepts": ["..."]}
  ]
}

Produce between 1 and 4 concepts. Every concept must have a non-empty title. description may be empty
only when nothing meaningful can be said about that concept. confidence reflects how certain you are
that the concept was correctly identified.`

const classifyRetryPrompt = `Your previous response could not be parsed as the required JSON object.
Respond again with ONLY the JSON object, no surrounding prose, no markdown fences.`

const significanceFocus = "Decide whether this memory is significant enough to keep permanently."

const significanceSystemPrompt = `You evaluate whether a personal memory is significant enough to retain
long-term, versus letting it pass through a short-lived cache. Significant memories typically involve:
first-times, trust or partnership milestones, paradigm shifts, meta-cognitive jumps, or breakthroughs in
how two parties collaborate. Respond with a single JSON object and nothing else:

{"significant": true|false, "reason": "one sentence"}`
