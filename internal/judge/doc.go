// Package judge asks a vision-capable LLM whether a screenshot satisfies a
// tutorial step's finish criteria and reduces the answer to a boolean.
package judge
