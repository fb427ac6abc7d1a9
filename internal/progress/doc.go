// Package progress decides whether a learner finished the current tutorial
// step by resolving the step's finish criteria and asking the judge.
package progress
