// Package announce builds step-start popups and publishes them to the
// requesting learner's room.
package announce
