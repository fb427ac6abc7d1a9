// Package lessons persists lessons and their ordered steps in SQLite and
// serves them through an in-process cache.
//
// The store owns the schema and all SQL. The cache sits in front of
// FetchSteps, loads each lesson at most once per process unless explicitly
// invalidated, and deduplicates concurrent loads of the same lesson.
package lessons
