// Package services holds the cross-cutting error taxonomy.
//
// Components wrap failures with a sentinel kind (validation, not found,
// store, judgment, timeout, configuration) so callers branch on errors.Is
// instead of parsing messages, and the API server maps kinds onto HTTP
// status codes in one place.
package services
