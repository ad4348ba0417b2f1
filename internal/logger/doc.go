// Package logger wraps zap with the conveniences the sentinel services rely on:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level parsing and runtime level changes,
//   - leveled convenience functions (Infof, ErrorKV, etc.).
//
// Every service accepts a context and logs through the logger it carries, so
// log scoping follows the call graph rather than package boundaries.
package logger
