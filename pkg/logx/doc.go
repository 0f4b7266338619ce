// Package logx configures pingwatch's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured and private to the owner (0600 file, 0700 dir)
package logx
