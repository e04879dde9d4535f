// Package orchestrator turns uploaded Python sources into obfuscated and/or
// compiled artifacts by driving external tools inside a per-request working
// directory. The directory is created for one run and removed when the run
// returns, whatever the outcome.
package orchestrator
