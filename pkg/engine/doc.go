// Package engine implements the core migration orchestration engine.
// It defines the fixed step sequence (scan -> discovery -> protect ->
// generate -> compare -> template_modification -> import_preparation ->
// import -> cleanup -> complete), the durable MigrationState document,
// and the Orchestrator that drives pluggable step executors through the
// sequence with checkpoint gating, rollback, and resume.
package engine
