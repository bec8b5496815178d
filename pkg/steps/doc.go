// Package steps provides the built-in step executors wired by the CLI.
// They are deliberately local and file-based: scanning reads template
// documents from disk, discovery resolves physical identifiers from a
// mapping file, generation writes stub sources, import consumes a
// manifest. Real cloud-facing subsystems replace them by registering
// their own engine.StepExecutor implementations; the orchestrator only
// sees the contract.
package steps
