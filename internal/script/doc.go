/*
Package script embeds the game's script runtime and sandboxes the module
scripts loaded into it.

# Overview

Third-party module packs ship scripts that run inside the host with no
access to the OS, filesystem, raw goroutines or reflection. Everything a
script can reach is enumerated into a capability registry at boot and then
frozen; per-module scopes chain their identifier lookup down to that
registry, so the allow-list is the floor of every resolution.

# Architecture

  1. capability.Registry: the frozen allow-list.
  2. scope.Scope: chained lookup environments, one per module and one per
     loaded library.
  3. loader.Manager: require with namespacing, path sanitization and
     memoization, plus hot reload with per-library rollback.
  4. roam.Scheduler: cooperative suspend/resume for free-roam behaviors.
  5. ui: the declarative node builder and inline event-handler compiler.
  6. mission.Registry, codec: mission registration and the schema codec.

# Usage

	store, _ := assets.NewDirStore("assets")
	engine, _ := script.New(script.SideServer, store,
		script.WithLogger(log),
		script.WithBridges(script.Bridges{Commands: sink}),
	)
	engine.Setup()
	engine.LoadModule("base")
	engine.InvokeModuleMethod("base", "missions", "server_update")

# Concurrency

Single-threaded and cooperative. All script execution runs synchronously on
the caller's goroutine and runs to completion; free-roam yields are the
only suspension points. The engine enforces no time budget: a script that
never yields stalls the current time-slice.
*/
package script
