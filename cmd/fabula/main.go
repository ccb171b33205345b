// Package main provides the development binary: it discovers behavior
// modules, registers their contributions into a fresh engine core, finalizes
// the registries, and runs an interactive loop for exercising commands,
// entity events, and turn phases.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fabula/internal/config"
	"github.com/cory-johannsen/fabula/internal/content"
	"github.com/cory-johannsen/fabula/internal/engine"
	"github.com/cory-johannsen/fabula/internal/engine/world"
	"github.com/cory-johannsen/fabula/internal/observability"
	"github.com/cory-johannsen/fabula/internal/script"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	actorID := flag.String("actor", "", "entity id to act as; empty = first entity in the world file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	w, err := content.LoadWorld(cfg.Content.WorldFile)
	if err != nil {
		logger.Fatal("loading world", zap.Error(err))
	}

	core := engine.New(w, logger)
	manager := script.NewManager(logger)
	defer manager.Close()

	sources, err := content.DiscoverModules(cfg.Content.ModulesDir)
	if err != nil {
		logger.Fatal("discovering modules", zap.Error(err))
	}
	for _, src := range sources {
		mod, err := manager.Load(src.Dir, src.ID, cfg.Script.InstructionLimit)
		if err != nil {
			logger.Fatal("loading module", zap.String("module", src.ID), zap.Error(err))
		}
		if err := core.Register(src.ID, src.Tier, mod.Contribution, mod.Handlers); err != nil {
			logger.Fatal("registering module", zap.String("module", src.ID), zap.Error(err))
		}
	}

	if err := core.Finalize(); err != nil {
		logger.Fatal("finalizing registries", zap.Error(err))
	}

	logger.Info("engine ready",
		zap.Int("modules", len(sources)),
		zap.Strings("turn_phases", core.OrderedTurnPhases()),
		zap.Duration("startup", time.Since(start)),
	)

	actor := pickActor(w, *actorID)
	if actor == nil {
		logger.Fatal("no actor entity available", zap.String("requested", *actorID))
	}

	runLoop(core, w, actor)
}

// pickActor returns the requested entity, or the first one when id is empty.
func pickActor(w *world.World, id string) *world.Entity {
	if id != "" {
		e, ok := w.Entity(id)
		if !ok {
			return nil
		}
		return e
	}
	entities := w.Entities()
	if len(entities) == 0 {
		return nil
	}
	return entities[0]
}

// runLoop reads lines from stdin: "turn" fires the turn phases, "phases"
// prints the cached order, "quit" exits; anything else is dispatched as
// <verb> [target-entity-id] [args...].
func runLoop(core *engine.Core, w *world.World, actor *world.Entity) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Printf("acting as %s; type a verb, \"turn\", \"phases\", or \"quit\"\n", actor.ID)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit":
			return
		case "phases":
			for i, hook := range core.OrderedTurnPhases() {
				fmt.Printf("%2d. %s\n", i+1, hook)
			}
		case "turn":
			transcript, err := core.RunTurn()
			if err != nil {
				fmt.Println(err)
				continue
			}
			fmt.Printf("turn %d\n", w.Turn())
			for _, report := range transcript {
				if report.Outcome.Feedback != "" {
					fmt.Println(report.Outcome.Feedback)
				}
			}
		default:
			handleInput(core, w, actor, fields)
		}
	}
}

// handleInput dispatches a verb, falling back to an entity-scoped behavior
// invocation when no command handler claims it.
func handleInput(core *engine.Core, w *world.World, actor *world.Entity, fields []string) {
	verb := fields[0]
	args := fields[1:]
	ctx := world.NewContext(w, actor, strings.Join(fields, " "), args)

	if res, handled := core.Dispatch(verb, ctx); handled {
		if res.Message != "" {
			fmt.Println(res.Message)
		} else if !res.OK {
			fmt.Println("Nothing happens.")
		}
		return
	}

	event, ok := core.EventForVerb(verb)
	if !ok {
		fmt.Printf("I don't know how to %q.\n", verb)
		return
	}

	target := actor
	if len(args) > 0 {
		if e, found := w.Entity(args[0]); found {
			target = e
		}
	}

	out := core.InvokeBehavior(target, event, ctx)
	switch {
	case !out.IsHandled():
		fmt.Println("Nothing happens.")
	case out.Feedback != "":
		fmt.Println(out.Feedback)
	case !out.Allow:
		fmt.Println("You can't do that.")
	}
}
