// Command jsrun is a minimal host embedding around the engine, the
// AMBIENT STACK's CLI entry point (SPEC_FULL.md): it wires an Agent,
// builds a realm, and runs a compiled executable through it. The
// source-text compiler itself is out of scope (spec.md PURPOSE &
// SCOPE), so this host only knows how to run one of a few built-in demo
// executables assembled directly through bytecode.Builder -- a stand-in
// for whatever real host would otherwise hand Run an already-compiled
// Executable.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/trynova/nova-sub004/internal/engine/bytecode"
	"github.com/trynova/nova-sub004/internal/engine/params"
	"github.com/trynova/nova-sub004/internal/engine/realm"
	"github.com/trynova/nova-sub004/internal/engine/value"
	"github.com/trynova/nova-sub004/internal/jslog"
)

func main() {
	app := &cli.App{
		Name:  "jsrun",
		Usage: "run a built-in demo program against the reference engine",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a TOML engine config overriding the defaults"},
			&cli.StringFlag{Name: "demo", Value: "sum", Usage: "which built-in demo executable to run (sum|throw)"},
			&cli.BoolFlag{Name: "gc-stress", Usage: "run a GC cycle before and after evaluation"},
			&cli.BoolFlag{Name: "dump-bytecode", Usage: "print the demo's disassembly instead of running it"},
			&cli.DurationFlag{Name: "interrupt-after", Usage: "abort the run if it is still executing after this long"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg := params.Default()
	if path := c.String("config"); path != "" {
		loaded, err := params.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	exe := buildDemo(c.String("demo"))

	if c.Bool("dump-bytecode") {
		fmt.Print(bytecode.Disassemble(exe))
		return nil
	}

	agent := realm.NewAgent(cfg)
	agent.Log = jslog.Root().With("component", "jsrun")
	r := agent.CreateRealm()

	if c.Bool("gc-stress") {
		agent.CollectGarbage("full")
	}

	done := make(chan realm.Completion, 1)
	go func() { done <- agent.Run(r, exe) }()

	var completion realm.Completion
	if d := c.Duration("interrupt-after"); d > 0 {
		select {
		case completion = <-done:
		case <-time.After(d):
			return fmt.Errorf("jsrun: execution did not finish within %s", d)
		}
	} else {
		completion = <-done
	}

	if c.Bool("gc-stress") {
		agent.CollectGarbage("full")
	}

	if !completion.Ok() {
		return fmt.Errorf("uncaught exception: %s", describe(completion.Err.Value))
	}
	fmt.Println(describe(completion.Value))
	return nil
}

// describe renders a result Value well enough for a CLI summary; it
// does not attempt ToString's full coercion semantics (out of scope,
// see spec.md's library Non-goals).
func describe(v value.Value) string {
	switch v.Tag() {
	case value.TagInteger:
		return fmt.Sprintf("%d", v.AsInteger())
	case value.TagSmallString:
		return v.AsSmallString()
	case value.TagUndefined:
		return "undefined"
	case value.TagNull:
		return "null"
	case value.TagBoolean:
		return fmt.Sprintf("%t", v.AsBoolean())
	default:
		return fmt.Sprintf("<%v>", v.Tag())
	}
}

// buildDemo assembles one of jsrun's fixed demo programs directly
// against bytecode.Builder, standing in for the out-of-scope AST
// compiler (PURPOSE & SCOPE). "sum" mirrors TESTABLE PROPERTIES' S1
// (load two integers, add them, return the result); "throw" exercises
// the exception-target unwind path with no handler installed, so it
// demonstrates a Completion.Err surfacing through Agent.Run.
func buildDemo(name string) *bytecode.Executable {
	b := bytecode.NewBuilder()
	switch name {
	case "throw":
		msgValue, ok := value.SmallString("thrown")
		if !ok {
			panic("demo string too long for SmallString")
		}
		msg := b.Constant(msgValue)
		b.EmitU16(bytecode.OpLoadConstant, msg)
		b.Emit(bytecode.OpThrow)
		return b.Finish("<jsrun:throw>")
	default:
		lhs := b.Constant(value.Integer(19))
		rhs := b.Constant(value.Integer(23))
		b.EmitU16(bytecode.OpLoadConstant, lhs)
		b.Emit(bytecode.OpLoad)
		b.EmitU16(bytecode.OpLoadConstant, rhs)
		b.Emit(bytecode.OpLoad)
		b.EmitU16(bytecode.OpApplyStringOrNumericBinaryOperator, uint16(bytecode.BinaryAdd))
		b.Emit(bytecode.OpReturn)
		return b.Finish("<jsrun:sum>")
	}
}
