// Command glulx runs, single-steps, and round-trips saves for Glulx story
// files from the command line.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"glulxvm/glulx"
	"glulxvm/internal/config"
	glog "glulxvm/internal/log"
)

var (
	debug      bool
	cfgPath    string
	savePath   string
	loadPath   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "glulx",
		Short: "Run Glulx story files",
		Long: `glulx loads a Glulx bytecode image (.ulx) and executes it.

It covers the interpreter's engine: fetch/decode/dispatch, the call stack,
heap allocation, compressed string decoding, the library-routine veneer, and
Quetzal save/restore. Terminal-window layout and styled text are out of
scope; flushed output channels print as plain text.`,
		DisableFlagsInUseLine: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose debug logging")
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "YAML options file")
	rootCmd.PersistentFlags().StringVar(&savePath, "save", "", "Quetzal save file path")
	rootCmd.PersistentFlags().StringVar(&loadPath, "restore", "", "Quetzal save file to restore from at startup")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDebugCmd())
	rootCmd.AddCommand(newSaveTestCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <image.ulx>",
		Short: "Load an image and run it to quiescence",
		Args:  cobra.ExactArgs(1),
		RunE:  runImage,
	}
}

func newDebugCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "debug <image.ulx>",
		Short: "Single-step the image, printing the program counter of every opcode",
		Args:  cobra.ExactArgs(1),
		RunE:  debugImage,
	}
}

// runImage loads the engine and drives Step/Run in a loop, handing every
// suspension to a consoleHost, the way KTStephano-GVM's root main() loops
// ExecNextInstruction until vm.errcode is set.
func runImage(cmd *cobra.Command, args []string) (err error) {
	sessionID := uuid.New()
	log := glog.New(debug)
	defer log.Sync()
	log = log.With(zap.String("session", sessionID.String()))

	opts, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	host := newConsoleHost(log, savePath, loadPath)

	// The engine panics on internal invariant violations (a malformed image
	// slipping past LoadImage's checks); recover and report it the same way
	// KTStephano-GVM/main.go's deferred recover turns a Go panic into a single
	// line of interpreter-level text instead of a stack trace.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("interpreter fault: %v", r)
		}
	}()

	eng, err := glulx.LoadAndRun(data, host, log)
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}
	eng.SetAcceleration(opts.Acceleration)
	if opts.RandomSeed != 0 {
		eng.SeedRandom(opts.RandomSeed)
	}

	if loadPath != "" {
		saved, rerr := host.LoadRequested()
		if rerr != nil {
			return fmt.Errorf("restore: %w", rerr)
		}
		if saved != nil {
			if err := eng.Restore(saved); err != nil {
				return fmt.Errorf("restore: %w", err)
			}
		}
	}

	for eng.Running() {
		_, err := eng.Step()
		if err != nil {
			if errors.Is(err, glulx.ErrQuit) {
				break
			}
			host.printFlushed(eng.Flush())
			return fmt.Errorf("runtime fault: %w", err)
		}
	}
	host.printFlushed(eng.Flush())
	return nil
}

// debugImage single-steps the image and prints every opcode's program
// counter, mirroring KTStephano-GVM's execProgramDebugMode single-step REPL
// (main.go, vm/run.go) generalized from its flat
// register file to Glulx's frame-local model.
func debugImage(cmd *cobra.Command, args []string) error {
	log := glog.New(true)
	defer log.Sync()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	host := newConsoleHost(log, savePath, loadPath)
	eng, err := glulx.LoadAndRun(data, host, log)
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}

	step := 0
	for eng.Running() {
		pc := eng.PC()
		_, err := eng.Step()
		step++
		fmt.Fprintf(os.Stderr, "#%06d pc=0x%08x\n", step, pc)
		if err != nil {
			if errors.Is(err, glulx.ErrQuit) {
				break
			}
			host.printFlushed(eng.Flush())
			return fmt.Errorf("runtime fault at pc=0x%08x: %w", pc, err)
		}
	}
	host.printFlushed(eng.Flush())
	return nil
}

func newSaveTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "savetest <image.ulx>",
		Short: "Run for a bounded number of steps, save, restore, and compare the pc",
		Args:  cobra.ExactArgs(1),
		RunE:  saveRoundTrip,
	}
}

// saveRoundTrip runs the image for up to maxSteps steps (or until it halts),
// takes a Quetzal snapshot with Engine.Snapshot, restores it into the same
// engine with Engine.Restore, and checks the program counter lines back up —
// a smoke test for the Quetzal codec without needing an interactive story
// file. It does not restart the engine and does not stop at a saveundo.
func saveRoundTrip(cmd *cobra.Command, args []string) error {
	log := glog.New(debug)
	defer log.Sync()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	host := newConsoleHost(log, savePath, loadPath)
	eng, err := glulx.LoadAndRun(data, host, log)
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}

	const maxSteps = 1_000_000
	for i := 0; i < maxSteps && eng.Running(); i++ {
		if _, err := eng.Step(); err != nil {
			if errors.Is(err, glulx.ErrQuit) {
				fmt.Println("program quit before any save point")
				return nil
			}
			return fmt.Errorf("runtime fault: %w", err)
		}
	}

	pcBefore := eng.PC()
	saved, err := eng.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := eng.Restore(saved); err != nil {
		return fmt.Errorf("restore round trip: %w", err)
	}
	if eng.PC() != pcBefore {
		return fmt.Errorf("restore round trip: pc=0x%08x, want 0x%08x", eng.PC(), pcBefore)
	}
	fmt.Printf("save/restore round trip ok, pc=0x%08x\n", eng.PC())
	return nil
}
