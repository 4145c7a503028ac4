// ang is the command-line driver for angstrom: it runs scripts and program
// images, compiles images, starts the REPL and serves the language server.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/angstrom/compiler"
	"github.com/chazu/angstrom/compiler/hash"
	"github.com/chazu/angstrom/manifest"
	"github.com/chazu/angstrom/server"
	"github.com/chazu/angstrom/vm"

	_ "github.com/tliron/commonlog/simple"
)

// ImageExt is the file extension of compiled program images.
const ImageExt = ".angc"

// options are the flags that shape a script run.
type options struct {
	verbose bool
	disasm  bool
	output  string
	stdout  io.Writer
}

func main() {
	verbose := flag.Bool("v", false, "Verbose output and debug logging")
	interactive := flag.Bool("i", false, "Start the REPL after running the script")
	trace := flag.Bool("trace", false, "Trace every executed instruction to stderr")
	disasm := flag.Bool("disasm", false, "Print the disassembled program before running it")
	output := flag.String("o", "", "Compile the script to a program image instead of running it")
	lspMode := flag.Bool("lsp", false, "Start the language server on stdio")
	profile := flag.Bool("profile", false, "Print an execution profile to stderr after the script")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ang [options] [script]\n\n")
		fmt.Fprintf(os.Stderr, "Runs an angstrom script or program image, or starts the REPL.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  ang                        # Start REPL\n")
		fmt.Fprintf(os.Stderr, "  ang main.ang               # Run a script\n")
		fmt.Fprintf(os.Stderr, "  ang -o main.angc main.ang  # Compile a program image\n")
		fmt.Fprintf(os.Stderr, "  ang main.angc              # Run a program image\n")
		fmt.Fprintf(os.Stderr, "  ang -disasm -trace main.ang\n")
		fmt.Fprintf(os.Stderr, "  ang -lsp                   # Language server on stdio\n")
	}
	flag.Parse()

	if flag.NArg() > 1 {
		flag.Usage()
		os.Exit(2)
	}

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		m = manifest.Default()
	}
	configureLogging(m, *verbose)

	if *lspMode {
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg := m.VMOptions()
	if *trace || m.VM.Trace {
		cfg.Trace = os.Stderr
	}
	sess := compiler.NewSession(compiler.Options{VM: cfg})
	if *profile {
		sess.VM().SetProfiler(vm.NewProfiler())
	}
	if *verbose {
		fmt.Printf("Session %s (stack %d, gc threshold %d)\n", sess.ID, m.VM.StackSize, m.VM.GCThreshold)
	}

	path := flag.Arg(0)
	if path == "" {
		path = m.EntryPath()
	}
	if path != "" {
		opts := options{verbose: *verbose, disasm: *disasm, output: *output, stdout: os.Stdout}
		err := runPath(sess, path, opts)
		if p := sess.VM().Profiler(); p != nil {
			writeProfile(os.Stderr, p)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		if !*interactive {
			os.Exit(0)
		}
	} else if *output != "" {
		fmt.Fprintf(os.Stderr, "Error: -o needs a script\n")
		os.Exit(2)
	}

	runREPL(sess)
}

// configureLogging applies the manifest's [log] section. -v raises the
// verbosity to debug.
func configureLogging(m *manifest.Manifest, verbose bool) {
	verbosity := m.Log.Verbosity
	if verbose && verbosity < 2 {
		verbosity = 2
	}
	var path *string
	if p := m.LogPath(); p != "" {
		path = &p
	}
	commonlog.Configure(verbosity, path)
}

// runPath runs a script or a program image, or compiles a script to an
// image when opts.output is set.
func runPath(sess *compiler.Session, path string, opts options) error {
	if filepath.Ext(path) == ImageExt {
		if opts.output != "" {
			return fmt.Errorf("%s is already a program image", path)
		}
		return runImage(sess, path, opts)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prog, err := compiler.Parse(string(data), name)
	if err != nil {
		return err
	}

	if opts.output != "" {
		return writeImage(sess, prog, opts)
	}

	code, entry, err := sess.CompileProgram(prog)
	if err != nil {
		return err
	}
	if opts.disasm {
		fmt.Fprint(opts.stdout, vm.DisassembleWithName(code, entry, name))
	}
	_, err = sess.Execute(code)
	return err
}

// writeImage compiles prog into a program image file stamped with the
// program's content hash.
func writeImage(sess *compiler.Session, prog *compiler.Program, opts options) error {
	img, err := sess.ImageProgram(prog)
	if err != nil {
		return err
	}
	sum := hash.HashProgram(prog)
	img.SourceHash = hex.EncodeToString(sum[:])

	data, err := img.Marshal()
	if err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	if opts.verbose {
		fmt.Fprintf(opts.stdout, "Wrote %s (%d bytes, build %s, source %s)\n",
			opts.output, len(data), img.BuildID, img.SourceHash[:12])
	}
	return nil
}

func runImage(sess *compiler.Session, path string, opts options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	img, err := vm.UnmarshalImage(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if opts.verbose {
		fmt.Fprintf(opts.stdout, "Image %s (build %s, %d types)\n", img.Name, img.BuildID, len(img.Types))
	}
	if opts.disasm {
		code, _, err := img.Install(vm.NewTypeRegistry(), 0)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprint(opts.stdout, vm.DisassembleWithName(code, 0, img.Name))
	}
	_, err = sess.RunImage(img)
	return err
}
