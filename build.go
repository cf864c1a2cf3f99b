//go:build ignore

// build.go - sidrapanel build system
// Usage: go run build.go [-target=TARGET] [-v]
// Targets: all, test, clean, release

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
)

const module = "sidrapanel"

// BuildContext holds configuration for the build process
type BuildContext struct {
	Verbose bool
	Version string
}

var (
	distDir = "dist"

	// release platforms as GOOS/GOARCH
	platforms = []string{"linux/amd64", "linux/arm64", "darwin/arm64", "windows/amd64"}

	info    = color.New(color.FgBlue)
	success = color.New(color.FgGreen)
	failure = color.New(color.FgRed)
)

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	version := flag.String("version", "", "Version stamped into the binary (defaults to git describe)")
	flag.Parse()

	ctx := &BuildContext{Verbose: *verbose, Version: *version}
	if ctx.Version == "" {
		ctx.Version = gitOutput("describe", "--tags", "--always", "--dirty")
	}

	start := time.Now()

	var err error
	switch *target {
	case "all":
		err = buildBinary(ctx, "", "")
	case "test":
		err = run(ctx, "go", "test", "-race", "./...")
	case "clean":
		err = os.RemoveAll(distDir)
	case "release":
		err = buildRelease(ctx)
	default:
		showHelp()
		os.Exit(1)
	}
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Build completed in %s", time.Since(start).Round(time.Millisecond)))
}

func printInfo(msg string) {
	info.Print("[INFO] ")
	fmt.Println(msg)
}

func printSuccess(msg string) {
	success.Print("[SUCCESS] ")
	fmt.Println(msg)
}

func printError(msg string) {
	failure.Print("[ERROR] ")
	fmt.Println(msg)
}

func ldflags(ctx *BuildContext) string {
	pkg := module + "/pkg/contracts"
	return fmt.Sprintf("-s -w -X %s.BuildTime=%s -X %s.GitCommit=%s",
		pkg, time.Now().UTC().Format(time.RFC3339),
		pkg, gitOutput("rev-parse", "--short", "HEAD"))
}

// buildBinary builds cmd/sidrapanel for goos/goarch, or the host when both
// are empty
func buildBinary(ctx *BuildContext, goos, goarch string) error {
	name := module
	if goos != "" {
		name = fmt.Sprintf("%s-%s-%s-%s", module, ctx.Version, goos, goarch)
	}
	if goos == "windows" || (goos == "" && os.PathSeparator == '\\') {
		name += ".exe"
	}

	if err := os.MkdirAll(distDir, 0o755); err != nil {
		return err
	}
	printInfo(fmt.Sprintf("Building %s...", name))

	cmd := exec.Command("go", "build", "-trimpath", "-ldflags", ldflags(ctx),
		"-o", filepath.Join(distDir, name), "./cmd/"+module)
	cmd.Env = os.Environ()
	if goos != "" {
		cmd.Env = append(cmd.Env, "GOOS="+goos, "GOARCH="+goarch, "CGO_ENABLED=0")
	}
	return runCmd(ctx, cmd)
}

func buildRelease(ctx *BuildContext) error {
	for _, p := range platforms {
		goos, goarch, _ := strings.Cut(p, "/")
		if err := buildBinary(ctx, goos, goarch); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func run(ctx *BuildContext, name string, args ...string) error {
	return runCmd(ctx, exec.Command(name, args...))
}

func runCmd(ctx *BuildContext, cmd *exec.Cmd) error {
	if ctx.Verbose {
		printInfo(strings.Join(cmd.Args, " "))
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func gitOutput(args ...string) string {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

func showHelp() {
	fmt.Println("Usage: go run build.go -target=TARGET [-v] [-version=VERSION]")
	fmt.Println()
	fmt.Println("Targets:")
	fmt.Println("  all      Build sidrapanel for the host into dist/")
	fmt.Println("  test     Run the test suite with the race detector")
	fmt.Println("  clean    Remove dist/")
	fmt.Println("  release  Cross-compile for every release platform")
}
