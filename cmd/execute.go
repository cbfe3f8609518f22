package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/ComedicChimera/olive"

	"fragsplit/build"
	"fragsplit/common"
	"fragsplit/profile"
	"fragsplit/report"
)

// Execute runs the main `fragsplit` application and returns its exit status
func Execute() int {
	// set up the argument parser and all its extended commands and arguments
	cli := olive.NewCLI("fragsplit", "fragsplit splits whole programs into deferred fragments", true)
	logLvlArg := cli.AddSelectorArg("loglevel", "ll", "the splitter log level", false, report.LogLevelNames())
	logLvlArg.SetDefaultValue("verbose")

	splitCmd := cli.AddSubcommand("split", "split a program into fragments", true)
	splitCmd.AddPrimaryArg("program-path", "the path to the program description", true)
	splitCmd.AddStringArg("profile", "p", "the path to the split profile", false)
	splitCmd.AddStringArg("outpath", "o", "the directory to write the fragments to", false)
	splitCmd.AddFlag("fragment-map", "fm", "display which declarations end up in which fragment")
	splitCmd.AddFlag("debug", "d", "write debug diagnostics to standard error")

	initCmd := cli.AddSubcommand("init", "create a default split profile", true)
	initCmd.AddPrimaryArg("dir-path", "the directory to create the profile in", true)

	cli.AddSubcommand("version", "print the fragsplit version", false)

	// run the argument parser
	result, err := olive.ParseArgs(cli, os.Args)
	if err != nil {
		report.PrintErrorMessage("CLI Usage Error", err)
		return 1
	}

	// process the inputed command line
	subcmdName, subResult, _ := result.Subcommand()
	switch subcmdName {
	case "split":
		if !execSplitCommand(subResult, result.Arguments["loglevel"].(string)) {
			return 1
		}
	case "init":
		dirPath, _ := subResult.PrimaryArg()
		if err := profile.Init(dirPath); err != nil {
			report.PrintErrorMessage("Profile Init Error", err)
			return 1
		}
	case "version":
		report.PrintInfoMessage("fragsplit Version", common.FragsplitVersion)
	}

	return 0
}

// execSplitCommand executes the split subcommand and handles all errors.  It
// returns whether splitting succeeded.
func execSplitCommand(result *olive.ArgParseResult, loglevel string) (ok bool) {
	report.InitReporter(report.LogLevelFromName(loglevel))

	if result.HasFlag("debug") {
		report.EnableDebug(os.Stderr)
	}

	// extract CLI data
	programRelPath, _ := result.PrimaryArg()

	programPath, err := filepath.Abs(programRelPath)
	if err != nil {
		report.PrintErrorMessage("Path Error", err)
		return false
	}

	prof, err := loadProfile(result, programPath)
	if err != nil {
		var cerr *report.ConfigError
		if errors.As(err, &cerr) {
			report.ReportConfigError(cerr)
		} else {
			report.ReportStdError("Profile Load Error", err)
		}

		return false
	}

	if outPath, found := result.Arguments["outpath"]; found {
		prof.OutputPath = outPath.(string)
	}

	if result.HasFlag("fragment-map") {
		prof.LogFragmentMap = true
	}

	// internal compiler errors stop here: `ok` stays false
	defer report.CatchErrors()

	d := build.NewDriver(programPath, prof)
	ok = d.Split(context.Background())
	return
}

// loadProfile loads the split profile selected on the command line.  Without
// one, the profile next to the program description is used if it exists and
// the default profile otherwise.
func loadProfile(result *olive.ArgParseResult, programPath string) (*profile.SplitProfile, error) {
	if profArgVal, ok := result.Arguments["profile"]; ok {
		return profile.Load(profArgVal.(string))
	}

	profPath := filepath.Join(filepath.Dir(programPath), common.ProfileFileName)
	if _, err := os.Stat(profPath); err == nil {
		return profile.Load(profPath)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	return profile.Default(), nil
}
