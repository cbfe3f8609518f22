package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
)

var (
	SuccessColorFG = pterm.FgLightGreen
	SuccessStyleBG = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	WarnColorFG    = pterm.FgYellow
	WarnStyleBG    = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	ErrorColorFG   = pterm.FgRed
	ErrorStyleBG   = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	InfoColorFG    = SuccessColorFG
	InfoStyleBG    = SuccessStyleBG
)

// PrintErrorMessage prints a standard Go error to the console.  It ignores the
// log level and is used for errors that occur before the reporter is set up.
func PrintErrorMessage(tag string, err error) {
	ErrorStyleBG.Print(tag)
	ErrorColorFG.Println(" " + err.Error())
}

// PrintInfoMessage prints an informational message to the user
func PrintInfoMessage(tag, msg string) {
	InfoStyleBG.Print(tag)
	InfoColorFG.Println(" " + msg)
}

// -----------------------------------------------------------------------------

const icePostlude = `This error was not supposed to happen: it is likely a bug in the splitter.`

// displayICE displays an internal compiler error message.
func displayICE(message string) {
	fmt.Print("\n")
	ErrorStyleBG.Print("Internal Compiler Error")
	ErrorColorFG.Println(" " + message)
	InfoColorFG.Println(icePostlude)
}

// displayFatal displays a fatal error message.
func displayFatal(message string) {
	ErrorStyleBG.Print("Fatal Error")
	ErrorColorFG.Println(" " + message)
}

// displayConfigError displays a configuration error with its position.
func displayConfigError(cerr *ConfigError) {
	ErrorStyleBG.Print("Config Error")
	fmt.Print(" ")

	if cerr.Path != "" {
		InfoColorFG.Print(cerr.Path)
		if cerr.Line > 0 {
			InfoColorFG.Printf(":%d:%d", cerr.Line, cerr.Col)
		}

		fmt.Print(": ")
	}

	ErrorColorFG.Println(cerr.Message)
}

// displayStdError displays a standard Go error.
func displayStdError(tag string, err error) {
	PrintErrorMessage(tag, err)
}

// displayWarning displays a warning.
func displayWarning(message string) {
	WarnStyleBG.Print("Warning")
	WarnColorFG.Println(" " + message)
}

// displayInfo displays an informational message.
func displayInfo(tag, message string) {
	PrintInfoMessage(tag, message)
}

// -----------------------------------------------------------------------------

var currentPhase string
var phaseStartTime time.Time

const maxPhaseLength = len("Partitioning")

// BeginPhase displays the beginning of a splitter phase.
func BeginPhase(phase string) {
	if rep.logLevel < LogLevelVerbose {
		return
	}

	rep.m.Lock()
	defer rep.m.Unlock()

	currentPhase = phase
	phaseStartTime = time.Now()
	InfoColorFG.Println(phase + "...")
}

// EndPhase displays the end of a splitter phase.
func EndPhase(success bool) {
	if rep.logLevel < LogLevelVerbose || currentPhase == "" {
		return
	}

	rep.m.Lock()
	defer rep.m.Unlock()

	padding := ""
	if len(currentPhase) < maxPhaseLength {
		padding = strings.Repeat(" ", maxPhaseLength-len(currentPhase))
	}

	if success {
		printer := pterm.PrefixPrinter{
			MessageStyle: pterm.NewStyle(pterm.FgDefault),
			Prefix: pterm.Prefix{
				Style: SuccessStyleBG,
				Text:  "Done",
			},
		}

		printer.Println(currentPhase+padding+"  ", fmt.Sprintf("(%.3fs)", time.Since(phaseStartTime).Seconds()))
	} else {
		printer := pterm.PrefixPrinter{
			MessageStyle: pterm.NewStyle(pterm.FgDefault),
			Prefix: pterm.Prefix{
				Style: ErrorStyleBG,
				Text:  "Fail",
			},
		}

		printer.Println(currentPhase + padding)
	}

	currentPhase = ""
}

// DisplayTable renders a table whose first row is the header.  It is only
// displayed at the verbose log level.
func DisplayTable(rows [][]string) error {
	if rep.logLevel < LogLevelVerbose {
		return nil
	}

	rep.m.Lock()
	defer rep.m.Unlock()

	return pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData(rows)).Render()
}
