package output

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/ritzau/treeshake/pkg/cycles"
	"github.com/ritzau/treeshake/pkg/shake"
)

// PrintShakeReport prints a formatted tree-shaking report with colors
func PrintShakeReport(entryPoint string, modulesBefore, modulesAfter int, report *shake.Report) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	bold.Println("treeshake - Bundle Report")
	bold.Println("=========================")
	fmt.Printf("Entry point: %s\n", entryPoint)
	fmt.Printf("Modules: %d in, %d out\n", modulesBefore, modulesAfter)
	fmt.Printf("Passes: %d\n", report.Passes)
	fmt.Println()

	if report.ExportsAnnotated > 0 {
		yellow.Printf("Annotated exports: %d (annotate mode, nothing removed)\n", report.ExportsAnnotated)
	} else if report.ExportsRemoved == 0 && report.ImportsRemoved == 0 {
		green.Println("Nothing to shake: every export is in use")
	} else {
		yellow.Printf("Removed exports: %d\n", report.ExportsRemoved)
		yellow.Printf("Removed imports: %d\n", report.ImportsRemoved)
		cyan.Printf("Detached edges:  %d\n", report.EdgesDetached)
	}

	if report.OrphansCollected > 0 {
		fmt.Println()
		red.Printf("DROPPED MODULES (%d):\n", report.OrphansCollected)
		for _, path := range report.OrphanPaths {
			yellow.Printf("  %s\n", path)
		}
	}

	if modulesBefore > 0 {
		fmt.Println()
		percentage := float64(modulesAfter) / float64(modulesBefore) * 100.0
		summaryColor := green
		if percentage > 90.0 {
			summaryColor = yellow
		}
		summaryColor.Printf("Summary: %.0f%% of modules kept (%d/%d)\n",
			percentage, modulesAfter, modulesBefore)
	}
}

// PrintCycleWarnings lists require cycles found in the input graph
func PrintCycleWarnings(found []cycles.ModuleCycle) {
	if len(found) == 0 {
		return
	}
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	yellow.Printf("REQUIRE CYCLES (%d):\n", len(found))
	for _, c := range found {
		for i, path := range c.Modules {
			if i == 0 {
				cyan.Printf("  %s\n", path)
			} else {
				fmt.Printf("    <-> %s\n", path)
			}
		}
	}
	fmt.Println()
}
