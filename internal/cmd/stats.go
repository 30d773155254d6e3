package cmd

import (
	"flag"
	"fmt"
	"io"

	"github.com/luhtfiimanal/crowdlink/occupancy"
)

func newStatsCommand() command {
	return command{
		name:        "stats",
		description: "Summarize historical occupancy for a building and date",
		configure: func(fs *flag.FlagSet) {
			fs.String("building", "", "Building name (e.g. Building_01, CalIt2)")
			fs.String("date", "", "Date as MM/DD/YY")
			fs.String("start", "", "Window start HH:MM:SS (optional)")
			fs.String("end", "", "Window end HH:MM:SS (optional)")
			fs.String("data", "", "Directory holding building CSV files (overrides paths.data_dir)")
		},
		run: runStats,
	}
}

func runStats(fs *flag.FlagSet, args []string, ctx *AppContext, stdout io.Writer, stderr io.Writer) error {
	if ctx == nil {
		return fmt.Errorf("application context unavailable")
	}
	q := occupancy.Query{
		Building: stringFlag(fs, "building"),
		Date:     stringFlag(fs, "date"),
		Start:    stringFlag(fs, "start"),
		End:      stringFlag(fs, "end"),
	}
	if q.Building == "" || q.Date == "" {
		return fmt.Errorf("stats requires -building and -date")
	}
	dataDir := ctx.Config.Paths.DataDir
	if v := stringFlag(fs, "data"); v != "" {
		dataDir = v
	}

	rep, err := occupancy.Statistics(dataDir, q)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(stdout, rep.String())
	return err
}
