package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/snaplapse/snaplapse/pkg/log"
	"github.com/snaplapse/snaplapse/server"
	"github.com/snaplapse/snaplapse/server/snapdb"
	"github.com/snaplapse/snaplapse/server/timelapse"
)

func main() {
	// This is purely for documentation of the cmd-line args
	nominalDefaultRoot := "$HOME/snaplapse"

	parser := argparse.NewParser("snaplapse", "Snapshot archive and time-lapse assembly server")
	root := parser.String("r", "root", &argparse.Options{Help: "Storage root (database, media, videos)", Default: nominalDefaultRoot})
	port := parser.Int("p", "port", &argparse.Options{Help: "HTTP listen port", Default: 8080})
	maxGen := parser.Int("", "max-generations", &argparse.Options{Help: "Maximum simultaneous video generations", Default: timelapse.DefaultMaxConcurrent})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := log.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if *root == nominalDefaultRoot {
		home, _ := os.UserHomeDir()
		if home == "" {
			home = "/var/lib"
		}
		*root = filepath.Join(home, "snaplapse")
	}

	db, err := snapdb.Open(logger, *root)
	if err != nil {
		logger.Errorf("Failed to open snapshot database: %v", err)
		os.Exit(1)
	}

	engine := timelapse.NewEngine(logger, db, *maxGen)
	srv := server.NewServer(logger, db, engine)
	srv.ListenForKillSignals()

	// Tell systemd that we're alive
	daemon.SdNotify(false, daemon.SdNotifyReady)

	if err := srv.ListenHTTP(fmt.Sprintf(":%v", *port)); err != nil {
		logger.Errorf("ListenHTTP returned: %v", err)
	}
	err = <-srv.ShutdownComplete
	if err != nil {
		os.Exit(1)
	}
}
