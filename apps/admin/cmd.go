package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"

	"github.com/trezcool/ubao/core"
	"github.com/trezcool/ubao/core/session"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf       *core.Config
	db         *sql.DB
	sessionSvc *session.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run database migrations (up, down, status, ...)")
	fmt.Println("  deactivate -code CODE  - kill a shared session code")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	deactivateCmd := flag.NewFlagSet("deactivate", flag.ExitOnError)
	deactivateCode := deactivateCmd.String("code", "", "The session code to deactivate.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "deactivate":
		if err := deactivateCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *deactivateCode == "" {
			deactivateCmd.Usage()
			return errHelp
		}
		return cli.deactivate(*deactivateCode)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) deactivate(code string) error {
	if err := cli.sessionSvc.Deactivate(context.Background(), code); err != nil {
		return err
	}
	fmt.Printf("session %s deactivated\n", code)
	return nil
}
