package main

import (
	"fmt"
	"log"
	"os"
)

const usage = `usage: heo <command> [flags]

commands:
  keygen   create a keypair file
  execute  sign and run one protocol call
  history  show recorded invocations
  serve    run chat gateways and the run scheduler`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "keygen":
		err = runKeygen(os.Args[2:])
	case "execute":
		err = runExecute(os.Args[2:], os.Stdin, os.Stdout)
	case "history":
		err = runHistory(os.Args[2:], os.Stdout)
	case "serve":
		err = runServe(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		log.Printf("\033[91m[ FAIL ] %v\033[0m", err)
		os.Exit(1)
	}
}
