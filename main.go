package main

import (
	"context"
	"fmt"
	"os"

	"github.com/thushan/conduit/internal/app/cli"
)

func main() {
	root := cli.NewRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
