package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	root := newRootCommand(os.LookupEnv)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorText(err.Error()))
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var coded *ExitCodeError
	if errors.As(err, &coded) && coded.Code != 0 {
		return coded.Code
	}
	return 1
}
