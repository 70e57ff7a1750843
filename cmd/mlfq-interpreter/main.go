package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/arkalon/mlfq"
	"github.com/arkalon/mlfq/internal/constants"
)

const execPrefix = "exec "

func main() {
	var (
		pipePath  = flag.String("pipe", mlfq.DefaultPipePath, "path of the admission named pipe")
		scriptPath = flag.String("input", "./input.txt", "script file listing programs to submit")
	)
	flag.Parse()

	f, err := os.Open(*scriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "interpreter: cannot open %s: %v\n", *scriptPath, err)
		os.Exit(1)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		fmt.Printf("read: %q from the file\n", line)

		if !strings.HasPrefix(line, execPrefix) {
			fmt.Printf("SKIPPED line %q -> lines must start with %q\n", line, execPrefix)
			continue
		}

		programPath := strings.TrimPrefix(line, execPrefix)
		if programPath == "" {
			fmt.Printf("SKIPPED line %q -> program name is empty\n", line)
			continue
		}
		if len(programPath) > constants.MaxPathLen {
			fmt.Printf("SKIPPED line %q -> program path too long\n", line)
			continue
		}
		if _, err := os.Stat(programPath); err != nil {
			fmt.Printf("SKIPPED line %q -> file %q does not exist\n", line, programPath)
			continue
		}

		if err := submit(*pipePath, programPath); err != nil {
			fmt.Fprintf(os.Stderr, "interpreter: failed to submit %q: %v\n", programPath, err)
			continue
		}
		fmt.Printf("wrote %q to the pipe\n", programPath)
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "interpreter: error reading %s: %v\n", *scriptPath, err)
		os.Exit(1)
	}
}

func submit(pipePath, programPath string) error {
	pipe, err := os.OpenFile(pipePath, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer pipe.Close()

	_, err = pipe.Write(append([]byte(programPath), 0))
	return err
}
