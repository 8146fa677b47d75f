package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

type handleFunc func(request string) (string, error)

func runOnce(out io.Writer, request string, handle handleFunc) error {
	request = strings.TrimSpace(request)
	if request == "" {
		return fmt.Errorf("empty request")
	}
	printRequest(out, request)
	reply, err := handle(request)
	if err != nil {
		return err
	}
	printReply(out, reply)
	return nil
}

// runInteractive reads one request per line. A failing request is reported
// and the loop carries on with the next one.
func runInteractive(ctx context.Context, in io.Reader, out io.Writer, handle handleFunc) error {
	fmt.Fprintln(out, "clipper interactive mode. Type 'exit' to quit.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, "\n> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = strings.TrimSpace(l)
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit", "q":
			return nil
		}

		reply, err := handle(line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		printReply(out, reply)
	}
}
