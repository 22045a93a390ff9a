// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The paperctl command controls a running paperd.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bbrks/wrap/v2"
	"github.com/kortschak/jsonrpc2"

	"github.com/kortschak/paperd/internal/version"
	"github.com/kortschak/paperd/rpc"
)

// Exit status codes.
const (
	success       = 0
	internalError = 1 << (iota - 1)
	invocationError
)

const usageText = `paperctl sends control requests to a running paperd. Requests apply to all configured outputs unless a comma separated list of output names is given with -o. Image paths are resolved by paperd, so relative paths are relative to its working directory.

Commands:

  img [-o outputs] [-filter name] <path>
	show the image at path; name is one of nearest, triangle, catmullrom, gaussian or lanczos3

  clear [-o outputs] [-color #rrggbb]
	fill outputs with a solid color, black by default

  query [-json]
	print the state of all outputs

  stop
	terminate paperd

Options:
`

func main() { os.Exit(Main()) }

func Main() int {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options] <command> [command options]\n\n", os.Args[0])
		printWrapped(flag.CommandLine.Output(), usageText, 80)
		flag.PrintDefaults()
	}
	network := flag.String("network", "unix", "network for communication (unix or tcp)")
	addr := flag.String("addr", "", "server address (default from $XDG_RUNTIME_DIR/paperd)")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	v := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *v {
		err := version.Print(os.Stdout)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
		return success
	}
	switch *network {
	case "unix", "tcp":
	default:
		flag.Usage()
		return invocationError
	}
	if flag.NArg() == 0 {
		flag.Usage()
		return invocationError
	}

	cmd, err := parseCommand(flag.Arg(0), flag.Args()[1:])
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		return invocationError
	}

	if *addr == "" {
		*addr, err = rpc.DefaultAddr(*network)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	client, err := rpc.Dial(ctx, *network, *addr, net.Dialer{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to paperd: %v\n", err)
		return internalError
	}
	defer client.Close()

	err = cmd.run(ctx, client, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		return internalError
	}
	return success
}

// command is a parsed paperctl command.
type command struct {
	name    string
	outputs []string
	path    string
	filter  string
	color   string
	json    bool
}

// parseCommand parses the arguments of the named command.
func parseCommand(name string, args []string) (*command, error) {
	cmd := &command{name: name}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var outputs string
	switch name {
	case "img":
		fs.StringVar(&outputs, "o", "", "comma separated list of outputs")
		fs.StringVar(&cmd.filter, "filter", "", "resampling filter (default lanczos3)")
	case "clear":
		fs.StringVar(&outputs, "o", "", "comma separated list of outputs")
		fs.StringVar(&cmd.color, "color", "", "fill color in #rrggbb form (default #000000)")
	case "query":
		fs.BoolVar(&cmd.json, "json", false, "print states as JSON")
	case "stop":
	default:
		return nil, fmt.Errorf("unknown command: %q", name)
	}
	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	if outputs != "" {
		cmd.outputs = strings.Split(outputs, ",")
	}
	switch {
	case name == "img" && fs.NArg() != 1:
		return nil, errors.New("usage: img [-o outputs] [-filter name] <path>")
	case name != "img" && fs.NArg() != 0:
		return nil, fmt.Errorf("unexpected arguments to %s: %q", name, fs.Args())
	}
	cmd.path = fs.Arg(0)
	return cmd, nil
}

// run sends the command to the server, writing any result to w.
func (c *command) run(ctx context.Context, client *rpc.Client, w io.Writer) error {
	switch c.name {
	case "img":
		return client.Img(ctx, c.outputs, c.path, c.filter)
	case "clear":
		return client.Clear(ctx, c.outputs, c.color)
	case "query":
		states, err := client.Query(ctx)
		if err != nil {
			return err
		}
		return printStates(w, states, c.json)
	case "stop":
		return client.Stop(ctx)
	default:
		panic("unreachable")
	}
}

// printStates writes output states as a table or as JSON.
func printStates(w io.Writer, states []rpc.OutputState, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "\t")
		return enc.Encode(states)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tIMAGE\tFILTER\tANIMATED")
	for _, s := range states {
		image := s.Image
		if image == "" {
			image = "-"
		}
		filter := s.Filter
		if filter == "" {
			filter = "-"
		}
		fmt.Fprintf(tw, "%s\t%dx%d\t%s\t%s\t%t\n", s.Name, s.Width, s.Height, image, filter, s.Animated)
	}
	return tw.Flush()
}

// describe returns a user-facing description of an RPC error.
func describe(err error) string {
	var werr *jsonrpc2.WireError
	if !errors.As(err, &werr) {
		return err.Error()
	}
	switch rpc.ErrorType(werr) {
	case rpc.ErrCodeNoOutput:
		return "paperd: " + werr.Message + " (see paperctl query)"
	case rpc.ErrCodeParameters:
		return "paperd: invalid request: " + werr.Message
	default:
		return "paperd: " + werr.Message
	}
}

// printWrapped writes paragraphs of text to w wrapped at width columns.
// Indented lines are written unaltered.
func printWrapped(w io.Writer, text string, width int) {
	wrapper := wrap.NewWrapper()
	wrapper.StripTrailingNewline = true
	for _, para := range strings.SplitAfter(text, "\n") {
		if strings.HasPrefix(para, " ") || strings.HasPrefix(para, "\t") || strings.TrimSpace(para) == "" {
			fmt.Fprint(w, para)
			continue
		}
		fmt.Fprintln(w, wrapper.Wrap(strings.TrimSuffix(para, "\n"), width))
	}
}
