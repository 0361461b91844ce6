package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/tradecost/docs"
	"github.com/google/subcommands"
)

type topicCmd struct {
	formatFlag
}

func (*topicCmd) Name() string     { return "topic" }
func (*topicCmd) Synopsis() string { return "show documentation" }
func (*topicCmd) Usage() string {
	return `tcx topic [<topic>...]

  Shows the documentation of the given topics, "*" for all of them. Without
  topic, lists them.
`
}

func (c *topicCmd) SetFlags(f *flag.FlagSet) {
	c.formatFlag.SetFlags(f)
}

func (c *topicCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	topics := f.Args()
	if len(topics) == 0 {
		topics = []string{docs.Readme}
	}
	doc, err := docs.Topics(topics...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading doc: %v\n", err)
		return subcommands.ExitFailure
	}
	return c.print(doc, doc)
}
