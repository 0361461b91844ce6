package cmd

import (
	"flag"

	"github.com/etnz/tradecost/docs"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// flagPredictors complete the values of flags shared by several commands.
var flagPredictors = map[string]complete.Predictor{
	"format": predict.Set{"md", "raw", "json", "html"},
	"bucket": predict.Set{"month", "quarter", "year"},
	"period": predict.Set{"month", "quarter", "year"},
	"side":   predict.Set{"buy", "sell"},
	"f":      predict.Files("*.jsonl"),
}

// Completion returns the shell completion of every command and its flags.
func (a *App) Completion() *complete.Command {
	root := &complete.Command{Sub: map[string]*complete.Command{}}
	for _, cmds := range a.Commands() {
		for _, c := range cmds {
			fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
			c.SetFlags(fs)
			root.Sub[c.Name()] = &complete.Command{Flags: predictFlags(fs)}
		}
	}
	if names, err := docs.Names(); err == nil {
		root.Sub["topic"].Args = predict.Set(append(names, "*"))
	}
	return root
}

func predictFlags(fs *flag.FlagSet) map[string]complete.Predictor {
	flags := make(map[string]complete.Predictor)
	fs.VisitAll(func(f *flag.Flag) {
		if p, ok := flagPredictors[f.Name]; ok {
			flags[f.Name] = p
			return
		}
		if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
			flags[f.Name] = predict.Nothing
			return
		}
		flags[f.Name] = predict.Something
	})
	return flags
}
