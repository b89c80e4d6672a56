package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/paramforge/paramforge/pkg/domain"
	"github.com/paramforge/paramforge/pkg/engine"
)

const promptHelp = `  <enter>  accept the default
  <        go back to the previous parameter
  q        abort without a configuration
  ?        show this help`

// textPrompter asks for candidates on a line-oriented terminal.
type textPrompter struct {
	component *engine.Component
	in        *bufio.Scanner
	out       io.Writer
}

func newTextPrompter(c *engine.Component, in io.Reader, out io.Writer) *textPrompter {
	return &textPrompter{component: c, in: bufio.NewScanner(in), out: out}
}

// Ask shows the offer and reads answers until one parses. End of input aborts.
func (p *textPrompter) Ask(ctx context.Context, offer *engine.Offer, verdict *engine.Verdict) (engine.Answer, error) {
	if verdict != nil && !verdict.Accepted {
		fmt.Fprintf(p.out, "  rejected: %s\n", verdict.Reason)
		if verdict.HasSuggestion {
			fmt.Fprintf(p.out, "  nearest legal value: %s\n", verdict.Suggestion)
		}
	}
	p.describe(offer)

	for {
		if err := ctx.Err(); err != nil {
			return engine.Answer{}, err
		}

		if offer.HasDefault {
			fmt.Fprintf(p.out, "%s [%s]> ", offer.Parameter, offer.Default)
		} else {
			fmt.Fprintf(p.out, "%s> ", offer.Parameter)
		}

		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return engine.Answer{}, fmt.Errorf("failed to read answer: %w", err)
			}
			fmt.Fprintln(p.out)
			return engine.Answer{Action: engine.AnswerAbort}, nil
		}

		line := strings.TrimSpace(p.in.Text())
		switch line {
		case "":
			return engine.Answer{Action: engine.AnswerAcceptDefault}, nil
		case "<", "back":
			return engine.Answer{Action: engine.AnswerBack}, nil
		case "q", "quit", "abort":
			return engine.Answer{Action: engine.AnswerAbort}, nil
		case "?", "help":
			fmt.Fprintln(p.out, promptHelp)
			continue
		}

		spec, ok := p.component.Param(offer.Parameter)
		if !ok {
			return engine.Answer{}, fmt.Errorf("unknown parameter %s", offer.Parameter)
		}
		v, err := domain.Parse(spec.Type, line)
		if err != nil {
			fmt.Fprintf(p.out, "  %v\n", err)
			continue
		}
		return engine.Answer{Action: engine.AnswerValue, Value: v}, nil
	}
}

func (p *textPrompter) describe(offer *engine.Offer) {
	fmt.Fprintf(p.out, "\n[%d/%d] %s", offer.Index+1, len(p.component.Params), offer.Parameter)
	if spec, ok := p.component.Param(offer.Parameter); ok {
		fmt.Fprintf(p.out, " (%s)", spec.Type)
		if spec.Description != "" {
			fmt.Fprintf(p.out, ": %s", spec.Description)
		}
	}
	fmt.Fprintln(p.out)
	if offer.Domain != nil {
		fmt.Fprintf(p.out, "  legal: %s\n", offer.Domain.Describe())
	}
	if offer.Message != "" && (offer.Domain == nil || offer.Message != offer.Domain.Describe()) {
		fmt.Fprintf(p.out, "  %s\n", offer.Message)
	}
}
