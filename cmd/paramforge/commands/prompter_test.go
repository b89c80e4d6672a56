package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paramforge/paramforge/pkg/domain"
	"github.com/paramforge/paramforge/pkg/engine"
)

func TestTextPrompter_Answers(t *testing.T) {
	c := builtin(t, "toy")
	offer := &engine.Offer{
		Parameter:  "B",
		Index:      1,
		Domain:     domain.NewEnum(domain.Ints(0, 1, 2)...),
		Default:    domain.Int(0),
		HasDefault: true,
	}

	tests := []struct {
		name  string
		input string
		want  engine.Answer
	}{
		{name: "default", input: "\n", want: engine.Answer{Action: engine.AnswerAcceptDefault}},
		{name: "value", input: "2\n", want: engine.Answer{Action: engine.AnswerValue, Value: domain.Int(2)}},
		{name: "back", input: "<\n", want: engine.Answer{Action: engine.AnswerBack}},
		{name: "abort", input: "q\n", want: engine.Answer{Action: engine.AnswerAbort}},
		{name: "end of input", input: "", want: engine.Answer{Action: engine.AnswerAbort}},
		{name: "help then value", input: "?\n1\n", want: engine.Answer{Action: engine.AnswerValue, Value: domain.Int(1)}},
		{name: "unparsable then value", input: "two\n 2 \n", want: engine.Answer{Action: engine.AnswerValue, Value: domain.Int(2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := newTextPrompter(c, strings.NewReader(tt.input), &out)
			got, err := p.Ask(context.Background(), offer, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "[2/3] B (int)")
			assert.Contains(t, out.String(), "B [0]> ")
		})
	}
}

func TestTextPrompter_ShowsRejection(t *testing.T) {
	c := builtin(t, "toy")
	offer := &engine.Offer{Parameter: "A", Domain: domain.NewEnum(domain.Ints(0, 1)...)}
	verdict := &engine.Verdict{Reason: "too large", Suggestion: domain.Int(1), HasSuggestion: true}

	var out bytes.Buffer
	p := newTextPrompter(c, strings.NewReader("1\n"), &out)
	_, err := p.Ask(context.Background(), offer, verdict)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "rejected: too large")
	assert.Contains(t, out.String(), "nearest legal value: 1")
	assert.Contains(t, out.String(), "A> ", "no default is shown when none is offered")
}

func TestTextPrompter_DomainEmpty(t *testing.T) {
	c := builtin(t, "toy")
	offer := &engine.Offer{Parameter: "C", Index: 2, Message: "no legal values remain; go back or abort"}

	var out bytes.Buffer
	p := newTextPrompter(c, strings.NewReader("<\n"), &out)
	got, err := p.Ask(context.Background(), offer, nil)
	require.NoError(t, err)
	assert.Equal(t, engine.AnswerBack, got.Action)
	assert.Contains(t, out.String(), "no legal values remain")
}

func TestTextPrompter_Cancelled(t *testing.T) {
	c := builtin(t, "toy")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTextPrompter(c, strings.NewReader("1\n"), &bytes.Buffer{})
	_, err := p.Ask(ctx, &engine.Offer{Parameter: "A"}, nil)
	require.ErrorIs(t, err, context.Canceled)
}
