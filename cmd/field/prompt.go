package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cnsr/cta-inspection/internal/workflow"
)

// prompter asks questions on a line-oriented terminal. It implements
// workflow.Confirmer and workflow.ReasonPrompter.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	// assumeYes answers every confirmation with yes.
	assumeYes bool
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// ask prints question and returns the trimmed answer. End of input on an
// empty line cancels.
func (p *prompter) ask(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err == io.EOF && line == "" {
		return "", workflow.ErrCancelled
	}
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm implements workflow.Confirmer.
func (p *prompter) Confirm(ctx context.Context, question string) (bool, error) {
	if p.assumeYes {
		return true, nil
	}
	for {
		answer, err := p.ask(ctx, question+" [o/N] ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "o", "oui", "y", "yes":
			return true, nil
		case "", "n", "non", "no":
			return false, nil
		}
	}
}

// PromptReason implements workflow.ReasonPrompter.
func (p *prompter) PromptReason(ctx context.Context, attempt int) (string, error) {
	if attempt > 1 {
		fmt.Fprintln(p.out, "Le motif du rejet est obligatoire.")
	}
	return p.ask(ctx, "Motif du rejet : ")
}

// pick shows numbered options and returns the chosen index.
func (p *prompter) pick(ctx context.Context, title string, options []string) (int, error) {
	fmt.Fprintln(p.out, title)
	for i, o := range options {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, o)
	}
	for {
		answer, err := p.ask(ctx, "> ")
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		fmt.Fprintf(p.out, "Choisissez un nombre entre 1 et %d.\n", len(options))
	}
}
