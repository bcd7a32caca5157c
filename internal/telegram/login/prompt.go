package login

import (
	"errors"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
)

// Prompter asks the operator a single question.
type Prompter interface {
	Ask(label string, secret bool, validate func(string) error) (string, error)
}

// TerminalPrompter asks questions on an interactive terminal.
type TerminalPrompter struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
}

// Ask implements Prompter.
func (p TerminalPrompter) Ask(label string, secret bool, validate func(string) error) (string, error) {
	prompt := promptui.Prompt{
		Label:  label,
		Stdin:  p.Stdin,
		Stdout: p.Stdout,
	}
	if secret {
		prompt.Mask = '*'
	}
	if validate != nil {
		prompt.Validate = promptui.ValidateFunc(validate)
	}
	answer, err := prompt.Run()
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return "", ErrAborted
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// ErrAborted reports that the operator cancelled a prompt.
var ErrAborted = errors.New("login aborted")

func validatePhone(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("phone number is required")
	}
	digits := strings.TrimPrefix(value, "+")
	for _, r := range digits {
		if (r < '0' || r > '9') && r != ' ' && r != '-' {
			return errors.New("use international format, e.g. +15551234567")
		}
	}
	return nil
}

func validateCode(value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New("code is required")
	}
	return nil
}
