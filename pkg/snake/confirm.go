// Package snake holds the interactive terminal prompts.
package snake

import (
	"errors"
	"strconv"

	"github.com/manifoldco/promptui"

	"tableflip.dev/agenda/pkg/mutate"
)

var templates = &promptui.PromptTemplates{
	Prompt:  "{{ . }} ",
	Valid:   "{{ . | green }} ",
	Invalid: "{{ . | red }} ",
	Success: "{{ . | bold }} ",
}

// Confirm asks a yes/no question on the terminal. Anything but an explicit
// yes is a no.
func Confirm(prompt string) (bool, error) {
	p := promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
		Templates: templates,
	}
	result, err := p.Run()
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	ok, err := ParseBool(result)
	if err != nil {
		return false, nil
	}
	return ok, nil
}

// Confirmer prompts on the terminal, or always agrees when assumeYes is set.
func Confirmer(assumeYes bool) mutate.Confirmer {
	if assumeYes {
		return mutate.ConfirmFunc(func(string) (bool, error) { return true, nil })
	}
	return mutate.ConfirmFunc(Confirm)
}

// ParseBool is strconv.ParseBool with the addition of Yes/No parsing.
func ParseBool(str string) (bool, error) {
	switch str {
	case "1", "t", "T", "true", "TRUE", "True", "y", "Y", "yes", "YES", "Yes":
		return true, nil
	case "0", "f", "F", "false", "FALSE", "False", "n", "N", "no", "NO", "No":
		return false, nil
	}
	return false, &strconv.NumError{Func: "ParseBool", Num: str, Err: strconv.ErrSyntax}
}
